package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymori/newsdispatch/internal/digest"
)

const googleNewsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>search results</title>
<item>
  <title>Fed holds rates steady</title>
  <link>https://example.com/fed</link>
  <pubDate>Sun, 30 Aug 2026 09:00:00 GMT</pubDate>
</item>
<item>
  <title>Old inflation story</title>
  <link>https://example.com/old</link>
  <pubDate>Wed, 01 Jan 2025 09:00:00 GMT</pubDate>
</item>
<item>
  <title>No link item</title>
  <pubDate>Sun, 30 Aug 2026 10:00:00 GMT</pubDate>
</item>
</channel></rss>`

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry>
  <title>Attention Is Enough</title>
  <link href="https://arxiv.org/abs/2608.00001"/>
  <published>2026-08-29T00:00:00Z</published>
</entry>
<entry>
  <title>Stale Preprint</title>
  <link href="https://arxiv.org/abs/2501.00001"/>
  <published>2025-01-05T00:00:00Z</published>
</entry>
</feed>`

const ciniiBody = `{
  "items": [
    {"title": "金融政策の研究", "link": {"@id": "https://cir.nii.ac.jp/crid/1"}, "prism:publicationDate": "2026-08-20"},
    {"title": "月単位の日付", "link": {"@id": "https://cir.nii.ac.jp/crid/2"}, "prism:publicationDate": "2026-08"},
    {"title": "日付なし", "link": {"@id": "https://cir.nii.ac.jp/crid/3"}, "prism:publicationDate": ""},
    {"title": "古い論文", "link": {"@id": "https://cir.nii.ac.jp/crid/4"}, "prism:publicationDate": "2020"}
  ]
}`

type captureArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *captureArchive) Put(_ context.Context, path, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

func serveBody(t *testing.T, body string, capture *http.Request) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			*capture = *r
		}
		_, _ = w.Write([]byte(body))
	}))
}

func TestGoogleNewsFetch(t *testing.T) {
	var gotReq http.Request
	srv := serveBody(t, googleNewsFeed, &gotReq)
	defer srv.Close()

	c := NewGoogleNews(Options{})
	c.baseURL = srv.URL

	query := digest.ProviderQuery{
		Source:    digest.SourceGoogleNews,
		Text:      "inflation after:2026-08-24",
		Country:   "US",
		NotBefore: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}
	articles, err := c.Fetch(context.Background(), query, 5)
	require.NoError(t, err)

	// The old story and the link-less item are dropped.
	require.Len(t, articles, 1)
	assert.Equal(t, "https://example.com/fed", articles[0].URL)
	assert.Equal(t, "Fed holds rates steady", articles[0].Title)
	assert.Equal(t, digest.SourceGoogleNews, articles[0].Source)

	params := gotReq.URL.Query()
	assert.Equal(t, "inflation after:2026-08-24", params.Get("q"))
	assert.Equal(t, "en", params.Get("hl"))
	assert.Equal(t, "US", params.Get("gl"))
	assert.Equal(t, "US:en", params.Get("ceid"))
}

func TestGoogleNewsDefaultsToJapanLocale(t *testing.T) {
	var gotReq http.Request
	srv := serveBody(t, googleNewsFeed, &gotReq)
	defer srv.Close()

	c := NewGoogleNews(Options{})
	c.baseURL = srv.URL

	_, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "経済", Country: "BR"}, 5)
	require.NoError(t, err)

	params := gotReq.URL.Query()
	assert.Equal(t, "ja", params.Get("hl"))
	assert.Equal(t, "JP", params.Get("gl"))
}

func TestGoogleNewsReturnsOversampledWindow(t *testing.T) {
	srv := serveBody(t, googleNewsFeed, nil)
	defer srv.Close()

	c := NewGoogleNews(Options{})
	c.baseURL = srv.URL

	// limit 1 still yields both valid items: truncation happens downstream.
	articles, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "x"}, 1)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, digest.ErrSourceRateLimited},
		{http.StatusForbidden, digest.ErrSourceRateLimited},
		{http.StatusInternalServerError, digest.ErrSourceUnavailable},
		{http.StatusBadGateway, digest.ErrSourceUnavailable},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := NewGoogleNews(Options{})
		c.baseURL = srv.URL
		_, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "x"}, 5)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		srv.Close()
	}
}

func TestGoogleNewsConnectionErrorIsUnavailable(t *testing.T) {
	srv := serveBody(t, googleNewsFeed, nil)
	srv.Close()

	c := NewGoogleNews(Options{})
	c.baseURL = srv.URL
	_, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "x"}, 5)
	assert.ErrorIs(t, err, digest.ErrSourceUnavailable)
}

func TestArxivFetch(t *testing.T) {
	var gotReq http.Request
	srv := serveBody(t, arxivFeed, &gotReq)
	defer srv.Close()

	c := NewArxiv(Options{})
	c.baseURL = srv.URL

	query := digest.ProviderQuery{
		Source:    digest.SourceArxiv,
		Text:      "attention",
		NotBefore: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	articles, err := c.Fetch(context.Background(), query, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://arxiv.org/abs/2608.00001", articles[0].URL)
	assert.Equal(t, digest.SourceArxiv, articles[0].Source)

	params := gotReq.URL.Query()
	assert.Equal(t, "attention", params.Get("search_query"))
	assert.Equal(t, "15", params.Get("max_results"))
	assert.Equal(t, "submittedDate", params.Get("sortBy"))
	assert.Equal(t, "descending", params.Get("sortOrder"))
}

func TestCiNiiFetch(t *testing.T) {
	var gotReq http.Request
	srv := serveBody(t, ciniiBody, &gotReq)
	defer srv.Close()

	c := NewCiNii(Options{CiNiiAppID: "test-app"})
	c.baseURL = srv.URL

	query := digest.ProviderQuery{
		Source:    digest.SourceCiNii,
		Text:      "金融政策",
		NotBefore: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	articles, err := c.Fetch(context.Background(), query, 10)
	require.NoError(t, err)

	// The date-less and pre-window items are dropped.
	require.Len(t, articles, 2)
	assert.Equal(t, "https://cir.nii.ac.jp/crid/1", articles[0].URL)
	assert.Equal(t, "https://cir.nii.ac.jp/crid/2", articles[1].URL)

	params := gotReq.URL.Query()
	assert.Equal(t, "金融政策", params.Get("q"))
	assert.Equal(t, "json", params.Get("format"))
	assert.Equal(t, "30", params.Get("count"))
	assert.Equal(t, "test-app", params.Get("appid"))
	assert.Equal(t, "2026", params.Get("from"))
}

func TestCiNiiCountCappedAtCeiling(t *testing.T) {
	var gotReq http.Request
	srv := serveBody(t, ciniiBody, &gotReq)
	defer srv.Close()

	c := NewCiNii(Options{})
	c.baseURL = srv.URL
	_, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "x"}, 500)
	require.NoError(t, err)
	assert.Equal(t, "200", gotReq.URL.Query().Get("count"))
}

func TestParseCiNiiDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-08", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), true},
		{"2026-08-20", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), true},
		{"2026-08-20T09:30:00Z", time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"n/a", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCiNiiDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestFetchArchivesRawPayload(t *testing.T) {
	srv := serveBody(t, googleNewsFeed, nil)
	defer srv.Close()

	arch := &captureArchive{}
	c := NewGoogleNews(Options{Archive: arch, Prefix: "raw"})
	c.baseURL = srv.URL

	_, err := c.Fetch(context.Background(), digest.ProviderQuery{Text: "x"}, 5)
	require.NoError(t, err)
	require.Len(t, arch.paths, 1)
	assert.Contains(t, arch.paths[0], "raw/google_news/")
	assert.Contains(t, arch.paths[0], ".xml")
}

func TestCountryLanguage(t *testing.T) {
	assert.Equal(t, "en", CountryLanguage("US"))
	assert.Equal(t, "ja", CountryLanguage("JP"))
	assert.Equal(t, "zh-CN", CountryLanguage("CN"))
	assert.Equal(t, "ja", CountryLanguage("XX"))
}

func TestForKind(t *testing.T) {
	for _, kind := range []digest.SourceKind{digest.SourceGoogleNews, digest.SourceCiNii, digest.SourceArxiv} {
		c, err := ForKind(kind, Options{})
		require.NoError(t, err)
		assert.Equal(t, kind, c.Kind())
	}
	_, err := ForKind(digest.SourceKind("rss"), Options{})
	assert.Error(t, err)
}
