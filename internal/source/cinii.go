package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
)

const ciniiBaseURL = "https://cir.nii.ac.jp/opensearch/v2/articles"

// CiNii fetches candidate articles from the CiNii Research OpenSearch API.
type CiNii struct {
	opts    Options
	baseURL string
}

// NewCiNii builds a CiNii client.
func NewCiNii(opts Options) *CiNii {
	return &CiNii{opts: opts, baseURL: ciniiBaseURL}
}

// Kind identifies the source.
func (c *CiNii) Kind() digest.SourceKind {
	return digest.SourceCiNii
}

type ciniiResponse struct {
	Items []ciniiItem `json:"items"`
}

type ciniiItem struct {
	Title string `json:"title"`
	Link  struct {
		ID string `json:"@id"`
	} `json:"link"`
	PublicationDate string `json:"prism:publicationDate"`
}

// Fetch queries CiNii Research. The API filters by publication year only, so
// the year of NotBefore goes into the request and the precise bound is
// enforced client-side. CiNii publication dates come in year, year-month and
// full-date granularity.
func (c *CiNii) Fetch(ctx context.Context, query digest.ProviderQuery, limit int) ([]digest.CandidateArticle, error) {
	if limit <= 0 || limit > ciniiFetchCeiling {
		limit = ciniiFetchCeiling
	}
	requested := limit * 3
	if requested > ciniiFetchCeiling {
		requested = ciniiFetchCeiling
	}

	params := url.Values{}
	params.Set("q", query.Text)
	params.Set("format", "json")
	params.Set("count", strconv.Itoa(requested))
	params.Set("sortorder", "0")
	params.Set("start", "1")
	if c.opts.CiNiiAppID != "" {
		params.Set("appid", c.opts.CiNiiAppID)
	}
	if !query.NotBefore.IsZero() {
		params.Set("from", strconv.Itoa(query.NotBefore.Year()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build cinii request: %w", err)
	}

	resp, err := c.opts.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("cinii fetch: %w: %v", digest.ErrSourceUnavailable, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(digest.SourceCiNii, resp.StatusCode); err != nil {
		return nil, err
	}
	archivePayload(ctx, c.opts, digest.SourceCiNii, "json", body, "application/json")

	var parsed ciniiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse cinii response: %w: %v", digest.ErrSourceUnavailable, err)
	}

	c.opts.logger().Debug("cinii results fetched",
		zap.Int("entries", len(parsed.Items)), zap.String("query", query.Text))

	// Return the whole oversampled window; the sent-history filter downstream
	// truncates to the configured maximum.
	articles := make([]digest.CandidateArticle, 0, requested)
	for _, item := range parsed.Items {
		if len(articles) >= requested {
			break
		}
		if item.Link.ID == "" || item.Title == "" {
			continue
		}
		published, ok := parseCiNiiDate(item.PublicationDate)
		if !ok {
			continue
		}
		if !query.NotBefore.IsZero() && published.Before(query.NotBefore) {
			continue
		}
		articles = append(articles, digest.CandidateArticle{
			URL:         item.Link.ID,
			Title:       item.Title,
			PublishedAt: published,
			Source:      digest.SourceCiNii,
		})
	}
	return articles, nil
}

// parseCiNiiDate accepts "2006", "2006-01" and "2006-01-02" (or longer ISO
// strings) publication dates.
func parseCiNiiDate(s string) (time.Time, bool) {
	switch {
	case s == "":
		return time.Time{}, false
	case len(s) == 4:
		t, err := time.Parse("2006", s)
		return t.UTC(), err == nil
	case len(s) == 7:
		t, err := time.Parse("2006-01", s)
		return t.UTC(), err == nil
	default:
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
		if len(s) >= 10 {
			t, err := time.Parse("2006-01-02", s[:10])
			return t.UTC(), err == nil
		}
		return time.Time{}, false
	}
}
