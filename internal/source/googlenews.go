package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
)

const googleNewsBaseURL = "https://news.google.com/rss/search"

// localeParams maps a country code onto Google News locale parameters.
// JP is the default for unknown countries.
var localeParams = map[string]struct{ hl, gl, ceid string }{
	"JP": {"ja", "JP", "JP:ja"},
	"US": {"en", "US", "US:en"},
	"CN": {"zh-CN", "CN", "CN:zh-Hans"},
	"KR": {"ko", "KR", "KR:ko"},
}

// CountryLanguage returns the article language Google News serves for a
// country code.
func CountryLanguage(country string) string {
	p, ok := localeParams[country]
	if !ok {
		p = localeParams["JP"]
	}
	return p.hl
}

// GoogleNews fetches candidate articles from the Google News search feed.
type GoogleNews struct {
	opts    Options
	baseURL string
	parser  *gofeed.Parser
}

// NewGoogleNews builds a Google News client.
func NewGoogleNews(opts Options) *GoogleNews {
	return &GoogleNews{
		opts:    opts,
		baseURL: googleNewsBaseURL,
		parser:  gofeed.NewParser(),
	}
}

// Kind identifies the source.
func (c *GoogleNews) Kind() digest.SourceKind {
	return digest.SourceGoogleNews
}

// Fetch issues one RSS search request and maps the feed items onto
// candidate articles. The query text already carries the "after:" date
// token; the NotBefore bound is re-checked here because the feed does not
// apply it strictly.
func (c *GoogleNews) Fetch(ctx context.Context, query digest.ProviderQuery, limit int) ([]digest.CandidateArticle, error) {
	locale, ok := localeParams[query.Country]
	if !ok {
		locale = localeParams["JP"]
	}

	params := url.Values{}
	params.Set("q", query.Text)
	params.Set("hl", locale.hl)
	params.Set("gl", locale.gl)
	params.Set("ceid", locale.ceid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build google news request: %w", err)
	}

	resp, err := c.opts.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("google news fetch: %w: %v", digest.ErrSourceUnavailable, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(digest.SourceGoogleNews, resp.StatusCode); err != nil {
		return nil, err
	}
	archivePayload(ctx, c.opts, digest.SourceGoogleNews, "xml", body, "application/rss+xml")

	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse google news feed: %w: %v", digest.ErrSourceUnavailable, err)
	}

	c.opts.logger().Debug("google news feed fetched",
		zap.Int("entries", len(feed.Items)), zap.String("query", query.Text))

	if limit <= 0 || limit > feedFetchCeiling {
		limit = feedFetchCeiling
	}
	requested := limit * 3
	if requested > feedFetchCeiling {
		requested = feedFetchCeiling
	}

	// Return the whole oversampled window; the sent-history filter downstream
	// truncates to the configured maximum.
	articles := make([]digest.CandidateArticle, 0, requested)
	for _, item := range feed.Items {
		if len(articles) >= requested {
			break
		}
		if item.Link == "" || item.Title == "" || item.PublishedParsed == nil {
			continue
		}
		published := item.PublishedParsed.UTC()
		if !query.NotBefore.IsZero() && published.Before(query.NotBefore) {
			continue
		}
		articles = append(articles, digest.CandidateArticle{
			URL:         item.Link,
			Title:       item.Title,
			PublishedAt: published,
			Source:      digest.SourceGoogleNews,
		})
	}
	return articles, nil
}
