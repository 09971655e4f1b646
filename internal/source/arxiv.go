package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
)

// https://info.arxiv.org/help/api/user-manual.html
const arxivBaseURL = "https://export.arxiv.org/api/query"

// Arxiv fetches candidate articles from the arXiv Atom API.
type Arxiv struct {
	opts    Options
	baseURL string
	parser  *gofeed.Parser
}

// NewArxiv builds an arXiv client.
func NewArxiv(opts Options) *Arxiv {
	return &Arxiv{
		opts:    opts,
		baseURL: arxivBaseURL,
		parser:  gofeed.NewParser(),
	}
}

// Kind identifies the source.
func (c *Arxiv) Kind() digest.SourceKind {
	return digest.SourceArxiv
}

// Fetch queries arXiv sorted by submission date, newest first. The API has
// no date-range parameter, so it oversamples and filters on NotBefore
// client-side.
func (c *Arxiv) Fetch(ctx context.Context, query digest.ProviderQuery, limit int) ([]digest.CandidateArticle, error) {
	if limit <= 0 || limit > feedFetchCeiling {
		limit = feedFetchCeiling
	}
	requested := limit * 3
	if requested > feedFetchCeiling {
		requested = feedFetchCeiling
	}

	params := url.Values{}
	params.Set("search_query", query.Text)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(requested))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}

	resp, err := c.opts.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv fetch: %w: %v", digest.ErrSourceUnavailable, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(digest.SourceArxiv, resp.StatusCode); err != nil {
		return nil, err
	}
	archivePayload(ctx, c.opts, digest.SourceArxiv, "xml", body, "application/atom+xml")

	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse arxiv feed: %w: %v", digest.ErrSourceUnavailable, err)
	}

	c.opts.logger().Debug("arxiv feed fetched",
		zap.Int("entries", len(feed.Items)), zap.String("query", query.Text))

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
			Source:      digest.SourceArxiv,
		})
	}
	return articles, nil
}
