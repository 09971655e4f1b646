// Package source implements the three source clients that turn a provider
// query into candidate articles: Google News (RSS), CiNii Research
// (OpenSearch JSON) and arXiv (Atom).
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
)

// Safety ceilings applied regardless of the configured max-articles, to
// bound worst-case API cost.
const (
	feedFetchCeiling  = 100
	ciniiFetchCeiling = 200
)

// Options carries the shared dependencies for all source clients.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Archive    digest.Archive
	Prefix     string
	Clock      digest.Clock
	CiNiiAppID string
	Logger     *zap.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ForKind returns the client for one source kind.
func ForKind(kind digest.SourceKind, opts Options) (digest.SourceClient, error) {
	switch kind {
	case digest.SourceGoogleNews:
		return NewGoogleNews(opts), nil
	case digest.SourceCiNii:
		return NewCiNii(opts), nil
	case digest.SourceArxiv:
		return NewArxiv(opts), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", kind)
}

// All builds one client per supported source kind.
func All(opts Options) map[digest.SourceKind]digest.SourceClient {
	return map[digest.SourceKind]digest.SourceClient{
		digest.SourceGoogleNews: NewGoogleNews(opts),
		digest.SourceCiNii:      NewCiNii(opts),
		digest.SourceArxiv:      NewArxiv(opts),
	}
}

// classifyStatus maps an HTTP response code onto the error taxonomy.
// 429 and 403 count as rate limiting; CiNii signals quota exhaustion with
// 403. Anything else that is not 2xx is treated as the source being
// unavailable.
func classifyStatus(kind digest.SourceKind, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		return fmt.Errorf("%s returned %d: %w", kind, status, digest.ErrSourceRateLimited)
	default:
		return fmt.Errorf("%s returned %d: %w", kind, status, digest.ErrSourceUnavailable)
	}
}

// readBody drains a response, bounded to keep a misbehaving provider from
// exhausting memory.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w: %v", digest.ErrSourceUnavailable, err)
	}
	return data, nil
}

// archivePayload stores the raw provider payload when an archive is
// configured. Failures are logged, never propagated; archival is best effort.
func archivePayload(ctx context.Context, opts Options, kind digest.SourceKind, ext string, data []byte, contentType string) {
	if opts.Archive == nil {
		return
	}
	now := time.Now().UTC()
	if opts.Clock != nil {
		now = opts.Clock.Now()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "payloads"
	}
	path := fmt.Sprintf("%s/%s/%s-%s.%s",
		prefix, kind, now.Format("20060102T150405"), uuid.NewString()[:8], ext)
	if _, err := opts.Archive.Put(ctx, path, contentType, data); err != nil {
		opts.logger().Warn("payload archive failed",
			zap.String("source", string(kind)), zap.Error(err))
	}
}
