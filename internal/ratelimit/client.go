// Package ratelimit bounds per-source concurrency and request rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/metrics"
)

// Config holds the caps for one source.
type Config struct {
	MaxConcurrent int
	RPS           float64
	Burst         int
}

// Client wraps a source client with a token bucket and a concurrency
// semaphore. Concurrent Fetch calls beyond MaxConcurrent queue up; requests
// beyond RPS wait for a token.
type Client struct {
	inner   digest.SourceClient
	limiter *rate.Limiter
	sem     chan struct{}
}

// Wrap decorates a source client. RPS <= 0 means unlimited rate,
// MaxConcurrent <= 0 means unlimited concurrency.
func Wrap(inner digest.SourceClient, cfg Config) *Client {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	var sem chan struct{}
	if cfg.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return &Client{
		inner:   inner,
		limiter: rate.NewLimiter(r, burst),
		sem:     sem,
	}
}

// Kind identifies the wrapped source.
func (c *Client) Kind() digest.SourceKind {
	return c.inner.Kind()
}

// Fetch acquires a concurrency slot and a rate token, then delegates.
func (c *Client) Fetch(ctx context.Context, query digest.ProviderQuery, limit int) ([]digest.CandidateArticle, error) {
	kind := string(c.inner.Kind())

	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s slot: %w", kind, ctx.Err())
		}
	}

	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(waitStart); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(kind, delay)
	}

	fetchStart := time.Now()
	articles, err := c.inner.Fetch(ctx, query, limit)
	metrics.ObserveSourceRequest(kind, outcome(err), time.Since(fetchStart))
	return articles, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case digest.Retryable(err):
		return "retryable"
	default:
		return "error"
	}
}
