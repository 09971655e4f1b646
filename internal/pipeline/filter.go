// Package pipeline orchestrates digest runs: the per-config state machine,
// the sent-history filter and the batch driver.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ymori/newsdispatch/internal/digest"
)

// SentHistoryFilter drops articles a user has already received. The sent
// record is authoritative by URL identity, so an article stays filtered even
// if its title changed upstream.
type SentHistoryFilter struct {
	log digest.SentLog
}

// NewSentHistoryFilter builds a filter over the given ledger.
func NewSentHistoryFilter(log digest.SentLog) *SentHistoryFilter {
	return &SentHistoryFilter{log: log}
}

// Filter removes already-sent articles, preserving input order, and truncates
// the remainder to max. max <= 0 means no truncation.
func (f *SentHistoryFilter) Filter(ctx context.Context, userID uuid.UUID, articles []digest.Article, max int) ([]digest.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}
	sent, err := f.log.Sent(ctx, userID, urls)
	if err != nil {
		return nil, fmt.Errorf("sent lookup: %w", err)
	}

	out := make([]digest.Article, 0, len(articles))
	for _, a := range articles {
		if sent[a.URL] {
			continue
		}
		out = append(out, a)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}
