package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type sentKey struct {
	userID    uuid.UUID
	articleID uuid.UUID
}

// SentLog is an in-memory per-user dedupe ledger. It resolves URLs through
// the article store it was built with.
type SentLog struct {
	mu       sync.RWMutex
	records  map[sentKey]time.Time
	articles *ArticleStore
}

// NewSentLog constructs a SentLog over the given article store.
func NewSentLog(articles *ArticleStore) *SentLog {
	return &SentLog{
		records:  make(map[sentKey]time.Time),
		articles: articles,
	}
}

// Sent reports which of the given URLs already have a sent record for the
// user.
func (l *SentLog) Sent(_ context.Context, userID uuid.UUID, urls []string) (map[string]bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sent := make(map[string]bool, len(urls))
	for _, u := range urls {
		article, ok := l.articles.lookup(u)
		if !ok {
			continue
		}
		if _, recorded := l.records[sentKey{userID: userID, articleID: article.ID}]; recorded {
			sent[u] = true
		}
	}
	return sent, nil
}

// Record appends sent records, idempotently per (user, article) pair.
func (l *SentLog) Record(_ context.Context, userID uuid.UUID, articleIDs []uuid.UUID, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, articleID := range articleIDs {
		key := sentKey{userID: userID, articleID: articleID}
		if _, exists := l.records[key]; exists {
			continue
		}
		l.records[key] = at
	}
	return nil
}
