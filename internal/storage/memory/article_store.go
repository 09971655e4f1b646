// Package memory provides in-memory persistence implementations for
// development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ymori/newsdispatch/internal/digest"
)

// ArticleStore is an in-memory URL-keyed article table. The first write for a
// URL wins; later candidates with the same URL resolve to the existing row.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]digest.Article
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{articles: make(map[string]digest.Article)}
}

// Upsert resolves every candidate URL to its canonical article.
func (s *ArticleStore) Upsert(_ context.Context, candidates []digest.CandidateArticle) (map[string]digest.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolved := make(map[string]digest.Article, len(candidates))
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		existing, ok := s.articles[c.URL]
		if !ok {
			existing = digest.Article{
				ID:          uuid.New(),
				URL:         c.URL,
				Title:       c.Title,
				PublishedAt: c.PublishedAt,
			}
			s.articles[c.URL] = existing
		}
		resolved[c.URL] = existing
	}
	return resolved, nil
}

func (s *ArticleStore) lookup(url string) (digest.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[url]
	return a, ok
}
