package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ymori/newsdispatch/internal/digest"
)

const insertArticleSQL = `
INSERT INTO articles (id, url, title, published_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url) DO NOTHING`

const selectArticlesByURLSQL = `
SELECT id, url, title, published_at
FROM articles
WHERE url = ANY($1)`

// ArticleStore keeps the canonical URL-keyed article table. Inserting an
// already-known URL is a no-op; the first writer's title and timestamp win.
type ArticleStore struct {
	db querier
}

// NewArticleStore constructs a store over an existing pool.
func NewArticleStore(db querier) *ArticleStore {
	return &ArticleStore{db: db}
}

// Upsert inserts unseen candidates and returns the canonical row for every
// candidate URL, whether this call created it or a previous run did.
func (s *ArticleStore) Upsert(ctx context.Context, candidates []digest.CandidateArticle) (map[string]digest.Article, error) {
	resolved := make(map[string]digest.Article, len(candidates))
	if len(candidates) == 0 {
		return resolved, nil
	}

	urls := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.URL == "" || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		urls = append(urls, c.URL)
		if _, err := s.db.Exec(ctx, insertArticleSQL, uuid.New(), c.URL, c.Title, c.PublishedAt); err != nil {
			return nil, fmt.Errorf("insert article %s: %w", c.URL, err)
		}
	}

	rows, err := s.db.Query(ctx, selectArticlesByURLSQL, urls)
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a digest.Article
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		resolved[a.URL] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return resolved, nil
}
