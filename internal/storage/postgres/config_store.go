package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ymori/newsdispatch/internal/digest"
)

const selectConfigSQL = `
SELECT c.id, c.name, c.source, c.country,
       c.category_keywords, c.universal_keywords, c.current_keywords, c.related_keywords,
       c.or_keywords, c.refine_keywords,
       c.lookback_days, c.max_articles, c.auto_send,
       u.id, u.email, u.preferred_language
FROM search_configs c
JOIN users u ON u.id = c.user_id`

// ConfigStore loads saved search configurations from Postgres.
type ConfigStore struct {
	db querier
}

// NewConfigStore constructs a store over an existing pool.
func NewConfigStore(db querier) *ConfigStore {
	return &ConfigStore{db: db}
}

// Get loads one configuration by ID.
func (s *ConfigStore) Get(ctx context.Context, id uuid.UUID) (digest.SearchConfig, error) {
	row := s.db.QueryRow(ctx, selectConfigSQL+"\nWHERE c.id = $1", id)
	cfg, err := scanConfig(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return digest.SearchConfig{}, fmt.Errorf("config %s: %w", id, digest.ErrConfigNotFound)
	}
	if err != nil {
		return digest.SearchConfig{}, fmt.Errorf("select config: %w", err)
	}
	return cfg, nil
}

// ListAutoSend loads every configuration enrolled in scheduled batch runs.
func (s *ConfigStore) ListAutoSend(ctx context.Context) ([]digest.SearchConfig, error) {
	rows, err := s.db.Query(ctx, selectConfigSQL+"\nWHERE c.auto_send\nORDER BY c.name")
	if err != nil {
		return nil, fmt.Errorf("select auto-send configs: %w", err)
	}
	defer rows.Close()

	var configs []digest.SearchConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate configs: %w", err)
	}
	return configs, nil
}

func scanConfig(row pgx.Row) (digest.SearchConfig, error) {
	var cfg digest.SearchConfig
	var source string
	err := row.Scan(
		&cfg.ID, &cfg.Name, &source, &cfg.Country,
		&cfg.CategoryKeywords, &cfg.UniversalKeywords, &cfg.CurrentKeywords, &cfg.RelatedKeywords,
		&cfg.OrKeywords, &cfg.RefineKeywords,
		&cfg.LookbackDays, &cfg.MaxArticles, &cfg.AutoSend,
		&cfg.Owner.ID, &cfg.Owner.Email, &cfg.Owner.PreferredLanguage,
	)
	if err != nil {
		return digest.SearchConfig{}, err
	}
	cfg.Source = digest.SourceKind(source)
	return cfg, nil
}
