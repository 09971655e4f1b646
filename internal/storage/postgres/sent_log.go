package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const selectSentURLsSQL = `
SELECT a.url
FROM sent_articles s
JOIN articles a ON a.id = s.article_id
WHERE s.user_id = $1 AND a.url = ANY($2)`

const insertSentRecordSQL = `
INSERT INTO sent_articles (user_id, article_id, sent_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, article_id) DO NOTHING`

// SentLog is the Postgres-backed per-user dedupe ledger.
type SentLog struct {
	db querier
}

// NewSentLog constructs a ledger over an existing pool.
func NewSentLog(db querier) *SentLog {
	return &SentLog{db: db}
}

// Sent reports which of the given URLs already have a sent record for the
// user. URLs without any article row simply come back absent.
func (l *SentLog) Sent(ctx context.Context, userID uuid.UUID, urls []string) (map[string]bool, error) {
	sent := make(map[string]bool, len(urls))
	if len(urls) == 0 {
		return sent, nil
	}
	rows, err := l.db.Query(ctx, selectSentURLsSQL, userID, urls)
	if err != nil {
		return nil, fmt.Errorf("select sent urls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan sent url: %w", err)
		}
		sent[u] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sent urls: %w", err)
	}
	return sent, nil
}

// Record appends sent records. Re-recording a (user, article) pair is a
// no-op, so confirming a delivery twice cannot duplicate ledger rows.
func (l *SentLog) Record(ctx context.Context, userID uuid.UUID, articleIDs []uuid.UUID, at time.Time) error {
	for _, articleID := range articleIDs {
		if _, err := l.db.Exec(ctx, insertSentRecordSQL, userID, articleID, at); err != nil {
			return fmt.Errorf("insert sent record: %w", err)
		}
	}
	return nil
}
