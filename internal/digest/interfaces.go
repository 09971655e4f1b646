package digest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SourceClient fetches candidate articles from one external source.
type SourceClient interface {
	Kind() SourceKind
	Fetch(ctx context.Context, query ProviderQuery, limit int) ([]CandidateArticle, error)
}

// ArticleStore upserts candidates into the canonical article table. Each URL
// resolves to exactly one Article even under concurrent upserts; existing
// rows keep their first-written title and timestamp.
type ArticleStore interface {
	Upsert(ctx context.Context, candidates []CandidateArticle) (map[string]Article, error)
}

// SentLog is the per-user dedupe ledger.
type SentLog interface {
	// Sent reports which of the given URLs already have a sent record for
	// the user.
	Sent(ctx context.Context, userID uuid.UUID, urls []string) (map[string]bool, error)
	// Record appends sent records, idempotently per (user, article) pair.
	Record(ctx context.Context, userID uuid.UUID, articleIDs []uuid.UUID, at time.Time) error
}

// ConfigStore loads saved search configurations.
type ConfigStore interface {
	Get(ctx context.Context, id uuid.UUID) (SearchConfig, error)
	ListAutoSend(ctx context.Context) ([]SearchConfig, error)
}

// TitlePair carries one title through translation. Translated is empty when
// no translation was produced for it.
type TitlePair struct {
	Original   string
	Translated string
}

// Translator translates a batch of titles. Output length and order always
// match the input; translation failure degrades to untranslated pairs and is
// never an error.
type Translator interface {
	TranslateTitles(ctx context.Context, titles []string, targetLang string) []TitlePair
}

// RunStore keeps pipeline results until delivery is confirmed.
type RunStore interface {
	Save(ctx context.Context, result PipelineResult) error
	Get(ctx context.Context, runID uuid.UUID) (PipelineResult, error)
	MarkLogged(ctx context.Context, runID uuid.UUID) error
}

// Publisher pushes batch/run events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archive stores raw provider payloads and returns a URI.
type Archive interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
