// Package digest defines core types shared across subsystems.
package digest

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind selects which external source a SearchConfig queries.
type SourceKind string

// Supported source kinds.
const (
	SourceGoogleNews SourceKind = "google_news"
	SourceCiNii      SourceKind = "cinii"
	SourceArxiv      SourceKind = "arxiv"
)

// Valid reports whether the kind is one of the supported sources.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceGoogleNews, SourceCiNii, SourceArxiv:
		return true
	}
	return false
}

// Language returns the language articles from this source are assumed to be
// written in. Google News depends on the configured country and is resolved
// separately.
func (k SourceKind) Language() string {
	switch k {
	case SourceCiNii:
		return "ja"
	case SourceArxiv:
		return "en"
	}
	return ""
}

// User identifies a digest recipient.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	PreferredLanguage string    `json:"preferred_language"`
}

// SearchConfig is a user's saved search definition. It is read-only input to
// the pipeline; one run never mutates it.
type SearchConfig struct {
	ID      uuid.UUID  `json:"id"`
	Owner   User       `json:"owner"`
	Name    string     `json:"name"`
	Source  SourceKind `json:"source"`
	Country string     `json:"country"`

	// Structured keyword sets. Which sets apply depends on the source kind.
	CategoryKeywords  []string `json:"category_keywords"`
	UniversalKeywords []string `json:"universal_keywords"`
	CurrentKeywords   []string `json:"current_keywords"`
	RelatedKeywords   []string `json:"related_keywords"`

	// Free-text terms. OrKeywords widen the query, RefineKeywords are
	// mandatory AND terms; a leading '-' turns one into a NOT term.
	OrKeywords     []string `json:"or_keywords"`
	RefineKeywords []string `json:"refine_keywords"`

	LookbackDays int  `json:"lookback_days"`
	MaxArticles  int  `json:"max_articles"`
	AutoSend     bool `json:"auto_send"`
}

// ProviderQuery is the source-agnostic result of query building. Text carries
// the composed query string; for Google News the date bound is already inlined
// as an "after:" token, the index-style clients read NotBefore instead.
type ProviderQuery struct {
	Source    SourceKind
	Text      string
	Country   string
	NotBefore time.Time
}

// CandidateArticle is a transient per-run record returned by a SourceClient.
// Its URL is provisional identity until the article store resolves it.
type CandidateArticle struct {
	URL         string
	Title       string
	PublishedAt time.Time
	Source      SourceKind
}

// Article is the canonical, URL-keyed persisted article record.
type Article struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// DispatchableArticle is the per-run output unit consumed by the delivery
// collaborator. TranslatedTitle is empty when no translation was produced.
type DispatchableArticle struct {
	Article         Article `json:"article"`
	TranslatedTitle string  `json:"translated_title,omitempty"`
}

// RunState tracks a run through the stage sequence.
type RunState string

// Run states in stage order, plus the two terminal outcomes.
const (
	StateBuilding    RunState = "building"
	StateFetching    RunState = "fetching"
	StateUpserting   RunState = "upserting"
	StateFiltering   RunState = "filtering"
	StateTranslating RunState = "translating"
	StateReady       RunState = "ready"
	StateLogged      RunState = "logged"
	StateAborted     RunState = "aborted"
)

// PipelineResult is what one SearchConfig run produces. Ready results stay in
// the run registry until the delivery collaborator confirms transmission.
type PipelineResult struct {
	RunID      uuid.UUID             `json:"run_id"`
	ConfigID   uuid.UUID             `json:"config_id"`
	ConfigName string                `json:"config_name"`
	UserID     uuid.UUID             `json:"user_id"`
	Source     SourceKind            `json:"source"`
	Query      string                `json:"query"`
	State      RunState              `json:"state"`
	Reason     string                `json:"reason,omitempty"`
	Articles   []DispatchableArticle `json:"articles"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// Ready reports whether the run completed the pipeline and may be delivered.
func (r PipelineResult) Ready() bool {
	return r.State == StateReady
}

// BatchSummary aggregates the outcome of one batch invocation.
type BatchSummary struct {
	Started  time.Time   `json:"started_at"`
	Finished time.Time   `json:"finished_at"`
	Runs     int         `json:"runs"`
	Ready    int         `json:"ready"`
	Aborted  int         `json:"aborted"`
	RunIDs   []uuid.UUID `json:"run_ids"`
}
