package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/metrics"
	"github.com/ymori/newsdispatch/internal/query"
	"github.com/ymori/newsdispatch/internal/source"
)

const defaultSourceTimeout = 10 * time.Second

// PlannerOptions wires the planner's collaborators.
type PlannerOptions struct {
	Builder       *query.Builder
	Sources       map[digest.SourceKind]digest.SourceClient
	Articles      digest.ArticleStore
	SentLog       digest.SentLog
	Translator    digest.Translator
	Runs          digest.RunStore
	Clock         digest.Clock
	Logger        *zap.Logger
	SourceTimeout time.Duration
	Retry         *digest.ExponentialRetryPolicy

	// DefaultLanguage is the translation target for owners without a
	// preferred language. Empty means such owners get untranslated digests.
	DefaultLanguage string
}

// Planner drives one SearchConfig through the stage sequence. Stages within a
// run are strictly ordered; only distinct runs execute concurrently.
type Planner struct {
	builder       *query.Builder
	sources       map[digest.SourceKind]digest.SourceClient
	articles      digest.ArticleStore
	sentLog       digest.SentLog
	filter        *SentHistoryFilter
	translator    digest.Translator
	runs          digest.RunStore
	clock         digest.Clock
	logger        *zap.Logger
	sourceTimeout time.Duration
	retry         *digest.ExponentialRetryPolicy
	defaultLang   string
}

// NewPlanner builds a Planner.
func NewPlanner(opts PlannerOptions) *Planner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := opts.Retry
	if retry == nil {
		retry = digest.NewExponentialRetryPolicy()
	}
	timeout := opts.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Planner{
		builder:       opts.Builder,
		sources:       opts.Sources,
		articles:      opts.Articles,
		sentLog:       opts.SentLog,
		filter:        NewSentHistoryFilter(opts.SentLog),
		translator:    opts.Translator,
		runs:          opts.Runs,
		clock:         opts.Clock,
		logger:        logger,
		sourceTimeout: timeout,
		retry:         retry,
		defaultLang:   opts.DefaultLanguage,
	}
}

// Run executes the full pipeline for one config. Failures abort only this
// run; the result always carries a terminal state.
func (p *Planner) Run(ctx context.Context, cfg digest.SearchConfig) digest.PipelineResult {
	result := digest.PipelineResult{
		RunID:      uuid.New(),
		ConfigID:   cfg.ID,
		ConfigName: cfg.Name,
		UserID:     cfg.Owner.ID,
		Source:     cfg.Source,
		State:      digest.StateBuilding,
		StartedAt:  p.clock.Now().UTC(),
	}
	log := p.logger.With(
		zap.String("run_id", result.RunID.String()),
		zap.String("config", cfg.Name),
		zap.String("source", string(cfg.Source)),
	)

	q, err := p.builder.Build(cfg)
	if err != nil {
		return p.abort(ctx, result, fmt.Sprintf("build query: %v", err), log)
	}
	result.Query = q.Text

	result.State = digest.StateFetching
	client, ok := p.sources[cfg.Source]
	if !ok {
		return p.abort(ctx, result, fmt.Sprintf("no client for source %q", cfg.Source), log)
	}
	candidates, err := p.fetchWithRetry(ctx, client, q, cfg.MaxArticles, log)
	if err != nil {
		return p.abort(ctx, result, fmt.Sprintf("fetch: %v", err), log)
	}

	result.State = digest.StateUpserting
	resolved, err := p.articles.Upsert(ctx, candidates)
	if err != nil {
		return p.abort(ctx, result, fmt.Sprintf("upsert: %v", err), log)
	}
	ordered := orderResolved(candidates, resolved)

	result.State = digest.StateFiltering
	fresh, err := p.filter.Filter(ctx, cfg.Owner.ID, ordered, cfg.MaxArticles)
	if err != nil {
		return p.abort(ctx, result, fmt.Sprintf("filter: %v", err), log)
	}

	result.State = digest.StateTranslating
	result.Articles = p.translate(ctx, cfg, fresh, log)

	// Filtered-to-empty is still Ready; the caller decides whether an empty
	// digest is worth a notice.
	result.State = digest.StateReady
	result.FinishedAt = p.clock.Now().UTC()
	if err := p.runs.Save(ctx, result); err != nil {
		log.Error("save run result", zap.Error(err))
	}
	metrics.ObserveRun(string(cfg.Source), string(digest.StateReady), len(result.Articles))
	log.Info("run ready",
		zap.Int("candidates", len(candidates)), zap.Int("articles", len(result.Articles)))
	return result
}

// Preview runs Building, Fetching and Filtering without writing anything:
// no article rows, no sent records, no run registry entry.
func (p *Planner) Preview(ctx context.Context, cfg digest.SearchConfig) ([]digest.CandidateArticle, error) {
	q, err := p.builder.Build(cfg)
	if err != nil {
		return nil, err
	}
	client, ok := p.sources[cfg.Source]
	if !ok {
		return nil, fmt.Errorf("no client for source %q", cfg.Source)
	}
	candidates, err := p.fetchWithRetry(ctx, client, q, cfg.MaxArticles, p.logger)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c.URL] {
			seen[c.URL] = true
			urls = append(urls, c.URL)
		}
	}
	sent, err := p.sentLog.Sent(ctx, cfg.Owner.ID, urls)
	if err != nil {
		return nil, fmt.Errorf("sent lookup: %w", err)
	}

	out := make([]digest.CandidateArticle, 0, len(candidates))
	emitted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if sent[c.URL] || emitted[c.URL] {
			continue
		}
		emitted[c.URL] = true
		out = append(out, c)
		if cfg.MaxArticles > 0 && len(out) >= cfg.MaxArticles {
			break
		}
	}
	return out, nil
}

// ConfirmDelivery records sent articles for a ready run and moves it to
// logged. Confirming an already-logged run is a no-op, so retried
// confirmations cannot double-log.
func (p *Planner) ConfirmDelivery(ctx context.Context, runID uuid.UUID, deliveredIDs []uuid.UUID) error {
	result, err := p.runs.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if result.State == digest.StateLogged {
		return nil
	}
	if !result.Ready() {
		return fmt.Errorf("run %s is %s, not ready", runID, result.State)
	}

	known := make(map[uuid.UUID]bool, len(result.Articles))
	for _, a := range result.Articles {
		known[a.Article.ID] = true
	}
	toRecord := make([]uuid.UUID, 0, len(deliveredIDs))
	for _, id := range deliveredIDs {
		if known[id] {
			toRecord = append(toRecord, id)
		}
	}
	if len(toRecord) > 0 {
		if err := p.sentLog.Record(ctx, result.UserID, toRecord, p.clock.Now().UTC()); err != nil {
			return fmt.Errorf("record sent articles: %w", err)
		}
	}
	if err := p.runs.MarkLogged(ctx, runID); err != nil {
		return fmt.Errorf("mark run logged: %w", err)
	}
	p.logger.Info("delivery confirmed",
		zap.String("run_id", runID.String()), zap.Int("articles", len(toRecord)))
	return nil
}

func (p *Planner) fetchWithRetry(ctx context.Context, client digest.SourceClient, q digest.ProviderQuery, limit int, log *zap.Logger) ([]digest.CandidateArticle, error) {
	for attempt := 0; ; attempt++ {
		fetchCtx, cancel := context.WithTimeout(ctx, p.sourceTimeout)
		candidates, err := client.Fetch(fetchCtx, q, limit)
		cancel()
		if err == nil {
			return candidates, nil
		}
		if !p.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		delay := p.retry.Backoff(attempt)
		log.Warn("source fetch failed, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", delay), zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch retry wait: %w", ctx.Err())
		}
	}
}

// translate fills in translated titles. It never fails the run: provider
// errors, length mismatches and matching languages all degrade to
// original-language titles.
func (p *Planner) translate(ctx context.Context, cfg digest.SearchConfig, articles []digest.Article, log *zap.Logger) []digest.DispatchableArticle {
	out := make([]digest.DispatchableArticle, len(articles))
	for i, a := range articles {
		out[i].Article = a
	}
	if len(articles) == 0 {
		return out
	}
	target := cfg.Owner.PreferredLanguage
	if target == "" {
		target = p.defaultLang
	}
	if target == "" || sameLanguage(target, articleLanguage(cfg)) {
		return out
	}

	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}
	pairs := p.translator.TranslateTitles(ctx, titles, target)
	if len(pairs) != len(articles) {
		log.Warn("translator returned wrong pair count, keeping originals",
			zap.Int("want", len(articles)), zap.Int("got", len(pairs)))
		return out
	}
	for i, pair := range pairs {
		out[i].TranslatedTitle = pair.Translated
	}
	return out
}

func (p *Planner) abort(ctx context.Context, result digest.PipelineResult, reason string, log *zap.Logger) digest.PipelineResult {
	result.State = digest.StateAborted
	result.Reason = reason
	result.FinishedAt = p.clock.Now().UTC()
	if err := p.runs.Save(ctx, result); err != nil {
		log.Error("save aborted run", zap.Error(err))
	}
	metrics.ObserveRun(string(result.Source), string(digest.StateAborted), 0)
	log.Warn("run aborted", zap.String("reason", reason))
	return result
}

// orderResolved maps candidates back onto their canonical articles, keeping
// source order and collapsing duplicate URLs to their first occurrence.
func orderResolved(candidates []digest.CandidateArticle, resolved map[string]digest.Article) []digest.Article {
	out := make([]digest.Article, 0, len(resolved))
	seen := make(map[string]bool, len(resolved))
	for _, c := range candidates {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		if a, ok := resolved[c.URL]; ok {
			out = append(out, a)
		}
	}
	return out
}

// articleLanguage is the language titles from this config's source arrive in.
func articleLanguage(cfg digest.SearchConfig) string {
	if cfg.Source == digest.SourceGoogleNews {
		return source.CountryLanguage(cfg.Country)
	}
	return cfg.Source.Language()
}

func sameLanguage(a, b string) bool {
	return primarySubtag(a) == primarySubtag(b)
}

func primarySubtag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}
