package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/metrics"
	"github.com/ymori/newsdispatch/internal/pipeline"
	"github.com/ymori/newsdispatch/internal/query"
	"github.com/ymori/newsdispatch/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticSource struct {
	kind    digest.SourceKind
	results []digest.CandidateArticle
}

func (s *staticSource) Kind() digest.SourceKind { return s.kind }

func (s *staticSource) Fetch(context.Context, digest.ProviderQuery, int) ([]digest.CandidateArticle, error) {
	return s.results, nil
}

type noopTranslator struct{}

func (noopTranslator) TranslateTitles(_ context.Context, titles []string, _ string) []digest.TitlePair {
	pairs := make([]digest.TitlePair, len(titles))
	for i, t := range titles {
		pairs[i] = digest.TitlePair{Original: t, Translated: "ja:" + t}
	}
	return pairs
}

type testEnv struct {
	server  *Server
	configs *memory.ConfigStore
	runs    *memory.RunStore
}

func newTestEnv() *testEnv {
	articles := memory.NewArticleStore()
	sentLog := memory.NewSentLog(articles)
	runs := memory.NewRunStore()
	configs := memory.NewConfigStore()
	clock := fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}

	src := &staticSource{
		kind: digest.SourceGoogleNews,
		results: []digest.CandidateArticle{
			{URL: "https://example.com/a", Title: "Article A", PublishedAt: clock.t.Add(-time.Hour)},
			{URL: "https://example.com/b", Title: "Article B", PublishedAt: clock.t.Add(-2 * time.Hour)},
		},
	}
	planner := pipeline.NewPlanner(pipeline.PlannerOptions{
		Builder:    query.NewBuilder(clock),
		Sources:    map[digest.SourceKind]digest.SourceClient{src.kind: src},
		Articles:   articles,
		SentLog:    sentLog,
		Translator: noopTranslator{},
		Runs:       runs,
		Clock:      clock,
	})
	driver := pipeline.NewDriver(pipeline.DriverOptions{
		Planner: planner,
		Configs: configs,
		Clock:   clock,
	})
	return &testEnv{
		server:  NewServer(planner, driver, configs, runs, nil),
		configs: configs,
		runs:    runs,
	}
}

func newConfig() digest.SearchConfig {
	return digest.SearchConfig{
		ID:                uuid.New(),
		Owner:             digest.User{ID: uuid.New(), PreferredLanguage: "ja"},
		Name:              "us econ",
		Source:            digest.SourceGoogleNews,
		Country:           "US",
		UniversalKeywords: []string{"inflation"},
		MaxArticles:       5,
		AutoSend:          true,
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv()
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunConfirmFlow(t *testing.T) {
	env := newTestEnv()
	cfg := newConfig()
	env.configs.Put(cfg)

	body, err := json.Marshal(map[string]string{"config_id": cfg.ID.String()})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var runResp struct {
		Run digest.PipelineResult `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runResp))
	assert.Equal(t, digest.StateReady, runResp.Run.State)
	require.Len(t, runResp.Run.Articles, 2)
	assert.Equal(t, "ja:Article A", runResp.Run.Articles[0].TranslatedTitle)

	// Read the run back.
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/runs/"+runResp.Run.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Confirm delivery of the first article only.
	confirmBody, err := json.Marshal(map[string]any{
		"delivered_article_ids": []string{runResp.Run.Articles[0].Article.ID.String()},
	})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/v1/runs/%s/confirm", runResp.Run.RunID), bytes.NewReader(confirmBody)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := env.runs.Get(context.Background(), runResp.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, digest.StateLogged, saved.State)
}

func TestRunConfigNotFound(t *testing.T) {
	env := newTestEnv()
	body, _ := json.Marshal(map[string]string{"config_id": uuid.NewString()})
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunConfigRejectsMissingID(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmUnknownRun(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/runs/"+uuid.NewString()+"/confirm", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunInvalidID(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv()
	cfg := newConfig()
	env.configs.Put(cfg)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/configs/"+cfg.ID.String()+"/preview", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Articles []digest.CandidateArticle `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Articles, 2)
}

func TestPreviewEmptyQueryConfig(t *testing.T) {
	env := newTestEnv()
	cfg := newConfig()
	cfg.UniversalKeywords = nil
	env.configs.Put(cfg)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/configs/"+cfg.ID.String()+"/preview", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRunBatchAccepted(t *testing.T) {
	env := newTestEnv()
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/batch/run", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
