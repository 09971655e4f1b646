// Package main wires together the news dispatch service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/api"
	"github.com/ymori/newsdispatch/internal/archive"
	"github.com/ymori/newsdispatch/internal/clock/system"
	"github.com/ymori/newsdispatch/internal/config"
	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/logging"
	"github.com/ymori/newsdispatch/internal/metrics"
	"github.com/ymori/newsdispatch/internal/pipeline"
	memorypublisher "github.com/ymori/newsdispatch/internal/publisher/memory"
	pubsubpublisher "github.com/ymori/newsdispatch/internal/publisher/pubsub"
	"github.com/ymori/newsdispatch/internal/query"
	"github.com/ymori/newsdispatch/internal/ratelimit"
	"github.com/ymori/newsdispatch/internal/source"
	"github.com/ymori/newsdispatch/internal/storage/memory"
	"github.com/ymori/newsdispatch/internal/storage/postgres"
	"github.com/ymori/newsdispatch/internal/translate"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	var (
		articleStore digest.ArticleStore
		sentLog      digest.SentLog
		configStore  digest.ConfigStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer pool.Close()
		articleStore = postgres.NewArticleStore(pool)
		sentLog = postgres.NewSentLog(pool)
		configStore = postgres.NewConfigStore(pool)
	} else {
		logger.Warn("db.dsn not set, using in-memory stores")
		mem := memory.NewArticleStore()
		articleStore = mem
		sentLog = memory.NewSentLog(mem)
		configStore = memory.NewConfigStore()
	}
	runStore := memory.NewRunStore()

	payloadArchive := buildArchive(ctx, cfg, logger)
	pub := buildPublisher(ctx, cfg, logger)

	sourceOpts := source.Options{
		Timeout:    cfg.SourceTimeout(),
		Archive:    payloadArchive,
		Prefix:     cfg.Archive.Prefix,
		Clock:      clock,
		CiNiiAppID: cfg.Sources.CiNiiAppID,
		Logger:     logger.Named("source"),
	}
	limits := map[digest.SourceKind]ratelimit.Config{
		digest.SourceGoogleNews: {MaxConcurrent: cfg.Sources.GoogleNews.MaxConcurrent, RPS: cfg.Sources.GoogleNews.RPS},
		digest.SourceCiNii:      {MaxConcurrent: cfg.Sources.CiNii.MaxConcurrent, RPS: cfg.Sources.CiNii.RPS},
		digest.SourceArxiv:      {MaxConcurrent: cfg.Sources.Arxiv.MaxConcurrent, RPS: cfg.Sources.Arxiv.RPS},
	}
	sources := make(map[digest.SourceKind]digest.SourceClient)
	for kind, client := range source.All(sourceOpts) {
		sources[kind] = ratelimit.Wrap(client, limits[kind])
	}

	var providers []translate.Provider
	if cfg.Translation.OpenAIAPIKey != "" {
		providers = append(providers, translate.NewOpenAIProvider(cfg.Translation.OpenAIAPIKey, cfg.Translation.OpenAIModel))
	}
	if cfg.Translation.AnthropicAPIKey != "" {
		providers = append(providers, translate.NewAnthropicProvider(cfg.Translation.AnthropicAPIKey, cfg.Translation.AnthropicModel))
	}
	if len(providers) == 0 {
		logger.Warn("no translation providers configured, digests stay untranslated")
	}
	translator := translate.New(providers, cfg.Translation.BatchSize, logger.Named("translate"))

	planner := pipeline.NewPlanner(pipeline.PlannerOptions{
		Builder:         query.NewBuilder(clock),
		Sources:         sources,
		Articles:        articleStore,
		SentLog:         sentLog,
		Translator:      translator,
		Runs:            runStore,
		Clock:           clock,
		Logger:          logger.Named("planner"),
		SourceTimeout:   cfg.SourceTimeout(),
		DefaultLanguage: cfg.Translation.DefaultLanguage,
	})
	driver := pipeline.NewDriver(pipeline.DriverOptions{
		Planner:     planner,
		Configs:     configStore,
		Publisher:   pub,
		Topic:       cfg.PubSub.TopicName,
		Concurrency: cfg.Batch.Concurrency,
		Budget:      cfg.RunBudget(),
		Clock:       clock,
		Logger:      logger.Named("batch"),
	})

	apiServer := api.NewServer(planner, driver, configStore, runStore, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) digest.Archive {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		a, err := archive.NewGCS(client, cfg.Archive.GCSBucket)
		if err != nil {
			logger.Fatal("gcs archive init failed", zap.Error(err))
		}
		return a
	case "local":
		a, err := archive.NewLocal(cfg.Archive.LocalDir)
		if err != nil {
			logger.Fatal("local archive init failed", zap.Error(err))
		}
		return a
	default:
		return archive.NewNoop()
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) digest.Publisher {
	if cfg.PubSub.ProjectID == "" {
		logger.Warn("pubsub.project_id not set, batch summaries stay in memory")
		return memorypublisher.New()
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("pubsub client init failed", zap.Error(err))
	}
	return pubsubpublisher.New(client)
}
