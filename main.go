package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homescout/config"
	"homescout/ingest"
	"homescout/notify"
	"homescout/providers"
	"homescout/scheduler"
	"homescout/services"
	"homescout/services/alerts"
	"homescout/services/learning"
	"homescout/storage"
	"homescout/utils"
)

// weightStore backs the learning service and the per-user learning job.
type weightStore interface {
	learning.Store
	storage.FeedbackStore
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger().Error("Invalid configuration: %v", err)
		return 1
	}

	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== HomeScout starting ===")
	logger.Info("Config: store=%s | sources=%v | max_pages=%d | max_detail_calls=%d | concurrency=%d | interval=%s",
		cfg.Store, cfg.Sources, cfg.MaxPages, cfg.MaxDetailCalls, cfg.DetailConcurrency, cfg.IngestionInterval)

	criteria, err := config.NewCriteriaStore(cfg.CriteriaPath, logger)
	if err != nil {
		logger.Error("Failed to load buyer criteria: %v", err)
		return 1
	}
	if _, err := criteria.Watch(ctx, cfg.CriteriaReload); err != nil {
		logger.Warn("Criteria hot reload disabled: %v", err)
	}

	retry := utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger}

	var store storage.Store
	var weights weightStore
	switch cfg.Store {
	case "postgres":
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN(), retry)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return 1
		}
		defer pg.Close()

		ws, err := storage.NewWeightStore(ctx, cfg.PoolURL())
		if err != nil {
			logger.Error("Failed to open weight store: %v", err)
			return 1
		}
		defer ws.Close()
		store, weights = pg, ws
	default:
		mem := storage.NewMemoryStore()
		store, weights = mem, mem
		logger.Warn("Using the in-memory store, listings are lost on exit")
	}

	var transport notify.Transport = notify.NewLogTransport(logger)
	if cfg.RedisAddr != "" {
		pub, err := notify.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisAlertChannel, logger)
		if err != nil {
			logger.Error("Failed to connect to Redis: %v", err)
			return 1
		}
		defer pub.Close()
		transport = pub
		logger.Info("Publishing alerts to redis channel %s", cfg.RedisAlertChannel)
	}

	registry := providers.DefaultRegistry()
	for _, key := range cfg.Sources {
		if !registry.Has(key) {
			logger.Warn("Unknown ingestion source %q, known sources: %v", key, registry.Keys())
		}
	}
	factory := func(key string) (providers.Provider, error) {
		return registry.New(key, cfg, logger)
	}

	orchestrator := ingest.New(
		ingest.OptionsFromConfig(cfg, criteria.Current()),
		factory,
		storage.NewPersister(store, logger),
		criteria,
		logger,
	)
	learner := learning.NewService(weights, logger)
	evaluator := alerts.NewEvaluator(store, transport, criteria, logger,
		alerts.WithMode(cfg.SearchMode),
		alerts.WithLearnedWeights(learner, cfg.AlertUserID),
	)

	pipeline := &scheduler.Pipeline{
		Ingester:  orchestrator,
		Store:     store,
		Criteria:  criteria,
		Evaluator: evaluator,
		Learner:   learner,
		Users:     weights,
		Insights:  services.NewInsightService(logger),
		Weights:   learner,
		UserID:    cfg.AlertUserID,
		Mode:      cfg.SearchMode,
		Logger:    logger,
	}
	if cfg.ExportCSVPath != "" {
		exporter, err := storage.NewCSVExporter(cfg.ExportCSVPath)
		if err != nil {
			logger.Error("Failed to create CSV exporter: %v", err)
			return 1
		}
		pipeline.Exporter = exporter
	}

	if cfg.RunOnce {
		if _, err := pipeline.RunCycle(ctx); err != nil {
			logger.Error("Run finished with errors: %v", err)
			return 1
		}
		logger.Info("Done.")
		return 0
	}

	sched := scheduler.New(pipeline, cfg.IngestionInterval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler: %v", err)
		return 1
	}
	<-ctx.Done()
	logger.Info("Shutting down...")
	sched.Stop()
	return 0
}
