package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/glasswing-ai/tracelens/internal/api"
	"github.com/glasswing-ai/tracelens/internal/config"
	"github.com/glasswing-ai/tracelens/internal/consumer"
	"github.com/glasswing-ai/tracelens/internal/eval"
	"github.com/glasswing-ai/tracelens/internal/ingestion"
	"github.com/glasswing-ai/tracelens/internal/logger"
	"github.com/glasswing-ai/tracelens/internal/queue"
	"github.com/glasswing-ai/tracelens/internal/queue/sqs"
	"github.com/glasswing-ai/tracelens/internal/repository/clickhouse"
	"github.com/glasswing-ai/tracelens/internal/repository/postgres"
	"github.com/glasswing-ai/tracelens/internal/repository/rediscache"
	"github.com/glasswing-ai/tracelens/internal/tokenizer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting telemetry worker",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize ClickHouse client and columnar store
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	store := clickhouse.NewRepository(chClient, log)

	// Initialize schema (create tables if not exist)
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Columnar store schema initialized")

	// Initialize Redis record cache
	cache, err := rediscache.New(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create Redis cache", zap.Error(err))
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Error("Failed to close Redis cache", zap.Error(err))
		}
	}()

	// Initialize Postgres catalog
	catalog, err := postgres.New(ctx, cfg.Postgres.DSN, log)
	if err != nil {
		log.Fatal("Failed to create Postgres catalog", zap.Error(err))
	}
	defer catalog.Close()

	// Initialize SQS clients, one per queue
	sqsAPI, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}
	ingestionQueue := sqs.ForQueue(sqsAPI, cfg.SQS.IngestionQueueURL, log)
	upsertQueue := sqs.ForQueue(sqsAPI, cfg.SQS.TraceUpsertQueueURL, log)
	executionQueue := sqs.ForQueue(sqsAPI, cfg.SQS.EvalExecutionQueueURL, log)

	// Wire the ingestion pipeline
	pipeline := ingestion.NewPipeline(cache, store, catalog, tokenizer.New(log), log)
	upsertPublisher := queue.NewTraceUpsertPublisher(upsertQueue, log)
	executionPublisher := queue.NewEvalExecutionPublisher(executionQueue, log)

	// Wire the eval engine
	trigger := eval.NewTrigger(catalog, store, executionPublisher, log)
	completer := eval.NewOpenAICompleter(cfg.LLM.BaseURL, cfg.LLM.APIKey, log)
	executor := eval.NewExecutor(catalog, store, cache, completer, log)

	workerConfig := consumer.WorkerConfig{
		MaxMessages:     cfg.Worker.MaxMessages,
		WaitTimeSeconds: cfg.Worker.WaitTimeSeconds,
		BufferSize:      cfg.Worker.BufferSize,
		Concurrency:     cfg.Worker.Concurrency,
	}

	workers := []*consumer.Worker{
		consumer.NewWorker("ingestion", ingestionQueue,
			consumer.NewIngestionHandler(pipeline, upsertPublisher, log), workerConfig, log),
		consumer.NewWorker("trace-upsert", upsertQueue,
			consumer.NewTriggerHandler(trigger, log), workerConfig, log),
		consumer.NewWorker("eval-execution", executionQueue,
			consumer.NewExecutionHandler(executor, executionPublisher, cfg.Worker.EvalMaxAttempts, log), workerConfig, log),
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(workerCtx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Start(gctx)
		})
	}

	// Serve health and metrics
	healthServer := &http.Server{
		Addr:    ":" + cfg.Service.HealthPort,
		Handler: api.NewHandler(store, log),
	}
	go func() {
		log.Info("Health server starting", zap.String("address", healthServer.Addr))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health server error", zap.Error(err))
		}
	}()

	log.Info("Workers started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down health server", zap.Error(err))
	}

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
	}
}
