package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/salestory/salestory/internal/api"
	"github.com/salestory/salestory/internal/auth"
	"github.com/salestory/salestory/internal/config"
	"github.com/salestory/salestory/internal/llm"
	"github.com/salestory/salestory/internal/observability"
	"github.com/salestory/salestory/internal/querygen"
	"github.com/salestory/salestory/internal/schema"
	"github.com/salestory/salestory/internal/storage"
	duckdbstore "github.com/salestory/salestory/internal/storage/duckdb"
	s3store "github.com/salestory/salestory/internal/storage/s3"
	"github.com/salestory/salestory/internal/story"
)

func main() {
	cfg, err := config.LoadFromEnv("salestory-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, cleanup, err := openStorage(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()
	defer func() { _ = db.Close() }()

	executor := storage.NewSQLExecutor(db, cfg.Storage.MaxQueryRows, cfg.Storage.QueryTimeout)

	schemaCtx := schema.Build(cfg.Storage.TableName)
	refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 30*time.Second)
	schemaCtx.Refresh(refreshCtx, executor, logger)
	cancelRefresh()

	aiClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize ai client", slog.Any("error", err))
		os.Exit(1)
	}

	generator := querygen.NewGenerator(aiClient, executor, schemaCtx, logger, cfg.Storage.MaxQueryRows, cfg.AI.SQLMaxTokens)
	synthesizer := story.NewSynthesizer(aiClient, logger, cfg.AI.StoryMaxTokens)

	deps := api.Dependencies{
		Logger:      logger,
		Generator:   generator,
		Synthesizer: synthesizer,
		Schema:      schemaCtx,
		CategoryMap: func(ctx context.Context) map[string][]string {
			return schemaCtx.CategoryMap(ctx, executor)
		},
		Readiness: api.CombineReadinessChecks(
			api.CheckStorage(executor.HealthCheck),
			api.CheckAIConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

// openStorage opens the analytics backend selected by configuration. With
// the duckdb driver and an enabled object store, the dataset parquet file is
// staged into the database at startup; the returned cleanup removes the
// staged files.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, func(), error) {
	noop := func() {}

	if cfg.Storage.Driver == "pgx" {
		db, err := storage.OpenPostgres(cfg.Storage)
		return db, noop, err
	}

	dsn := cfg.Storage.DSN
	if cfg.ObjectStore.Enabled {
		// In-memory database backed by the staged parquet view.
		dsn = ""
	}
	db, err := duckdbstore.Open(dsn)
	if err != nil {
		return nil, noop, err
	}

	if !cfg.ObjectStore.Enabled {
		return db, noop, nil
	}

	objectStore, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, noop, err
	}

	workDir, err := duckdbstore.StageDataset(ctx, db, objectStore, cfg.ObjectStore.DatasetKey, cfg.Storage.TableName)
	if err != nil {
		_ = db.Close()
		return nil, noop, err
	}
	logger.Info("dataset staged from object store",
		slog.String("key", cfg.ObjectStore.DatasetKey),
		slog.String("table", cfg.Storage.TableName))

	return db, func() { _ = os.RemoveAll(workDir) }, nil
}
