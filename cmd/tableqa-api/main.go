package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tableqa/tableqa/internal/answer"
	"github.com/tableqa/tableqa/internal/api"
	"github.com/tableqa/tableqa/internal/api/uistatic"
	"github.com/tableqa/tableqa/internal/auth"
	"github.com/tableqa/tableqa/internal/config"
	"github.com/tableqa/tableqa/internal/llm"
	"github.com/tableqa/tableqa/internal/nl2sql"
	"github.com/tableqa/tableqa/internal/observability"
	"github.com/tableqa/tableqa/internal/pipeline"
	"github.com/tableqa/tableqa/internal/retrieval"
	s3store "github.com/tableqa/tableqa/internal/storage/s3"
	"github.com/tableqa/tableqa/internal/store"
	duckdbstore "github.com/tableqa/tableqa/internal/store/duckdb"
	"github.com/tableqa/tableqa/internal/store/sqlstore"
)

func main() {
	cfg, err := config.LoadFromEnv("tableqa-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelStartup()

	backing, err := openStore(startupCtx, cfg)
	if err != nil {
		logger.Error("failed to open data store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = backing.Close() }()

	descriptor, err := backing.Describe(startupCtx)
	if err != nil {
		logger.Error("failed to describe table", slog.String("table", cfg.Store.Table), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("table described",
		slog.String("table", descriptor.TableName()),
		slog.Int("columns", len(descriptor.Columns())),
		slog.Int("sample_rows", len(descriptor.SampleRows())),
	)

	client, err := llm.New(startupCtx, llm.Config{
		Provider: cfg.AI.Provider,
		BaseURL:  cfg.AI.BaseURL,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		Timeout:  cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize language model client", slog.Any("error", err))
		os.Exit(1)
	}

	translator, err := nl2sql.NewLLMTranslator(client, nl2sql.LLMConfig{
		Model: cfg.AI.Model,
		TopK:  cfg.AI.TopK,
	})
	if err != nil {
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}
	retriever, err := retrieval.New(translator, backing, descriptor, cfg.AI.TopK)
	if err != nil {
		logger.Error("failed to initialize retriever", slog.Any("error", err))
		os.Exit(1)
	}

	framing := answer.Framing{Domain: cfg.Framing.Domain, Fields: cfg.Framing.Fields}
	composer, err := answer.NewComposer(client, framing, answer.DefaultTemplate(), answer.Config{
		Model: cfg.AI.Model,
	})
	if err != nil {
		logger.Error("failed to initialize answer composer", slog.Any("error", err))
		os.Exit(1)
	}

	asker, err := pipeline.New(retriever, composer, pipeline.Options{
		Logger:      logger,
		MaxInFlight: cfg.Pipeline.MaxInFlight,
	})
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(backing.HealthCheck),
		DependencyTimeout: time.Second,
		Asker:             asker,
		Translator:        retriever,
		Schema:            descriptor,
		UI: uistatic.Handler(uistatic.Page{
			Title:  "Table Q&A",
			Domain: cfg.Framing.Domain,
			Fields: cfg.Framing.Fields,
		}),
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
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("provider", client.Provider()),
			slog.String("model", client.Model()),
		)
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

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "mysql", "postgres":
		dialect, err := sqlstore.LookupDialect(cfg.Store.Driver)
		if err != nil {
			return nil, err
		}
		db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
			Dialect:         cfg.Store.Driver,
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		backing, err := sqlstore.New(db, dialect, sqlstore.Options{
			Table:        cfg.Store.Table,
			SampleRows:   cfg.Store.SampleRows,
			RowLimit:     cfg.Store.RowLimit,
			QueryTimeout: cfg.Store.QueryTimeout,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return backing, nil
	case "duckdb":
		objects, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: false,
		})
		if err != nil {
			return nil, err
		}
		backing, err := duckdbstore.Open(ctx, objects, duckdbstore.Options{
			Table:        cfg.Store.Table,
			SampleRows:   cfg.Store.SampleRows,
			RowLimit:     cfg.Store.RowLimit,
			QueryTimeout: cfg.Store.QueryTimeout,
		})
		if err != nil {
			return nil, err
		}
		return backing, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
