package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tableqa/tableqa/internal/config"
	"github.com/tableqa/tableqa/internal/demo/seed"
	"github.com/tableqa/tableqa/internal/observability"
	s3store "github.com/tableqa/tableqa/internal/storage/s3"
	"github.com/tableqa/tableqa/internal/store/sqlstore"
)

func main() {
	cfg, err := config.LoadFromEnv("tableqa-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(ctx, cfg, seedCfg.Table)
	if err != nil {
		logger.Error("failed to open seed sink", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeSink()

	service, err := seed.NewService(seedCfg, logger, sink)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("seeding table",
		slog.String("driver", cfg.Store.Driver),
		slog.String("table", seedCfg.Table),
		slog.Int("rows", seedCfg.Rows),
		slog.Bool("replace", seedCfg.Replace),
	)
	if _, err := service.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("seeding interrupted")
		} else {
			logger.Error("seeding failed", slog.Any("error", err))
		}
		closeSink()
		os.Exit(1)
	}
}

// openSink targets the same backend the api reads from. The sql DSN here
// needs write access, unlike the api's.
func openSink(ctx context.Context, cfg config.Config, table string) (seed.Sink, func(), error) {
	switch cfg.Store.Driver {
	case "mysql", "postgres":
		db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
			Dialect:         cfg.Store.Driver,
			DSN:             cfg.Store.DSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		sink, err := seed.NewSQLSink(db, cfg.Store.Driver, table)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sink, func() { _ = db.Close() }, nil
	case "duckdb":
		objects, err := s3store.New(ctx, s3store.Config{
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
			return nil, nil, err
		}
		sink, err := seed.NewParquetSink(objects, table)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
