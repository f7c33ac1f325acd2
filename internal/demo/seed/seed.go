// Package seed fills a store with a synthetic medical_insurance dataset so
// the api has something to answer questions about.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

type Service struct {
	cfg       Config
	log       *slog.Logger
	sink      Sink
	generator *Generator
}

func NewService(cfg Config, logger *slog.Logger, sink Sink) (*Service, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Rows <= 0 {
		return nil, fmt.Errorf("rows must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		cfg:       cfg,
		log:       logger,
		sink:      sink,
		generator: NewGenerator(cfg.Seed),
	}, nil
}

// Run writes cfg.Rows policies and returns how many were written.
func (s *Service) Run(ctx context.Context) (int, error) {
	if err := s.sink.Prepare(ctx, s.cfg.Replace); err != nil {
		return 0, err
	}

	written := 0
	for written < s.cfg.Rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		size := min(s.cfg.BatchSize, s.cfg.Rows-written)
		if err := s.sink.Write(ctx, s.generator.Batch(size)); err != nil {
			return written, err
		}
		written += size
		s.log.DebugContext(ctx, "wrote seed batch",
			slog.String("table", s.cfg.Table),
			slog.Int("batch_size", size),
			slog.Int("written", written),
		)
	}
	s.log.InfoContext(ctx, "seeded table",
		slog.String("table", s.cfg.Table),
		slog.Int("rows", written),
		slog.Int64("seed", s.cfg.Seed),
	)
	return written, nil
}
