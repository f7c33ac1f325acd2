// Package sqlstore serves a single mysql or postgres table through sqlx.
// Every query runs inside a read-only transaction that is always rolled
// back, so the server rejects writes even if one slips past sqlguard.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tableqa/tableqa/internal/schema"
	"github.com/tableqa/tableqa/internal/sqlguard"
	"github.com/tableqa/tableqa/internal/store"
)

type Options struct {
	Table        string
	SampleRows   int
	RowLimit     int
	QueryTimeout time.Duration
}

type Store struct {
	db           *sqlx.DB
	dialect      Dialect
	table        string
	sampleRows   int
	rowLimit     int
	queryTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB, dialect Dialect, opts Options) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if err := sqlguard.ValidateIdentifier(opts.Table); err != nil {
		return nil, fmt.Errorf("store table: %w", err)
	}
	if opts.SampleRows < 0 {
		return nil, fmt.Errorf("sample rows must be >= 0")
	}
	return &Store{
		db:           db,
		dialect:      dialect,
		table:        opts.Table,
		sampleRows:   opts.SampleRows,
		rowLimit:     opts.RowLimit,
		queryTimeout: opts.QueryTimeout,
	}, nil
}

type columnRow struct {
	Name string `db:"name"`
	Type string `db:"type"`
}

func (s *Store) Describe(ctx context.Context) (schema.Descriptor, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []columnRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.columnsQuery, s.table); err != nil {
		return schema.Descriptor{}, fmt.Errorf("describe table %q: %w", s.table, err)
	}
	if len(rows) == 0 {
		return schema.Descriptor{}, fmt.Errorf("table %q not found", s.table)
	}
	columns := make([]schema.Column, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, schema.Column{Name: row.Name, Type: row.Type})
	}

	samples := make([][]string, 0, s.sampleRows)
	if s.sampleRows > 0 {
		sampleSQL := fmt.Sprintf("SELECT * FROM %s LIMIT %d", sqlguard.QuoteIdentifier(s.dialect.Name, s.table), s.sampleRows)
		result, err := s.query(ctx, sampleSQL, s.sampleRows)
		if err != nil {
			return schema.Descriptor{}, fmt.Errorf("sample table %q: %w", s.table, err)
		}
		for _, row := range result.Rows {
			values := make([]string, len(row))
			for i, value := range row {
				values[i] = store.FormatValue(value)
			}
			samples = append(samples, values)
		}
	}

	return schema.New(s.dialect.Name, s.table, columns, samples)
}

func (s *Store) Execute(ctx context.Context, sqlText string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.query(ctx, sqlText, s.rowLimit)
	if err != nil {
		return "", err
	}
	return store.FormatResult(result), nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, sqlText string, limit int) (store.Result, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return store.Result{}, fmt.Errorf("%w: begin read-only transaction: %w", store.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return store.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return store.ScanRows(rows, limit)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
