// Package duckdb serves a table whose parquet parts live in an object store.
// The parts are loaded once into a local DuckDB file that is then reopened
// read-only with external file access disabled.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tableqa/tableqa/internal/schema"
	"github.com/tableqa/tableqa/internal/sqlguard"
	"github.com/tableqa/tableqa/internal/storage"
	"github.com/tableqa/tableqa/internal/store"
)

const dialect = "duckdb"

type Options struct {
	Table        string
	SampleRows   int
	RowLimit     int
	QueryTimeout time.Duration
}

type Store struct {
	db           *sql.DB
	workDir      string
	table        string
	sampleRows   int
	rowLimit     int
	queryTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// Open downloads every parquet part of the table and materializes it.
func Open(ctx context.Context, objects storage.ObjectStore, opts Options) (*Store, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if err := sqlguard.ValidateIdentifier(opts.Table); err != nil {
		return nil, fmt.Errorf("store table: %w", err)
	}
	if opts.SampleRows < 0 {
		return nil, fmt.Errorf("sample rows must be >= 0")
	}
	prefix, err := storage.DatasetPrefix(opts.Table)
	if err != nil {
		return nil, err
	}

	parts, err := objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list dataset %q: %w", store.ErrUnavailable, prefix, err)
	}
	parquetKeys := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.HasSuffix(part.Key, ".parquet") {
			parquetKeys = append(parquetKeys, part.Key)
		}
	}
	if len(parquetKeys) == 0 {
		return nil, fmt.Errorf("no parquet files under %q", prefix)
	}

	workDir, err := os.MkdirTemp("", "tableqa-duckdb-")
	if err != nil {
		return nil, fmt.Errorf("create duckdb work dir: %w", err)
	}
	dbPath := filepath.Join(workDir, "dataset.duckdb")
	if err := materialize(ctx, objects, workDir, dbPath, opts.Table, parquetKeys); err != nil {
		_ = os.RemoveAll(workDir)
		return nil, err
	}

	db, err := sql.Open("duckdb", dbPath+"?access_mode=READ_ONLY&enable_external_access=false")
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, fmt.Errorf("open duckdb read-only: %w", err)
	}
	return &Store{
		db:           db,
		workDir:      workDir,
		table:        opts.Table,
		sampleRows:   opts.SampleRows,
		rowLimit:     opts.RowLimit,
		queryTimeout: opts.QueryTimeout,
	}, nil
}

func materialize(ctx context.Context, objects storage.ObjectStore, workDir, dbPath, table string, keys []string) error {
	localPaths := make([]string, 0, len(keys))
	for index, key := range keys {
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(table), index))
		if err := download(ctx, objects, key, localPath); err != nil {
			return err
		}
		localPaths = append(localPaths, localPath)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	createSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM read_parquet(%s)`, sqlguard.QuoteIdentifier(dialect, table), quoteStringArray(localPaths))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("load table %q: %w", table, err)
	}
	for _, localPath := range localPaths {
		_ = os.Remove(localPath)
	}
	return nil
}

func download(ctx context.Context, objects storage.ObjectStore, key, localPath string) error {
	reader, err := objects.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: get object %q: %w", store.ErrUnavailable, key, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("download object %q: %w", key, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close local parquet file %q: %w", localPath, err)
	}
	return nil
}

func (s *Store) Describe(ctx context.Context) (schema.Descriptor, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`, s.table)
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("describe table %q: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var col schema.Column
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return schema.Descriptor{}, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return schema.Descriptor{}, fmt.Errorf("iterate columns: %w", err)
	}

	samples := make([][]string, 0, s.sampleRows)
	if s.sampleRows > 0 {
		result, err := s.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", sqlguard.QuoteIdentifier(dialect, s.table), s.sampleRows), s.sampleRows)
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

	return schema.New(dialect, s.table, columns, samples)
}

func (s *Store) Execute(ctx context.Context, sqlText string) (string, error) {
	if strings.TrimSpace(sqlText) == "" {
		return "", fmt.Errorf("sql is required")
	}
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
	err := s.db.Close()
	_ = os.RemoveAll(s.workDir)
	return err
}

func (s *Store) query(ctx context.Context, sqlText string, limit int) (store.Result, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
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

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}
