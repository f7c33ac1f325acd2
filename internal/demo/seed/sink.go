package seed

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/parquet-go/parquet-go"

	"github.com/tableqa/tableqa/internal/sqlguard"
	"github.com/tableqa/tableqa/internal/storage"
)

// Sink receives generated policies in batches.
type Sink interface {
	// Prepare creates the destination, clearing previous data when replace is set.
	Prepare(ctx context.Context, replace bool) error
	Write(ctx context.Context, batch []Policy) error
}

var columnTypes = map[string]map[string]string{
	"mysql": {
		"age":                  "INT NOT NULL",
		"gender":               "VARCHAR(10) NOT NULL",
		"bmi":                  "DOUBLE NOT NULL",
		"children":             "INT NOT NULL",
		"discount_eligibility": "VARCHAR(3) NOT NULL",
		"region":               "VARCHAR(16) NOT NULL",
		"expenses":             "DECIMAL(12,2) NOT NULL",
		"premium":              "DECIMAL(12,2) NOT NULL",
	},
	"postgres": {
		"age":                  "INTEGER NOT NULL",
		"gender":               "VARCHAR(10) NOT NULL",
		"bmi":                  "DOUBLE PRECISION NOT NULL",
		"children":             "INTEGER NOT NULL",
		"discount_eligibility": "VARCHAR(3) NOT NULL",
		"region":               "VARCHAR(16) NOT NULL",
		"expenses":             "NUMERIC(12,2) NOT NULL",
		"premium":              "NUMERIC(12,2) NOT NULL",
	},
}

// SQLSink writes into a mysql or postgres table with multi-row inserts.
type SQLSink struct {
	db      *sqlx.DB
	dialect string
	table   string
}

func NewSQLSink(db *sqlx.DB, dialect, table string) (*SQLSink, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if _, ok := columnTypes[dialect]; !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if err := sqlguard.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	return &SQLSink{db: db, dialect: dialect, table: table}, nil
}

func (s *SQLSink) Prepare(ctx context.Context, replace bool) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	if !replace {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.quoted()); err != nil {
		return fmt.Errorf("clear table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLSink) Write(ctx context.Context, batch []Policy) error {
	if len(batch) == 0 {
		return nil
	}
	if _, err := s.db.NamedExecContext(ctx, s.insertSQL(), batch); err != nil {
		return fmt.Errorf("insert %d rows into %s: %w", len(batch), s.table, err)
	}
	return nil
}

func (s *SQLSink) createTableSQL() string {
	types := columnTypes[s.dialect]
	defs := make([]string, 0, len(columns))
	for _, column := range columns {
		defs = append(defs, sqlguard.QuoteIdentifier(s.dialect, column)+" "+types[column])
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.quoted(), strings.Join(defs, ", "))
}

func (s *SQLSink) insertSQL() string {
	quoted := make([]string, 0, len(columns))
	named := make([]string, 0, len(columns))
	for _, column := range columns {
		quoted = append(quoted, sqlguard.QuoteIdentifier(s.dialect, column))
		named = append(named, ":"+column)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.quoted(), strings.Join(quoted, ", "), strings.Join(named, ", "))
}

func (s *SQLSink) quoted() string {
	return sqlguard.QuoteIdentifier(s.dialect, s.table)
}

// ParquetSink uploads each batch as one parquet part of the dataset.
type ParquetSink struct {
	objects storage.ObjectStore
	table   string
	next    int
}

func NewParquetSink(objects storage.ObjectStore, table string) (*ParquetSink, error) {
	if objects == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if _, err := storage.DatasetPrefix(table); err != nil {
		return nil, err
	}
	return &ParquetSink{objects: objects, table: table}, nil
}

// Prepare continues part numbering after existing parts, or deletes them
// when replace is set.
func (s *ParquetSink) Prepare(ctx context.Context, replace bool) error {
	prefix, err := storage.DatasetPrefix(s.table)
	if err != nil {
		return err
	}
	existing, err := s.objects.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list dataset parts: %w", err)
	}
	if !replace {
		s.next = len(existing)
		return nil
	}
	for _, object := range existing {
		if err := s.objects.Delete(ctx, object.Key); err != nil {
			return fmt.Errorf("delete dataset part %s: %w", object.Key, err)
		}
	}
	s.next = 0
	return nil
}

func (s *ParquetSink) Write(ctx context.Context, batch []Policy) error {
	if len(batch) == 0 {
		return nil
	}
	payload, err := encodeParquet(batch)
	if err != nil {
		return err
	}
	key, err := storage.BuildDatasetFilePath(s.table, s.next)
	if err != nil {
		return err
	}
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
	}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	s.next++
	return nil
}

func encodeParquet(batch []Policy) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Policy](buf)
	if _, err := writer.Write(batch); err != nil {
		return nil, fmt.Errorf("encode parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
