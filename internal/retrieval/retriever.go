// Package retrieval synthesizes a query for a question and runs it against
// the store. Each call is a single attempt.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tableqa/tableqa/internal/nl2sql"
	"github.com/tableqa/tableqa/internal/schema"
	"github.com/tableqa/tableqa/internal/store"
)

var (
	// ErrSynthesis wraps failures to produce a usable query.
	ErrSynthesis = errors.New("query synthesis failed")
	// ErrDataAccess wraps failures to run a query that was produced.
	ErrDataAccess = errors.New("data access failed")
)

type Retrieval struct {
	SQL    string
	Result string
}

type Retriever struct {
	translator nl2sql.Translator
	store      store.Store
	table      schema.Descriptor
	topK       int
}

// New fixes the table descriptor for the retriever's lifetime.
func New(translator nl2sql.Translator, backing store.Store, table schema.Descriptor, topK int) (*Retriever, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if backing == nil {
		return nil, fmt.Errorf("store is required")
	}
	if table.IsZero() {
		return nil, fmt.Errorf("table descriptor is required")
	}
	return &Retriever{translator: translator, store: backing, table: table, topK: topK}, nil
}

// Translate only synthesizes the query.
func (r *Retriever) Translate(ctx context.Context, question string) (nl2sql.Result, error) {
	result, err := r.translator.Translate(ctx, nl2sql.Request{Question: question, Table: r.table, TopK: r.topK})
	if err != nil {
		return nl2sql.Result{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return result, nil
}

// Execute runs a query produced by Translate and returns the trimmed result.
func (r *Retriever) Execute(ctx context.Context, sqlText string) (Retrieval, error) {
	result, err := r.store.Execute(ctx, sqlText)
	if err != nil {
		return Retrieval{SQL: sqlText}, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}
	return Retrieval{SQL: sqlText, Result: strings.TrimSpace(result)}, nil
}
