// Package store is the read-only backing store questions are answered from.
package store

import (
	"context"
	"errors"

	"github.com/tableqa/tableqa/internal/schema"
)

// ErrUnavailable marks failures to reach the backing store at all, as
// opposed to a query the store rejected.
var ErrUnavailable = errors.New("store unavailable")

// Store is scoped to a single table. Implementations must be safe for
// concurrent use.
type Store interface {
	// Describe captures the table's columns and a few sample rows.
	Describe(ctx context.Context) (schema.Descriptor, error)
	// Execute runs one read-only query and returns its rendered result.
	Execute(ctx context.Context, sqlText string) (string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
