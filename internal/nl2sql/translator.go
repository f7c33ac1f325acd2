// Package nl2sql turns a natural-language question into one read-only SQL
// query over the described table.
package nl2sql

import (
	"context"
	"errors"

	"github.com/tableqa/tableqa/internal/schema"
)

// ErrInvalidSQL means the model answered with something that is not a
// single read-only query.
var ErrInvalidSQL = errors.New("model returned unusable sql")

type Request struct {
	Question string
	Table    schema.Descriptor
	// TopK caps rows when the question does not name a count.
	TopK int
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
