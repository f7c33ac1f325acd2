package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	nullText    = "NULL"
	cellDivider = " | "
)

// Result is a bounded, driver-neutral copy of a query result.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// RowScanner is the subset of *sql.Rows used by ScanRows.
type RowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// ScanRows reads at most limit rows; limit <= 0 reads everything. When more
// rows are available the result is marked truncated.
func ScanRows(rows RowScanner, limit int) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if limit > 0 && len(result.Rows) == limit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// FormatResult renders a result as the plain text handed to the answer
// composer. A single value renders bare; anything else renders as a header
// line plus one line per row. No rows render as the empty string.
func FormatResult(result Result) string {
	if len(result.Rows) == 0 {
		return ""
	}
	if len(result.Columns) == 1 && len(result.Rows) == 1 && !result.Truncated {
		return strings.TrimSpace(FormatValue(result.Rows[0][0]))
	}

	var b strings.Builder
	b.WriteString(strings.Join(result.Columns, cellDivider))
	for _, row := range result.Rows {
		b.WriteByte('\n')
		for i, value := range row {
			if i > 0 {
				b.WriteString(cellDivider)
			}
			b.WriteString(FormatValue(value))
		}
	}
	if result.Truncated {
		fmt.Fprintf(&b, "\n... (truncated after %d rows)", len(result.Rows))
	}
	return strings.TrimSpace(b.String())
}

func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return nullText
	case string:
		return typed
	case []byte:
		return string(typed)
	case float64:
		return formatFloat(typed, 64)
	case float32:
		return formatFloat(float64(typed), 32)
	case bool:
		return strconv.FormatBool(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.RFC3339)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func formatFloat(value float64, bitSize int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'g', -1, bitSize)
	}
	return strconv.FormatFloat(value, 'f', -1, bitSize)
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
