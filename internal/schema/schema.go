// Package schema holds the descriptor of the single table questions are
// answered against. A Descriptor is captured once at startup and never
// changes afterwards.
package schema

import (
	"fmt"
	"strings"
)

// SampleValueWidth caps how much of each sample value is shown to the model.
const SampleValueWidth = 100

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Descriptor struct {
	dialect    string
	tableName  string
	columns    []Column
	sampleRows [][]string
}

// New copies its inputs so later mutation by the caller cannot leak into
// the descriptor.
func New(dialect, tableName string, columns []Column, sampleRows [][]string) (Descriptor, error) {
	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return Descriptor{}, fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return Descriptor{}, fmt.Errorf("table %q has no columns", tableName)
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)

	rows := make([][]string, 0, len(sampleRows))
	for _, row := range sampleRows {
		if len(row) != len(cols) {
			return Descriptor{}, fmt.Errorf("sample row has %d values, table %q has %d columns", len(row), tableName, len(cols))
		}
		copied := make([]string, len(row))
		for i, value := range row {
			copied[i] = truncate(value, SampleValueWidth)
		}
		rows = append(rows, copied)
	}

	return Descriptor{
		dialect:    strings.TrimSpace(dialect),
		tableName:  tableName,
		columns:    cols,
		sampleRows: rows,
	}, nil
}

func (d Descriptor) Dialect() string   { return d.dialect }
func (d Descriptor) TableName() string { return d.tableName }

func (d Descriptor) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d Descriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.columns))
	for _, col := range d.columns {
		names = append(names, col.Name)
	}
	return names
}

func (d Descriptor) SampleRows() [][]string {
	out := make([][]string, 0, len(d.sampleRows))
	for _, row := range d.sampleRows {
		copied := make([]string, len(row))
		copy(copied, row)
		out = append(out, copied)
	}
	return out
}

func (d Descriptor) IsZero() bool {
	return d.tableName == ""
}

// Render returns the table info block given to the query synthesizer: a
// CREATE TABLE sketch followed by a comment with the sample rows.
func (d Descriptor) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.tableName)
	for i, col := range d.columns {
		b.WriteString("\t")
		b.WriteString(col.Name)
		if col.Type != "" {
			b.WriteString(" ")
			b.WriteString(strings.ToUpper(col.Type))
		}
		if i < len(d.columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")

	if len(d.sampleRows) > 0 {
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n", len(d.sampleRows), d.tableName)
		b.WriteString(strings.Join(d.ColumnNames(), "\t"))
		b.WriteString("\n")
		for _, row := range d.sampleRows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("*/")
	}
	return b.String()
}

// View is the JSON shape of a Descriptor.
type View struct {
	Dialect    string     `json:"dialect"`
	TableName  string     `json:"table_name"`
	Columns    []Column   `json:"columns"`
	SampleRows [][]string `json:"sample_rows"`
}

func (d Descriptor) View() View {
	return View{
		Dialect:    d.dialect,
		TableName:  d.tableName,
		Columns:    d.Columns(),
		SampleRows: d.SampleRows(),
	}
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if len(runes) <= width {
		return value
	}
	return string(runes[:width]) + "..."
}
