// Package table loads delimited text sources into a normalized, in-memory
// table: an ordered list of unique column names and an ordered list of
// records, where every cell is a plain string.
//
// Normalization happens once, at load time. Missing cells, configured null
// tokens and (optionally) surrounding whitespace are resolved here so that
// every later comparison is a simple exact string match.
package table

import (
	"fmt"
	"strings"
)

// Record maps a column name to its normalized cell value.
// Records returned by a Table are shared and must be treated as read-only.
type Record map[string]string

// Get returns the value of column, or the empty string if the record has no
// such column.
func (r Record) Get(column string) string {
	return r[column]
}

// Table is the normalized in-memory form of a loaded source.
// A Table is immutable once constructed.
type Table struct {
	name    string
	columns []string
	colIdx  map[string]int
	records []Record
}

// New builds a table from a header and positional rows.
// Column names must be non-empty and unique, and every row must have exactly
// one value per column.
func New(name string, columns []string, rows [][]string) (*Table, error) {
	t, err := newTable(name, columns)
	if err != nil {
		return nil, err
	}

	t.records = make([]Record, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(row), len(columns))
		}
		t.records = append(t.records, t.makeRecord(row))
	}
	return t, nil
}

func newTable(name string, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns")
	}

	colIdx := make(map[string]int, len(columns))
	for i, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if prev, dup := colIdx[col]; dup {
			return nil, fmt.Errorf("duplicate column name %q at positions %d and %d", col, prev+1, i+1)
		}
		colIdx[col] = i
	}

	return &Table{
		name:    name,
		columns: append([]string(nil), columns...),
		colIdx:  colIdx,
	}, nil
}

func (t *Table) makeRecord(row []string) Record {
	rec := make(Record, len(t.columns))
	for i, col := range t.columns {
		rec[col] = row[i]
	}
	return rec
}

// Name returns the source name the table was loaded from.
func (t *Table) Name() string {
	return t.name
}

// Columns returns the column names in source order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIdx[name]
	return ok
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// Record returns the i-th record in source order.
func (t *Table) Record(i int) Record {
	return t.records[i]
}

func (t *Table) String() string {
	return fmt.Sprintf("Table{%s: [%s], %d rows}", t.name, strings.Join(t.columns, ", "), len(t.records))
}
