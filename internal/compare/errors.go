package compare

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyColumnMissing matches every *KeyColumnMissingError.
	ErrKeyColumnMissing = errors.New("key column missing")

	// ErrDuplicateKey matches every *DuplicateKeyError.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoCommonColumns is returned when two tables share no column at all,
	// so no key column can be chosen.
	ErrNoCommonColumns = errors.New("no common columns")
)

// Side identifies one of the two tables of a comparison.
type Side string

const (
	Before Side = "before"
	After  Side = "after"
)

// KeyColumnMissingError reports a key column absent from one or both tables.
type KeyColumnMissingError struct {
	Column string
	Sides  []Side   // Tables lacking the column
	Tables []string // Names of those tables, parallel to Sides
}

func (e *KeyColumnMissingError) Error() string {
	parts := make([]string, len(e.Sides))
	for i, side := range e.Sides {
		parts[i] = fmt.Sprintf("%s (%s)", side, e.Tables[i])
	}
	return fmt.Sprintf("key column %q missing from %s", e.Column, strings.Join(parts, " and "))
}

func (e *KeyColumnMissingError) Is(target error) bool {
	return target == ErrKeyColumnMissing
}

// DuplicateKeyError reports a key value appearing more than once in a table
// when the duplicate policy is DuplicateFail.
type DuplicateKeyError struct {
	Table  string
	Column string
	Key    string
	Rows   []int // 1-based data row numbers carrying the key
}

func (e *DuplicateKeyError) Error() string {
	rows := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		rows[i] = fmt.Sprint(r)
	}
	return fmt.Sprintf("duplicate key %q in column %q of %s (rows %s)", e.Key, e.Column, e.Table, strings.Join(rows, ", "))
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
