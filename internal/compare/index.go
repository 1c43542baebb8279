package compare

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvdiff/internal/table"
)

// DuplicatePolicy decides what happens when a key value occurs on more than
// one row of a table. The same policy is applied to both tables.
type DuplicatePolicy string

const (
	// DuplicateFail rejects the table with a *DuplicateKeyError.
	DuplicateFail DuplicatePolicy = "fail"
	// DuplicateKeepFirst indexes the first row carrying the key.
	DuplicateKeepFirst DuplicatePolicy = "first"
	// DuplicateKeepLast indexes the last row carrying the key.
	DuplicateKeepLast DuplicatePolicy = "last"
)

// ParseDuplicatePolicy parses a policy name. The empty string is DuplicateFail.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicateFail:
		return DuplicateFail, nil
	case DuplicateKeepFirst:
		return DuplicateKeepFirst, nil
	case DuplicateKeepLast:
		return DuplicateKeepLast, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want fail, first or last)", s)
	}
}

// Index maps key values of one table to the record bearing them.
// Keys keep the order of their first appearance in the table.
type Index struct {
	keys    []string
	records map[string]table.Record
	dups    []string
}

// BuildIndex indexes t by the values of column.
func BuildIndex(t *table.Table, column string, policy DuplicatePolicy) (*Index, error) {
	policy, err := ParseDuplicatePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if !t.HasColumn(column) {
		return nil, fmt.Errorf("%w: %q not in %s", ErrKeyColumnMissing, column, t.Name())
	}

	idx := &Index{
		keys:    make([]string, 0, t.Len()),
		records: make(map[string]table.Record, t.Len()),
	}

	var firstRow map[string]int
	if policy == DuplicateFail {
		firstRow = make(map[string]int)
	}

	for i := 0; i < t.Len(); i++ {
		rec := t.Record(i)
		key := rec.Get(column)

		if _, seen := idx.records[key]; !seen {
			idx.keys = append(idx.keys, key)
			idx.records[key] = rec
			if firstRow != nil {
				firstRow[key] = i + 1
			}
			continue
		}

		switch policy {
		case DuplicateKeepFirst:
		case DuplicateKeepLast:
			idx.records[key] = rec
		default:
			return nil, &DuplicateKeyError{
				Table:  t.Name(),
				Column: column,
				Key:    key,
				Rows:   []int{firstRow[key], i + 1},
			}
		}
		if !idx.isDuplicate(key) {
			idx.dups = append(idx.dups, key)
		}
	}

	return idx, nil
}

func (x *Index) isDuplicate(key string) bool {
	for _, d := range x.dups {
		if d == key {
			return true
		}
	}
	return false
}

// Keys returns the distinct key values in first-appearance order.
func (x *Index) Keys() []string {
	return append([]string(nil), x.keys...)
}

// Len returns the number of distinct keys.
func (x *Index) Len() int {
	return len(x.keys)
}

// Has reports whether key is indexed.
func (x *Index) Has(key string) bool {
	_, ok := x.records[key]
	return ok
}

// Lookup returns the record indexed under key.
func (x *Index) Lookup(key string) (table.Record, bool) {
	rec, ok := x.records[key]
	return rec, ok
}

// Duplicates returns key values that occurred on more than one row, in the
// order the second occurrence was seen. Always empty under DuplicateFail.
func (x *Index) Duplicates() []string {
	return append([]string(nil), x.dups...)
}
