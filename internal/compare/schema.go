package compare

import "github.com/JonMunkholm/csvdiff/internal/table"

// Schema is the reconciled column layout of a comparison.
type Schema struct {
	Key     string   // Key column, present in both tables
	Columns []string // Common non-key columns in before-table order
}

// Reconcile validates the key column against both tables and computes the
// columns compared cell by cell: the columns of before that also exist in
// after, minus the key and any ignored columns.
//
// An empty column list is valid; only a missing key column is an error.
func Reconcile(before, after *table.Table, key string, ignore ...string) (Schema, error) {
	if err := checkKey(before, after, key); err != nil {
		return Schema{}, err
	}

	skip := make(map[string]struct{}, len(ignore)+1)
	skip[key] = struct{}{}
	for _, col := range ignore {
		skip[col] = struct{}{}
	}

	var cols []string
	for _, col := range CommonColumns(before, after) {
		if _, ok := skip[col]; ok {
			continue
		}
		cols = append(cols, col)
	}

	return Schema{Key: key, Columns: cols}, nil
}

func checkKey(before, after *table.Table, key string) error {
	var missing *KeyColumnMissingError
	for _, s := range []struct {
		side Side
		t    *table.Table
	}{{Before, before}, {After, after}} {
		if s.t.HasColumn(key) {
			continue
		}
		if missing == nil {
			missing = &KeyColumnMissingError{Column: key}
		}
		missing.Sides = append(missing.Sides, s.side)
		missing.Tables = append(missing.Tables, s.t.Name())
	}
	if missing != nil {
		return missing
	}
	return nil
}

// CommonColumns returns every column present in both tables, in the order of
// a's header.
func CommonColumns(a, b *table.Table) []string {
	var common []string
	for _, col := range a.Columns() {
		if b.HasColumn(col) {
			common = append(common, col)
		}
	}
	return common
}

// KeyCandidates returns the columns that can serve as the key column of a
// comparison between a and b. It fails with ErrNoCommonColumns when the
// tables share no column.
func KeyCandidates(a, b *table.Table) ([]string, error) {
	common := CommonColumns(a, b)
	if len(common) == 0 {
		return nil, ErrNoCommonColumns
	}
	return common, nil
}
