package compare

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/spaolacci/murmur3"
)

// Summary holds the counts of a comparison.
type Summary struct {
	Added       int            `json:"added"`
	Removed     int            `json:"removed"`
	Changed     int            `json:"changed"`      // Cell changes
	BeforeRows  int            `json:"before_rows"`  // Distinct keys in before
	AfterRows   int            `json:"after_rows"`   // Distinct keys in after
	ChangedRows int            `json:"changed_rows"` // Common keys with at least one cell change
	Duplicates  int            `json:"duplicates"`   // Key values repeated in either table
	Columns     map[string]int `json:"columns"`      // Cell changes per column
}

// DuplicateKeys lists the key values that occurred on more than one row of
// each table. Only DuplicateKeepFirst and DuplicateKeepLast let a comparison
// finish with any.
type DuplicateKeys struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}

// Len returns the number of duplicated key values across both tables.
func (d DuplicateKeys) Len() int {
	return len(d.Before) + len(d.After)
}

// HasDifferences reports whether any row or cell differs.
func (s Summary) HasDifferences() bool {
	return s.Added > 0 || s.Removed > 0 || s.Changed > 0
}

// Result is the immutable outcome of a comparison. Accessors return copies.
type Result struct {
	key     string
	columns []string
	policy  DuplicatePolicy
	added   []string
	removed []string
	changes []CellChange
	dups    DuplicateKeys
	summary Summary
}

func newResult(schema Schema, policy DuplicatePolicy, before, after *Index, added, removed []string, changes []CellChange) *Result {
	perColumn := make(map[string]int, len(schema.Columns))
	for _, col := range schema.Columns {
		perColumn[col] = 0
	}
	changedRows := 0
	for i, c := range changes {
		perColumn[c.Column]++
		if i == 0 || changes[i-1].Key != c.Key {
			changedRows++
		}
	}

	dups := DuplicateKeys{Before: before.Duplicates(), After: after.Duplicates()}

	return &Result{
		key:     schema.Key,
		columns: schema.Columns,
		policy:  policy,
		added:   added,
		removed: removed,
		changes: changes,
		dups:    dups,
		summary: Summary{
			Added:       len(added),
			Removed:     len(removed),
			Changed:     len(changes),
			BeforeRows:  before.Len(),
			AfterRows:   after.Len(),
			ChangedRows: changedRows,
			Duplicates:  dups.Len(),
			Columns:     perColumn,
		},
	}
}

func (r *Result) Summary() Summary {
	s := r.summary
	s.Columns = maps.Clone(r.summary.Columns)
	return s
}

func (r *Result) AddedKeys() []string { return clone(r.added) }
func (r *Result) RemovedKeys() []string { return clone(r.removed) }
func (r *Result) CellChanges() []CellChange { return clone(r.changes) }
func (r *Result) KeyColumn() string { return r.key }
func (r *Result) Columns() []string { return clone(r.columns) }
func (r *Result) Policy() DuplicatePolicy { return r.policy }

// DuplicateKeys returns the key values the duplicate policy collapsed.
func (r *Result) DuplicateKeys() DuplicateKeys {
	return DuplicateKeys{Before: clone(r.dups.Before), After: clone(r.dups.After)}
}

func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Digest returns a hex murmur3-128 hash over the key column, the compared
// columns and the ordered added, removed and changed sequences. Equal
// comparisons have equal digests.
func (r *Result) Digest() string {
	h := murmur3.New128()
	var lenBuf [binary.MaxVarintLen64]byte
	write := func(s string) {
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:n])
		h.Write([]byte(s))
	}
	section := func(tag string, n int) {
		write(tag)
		write(fmt.Sprint(n))
	}

	write(r.key)
	section("columns", len(r.columns))
	for _, c := range r.columns {
		write(c)
	}
	section("added", len(r.added))
	for _, k := range r.added {
		write(k)
	}
	section("removed", len(r.removed))
	for _, k := range r.removed {
		write(k)
	}
	section("changes", len(r.changes))
	for _, c := range r.changes {
		write(c.Key)
		write(c.Column)
		write(c.Before)
		write(c.After)
	}
	section("duplicates", r.dups.Len())
	for _, k := range r.dups.Before {
		write(k)
	}
	write("|")
	for _, k := range r.dups.After {
		write(k)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// resultJSON is the wire form of a Result.
type resultJSON struct {
	KeyColumn       string          `json:"key_column"`
	Columns         []string        `json:"columns"`
	DuplicatePolicy DuplicatePolicy `json:"duplicate_policy"`
	Summary         Summary         `json:"summary"`
	AddedKeys       []string        `json:"added_keys"`
	RemovedKeys     []string        `json:"removed_keys"`
	CellChanges     []CellChange    `json:"cell_changes"`
	DuplicateKeys   DuplicateKeys   `json:"duplicate_keys"`
}

func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		KeyColumn:       r.key,
		Columns:         nonNil(r.columns),
		DuplicatePolicy: r.policy,
		Summary:         r.summary,
		AddedKeys:       nonNil(r.added),
		RemovedKeys:     nonNil(r.removed),
		CellChanges:     nonNil(r.changes),
		DuplicateKeys: DuplicateKeys{
			Before: nonNil(r.dups.Before),
			After:  nonNil(r.dups.After),
		},
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// DecodeResult rebuilds a Result from its JSON form. The summary counts are
// recomputed from the sequences; only the row totals are taken from the input.
func DecodeResult(data []byte) (*Result, error) {
	var w resultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if w.KeyColumn == "" {
		return nil, fmt.Errorf("decode result: missing key_column")
	}
	policy, err := ParseDuplicatePolicy(string(w.DuplicatePolicy))
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	r := newResult(
		Schema{Key: w.KeyColumn, Columns: nonNil(w.Columns)},
		policy,
		&Index{dups: w.DuplicateKeys.Before}, &Index{dups: w.DuplicateKeys.After},
		nonNil(w.AddedKeys), nonNil(w.RemovedKeys), nonNil(w.CellChanges),
	)
	r.summary.BeforeRows = w.Summary.BeforeRows
	r.summary.AfterRows = w.Summary.AfterRows
	return r, nil
}
