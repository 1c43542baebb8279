// Package compare computes keyed differences between two tables.
//
// A comparison reconciles the column sets, indexes both tables by the key
// column, partitions the keys into added, removed and common, and diffs the
// common rows cell by cell. Every step is deterministic: added keys follow
// the after table, removed and changed keys follow the before table, and
// columns follow the before table's header.
package compare

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/csvdiff/internal/table"
)

// parallelThreshold is the number of common keys below which the cell diff
// always runs on the calling goroutine.
const parallelThreshold = 4096

// Option configures Compare.
type Option func(*options)

type options struct {
	policy  DuplicatePolicy
	ignore  []string
	workers int
	ctx     context.Context
}

// WithDuplicatePolicy sets how repeated key values are handled (default DuplicateFail).
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithIgnoreColumns excludes columns from the cell diff.
func WithIgnoreColumns(cols ...string) Option {
	return func(o *options) { o.ignore = append(o.ignore, cols...) }
}

// WithWorkers diffs large tables on n goroutines. n <= 1 disables it.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithContext makes a parallel cell diff stop when ctx is done.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Compare computes the difference from before to after, keyed by key.
// It returns a complete Result or an error, never both.
func Compare(before, after *table.Table, key string, opts ...Option) (*Result, error) {
	o := options{policy: DuplicateFail, ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	policy, err := ParseDuplicatePolicy(string(o.policy))
	if err != nil {
		return nil, err
	}
	o.policy = policy

	schema, err := Reconcile(before, after, key, o.ignore...)
	if err != nil {
		return nil, err
	}

	bIdx, err := BuildIndex(before, key, o.policy)
	if err != nil {
		return nil, err
	}
	aIdx, err := BuildIndex(after, key, o.policy)
	if err != nil {
		return nil, err
	}

	added, removed := DiffRows(bIdx, aIdx)
	common := CommonKeys(bIdx, aIdx)

	var changes []CellChange
	if o.workers > 1 && len(common) >= parallelThreshold {
		changes, err = DiffCellsParallel(o.ctx, bIdx, aIdx, common, schema.Columns, o.workers)
		if err != nil {
			return nil, fmt.Errorf("diff cells: %w", err)
		}
	} else {
		changes = DiffCells(bIdx, aIdx, common, schema.Columns)
	}

	return newResult(schema, o.policy, bIdx, aIdx, added, removed, changes), nil
}
