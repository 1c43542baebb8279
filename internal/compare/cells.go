package compare

import (
	"context"
	"slices"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"
)

// CellChange is a single cell whose value differs between the two tables.
type CellChange struct {
	Key    string `json:"key"`
	Column string `json:"column"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// DiffCells compares the given columns of every common key. Keys are visited
// in the order given and columns in column order, so the output order is
// fully determined by the inputs. Values are compared as exact strings.
func DiffCells(before, after *Index, keys, columns []string) []CellChange {
	changes := make([]CellChange, 0)
	for _, key := range keys {
		changes = diffKey(changes, before, after, key, columns)
	}
	return changes
}

func diffKey(dst []CellChange, before, after *Index, key string, columns []string) []CellChange {
	b, _ := before.Lookup(key)
	a, _ := after.Lookup(key)
	for _, col := range columns {
		bv, av := b.Get(col), a.Get(col)
		if bv != av {
			dst = append(dst, CellChange{Key: key, Column: col, Before: bv, After: av})
		}
	}
	return dst
}

// shardChange tags a change with the position of its key so shards can be
// merged back into key order.
type shardChange struct {
	pos    int
	change CellChange
}

// DiffCellsParallel produces the same output as DiffCells. Keys are spread
// over workers shards by murmur3 hash and the shards are diffed concurrently.
func DiffCellsParallel(ctx context.Context, before, after *Index, keys, columns []string, workers int) ([]CellChange, error) {
	if workers <= 1 || len(keys) < workers {
		return DiffCells(before, after, keys, columns), nil
	}

	shards := make([][]int, workers)
	for pos, key := range keys {
		s := murmur3.Sum32([]byte(key)) % uint32(workers)
		shards[s] = append(shards[s], pos)
	}

	results := make([][]shardChange, workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := range shards {
		g.Go(func() error {
			var out []shardChange
			var buf []CellChange
			for n, pos := range shards[i] {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				buf = diffKey(buf[:0], before, after, keys[pos], columns)
				for _, c := range buf {
					out = append(out, shardChange{pos: pos, change: c})
				}
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []shardChange
	for _, r := range results {
		merged = append(merged, r...)
	}
	// Changes of one key come from a single shard in column order, so a
	// stable sort on key position restores DiffCells order.
	slices.SortStableFunc(merged, func(x, y shardChange) int {
		return x.pos - y.pos
	})

	changes := make([]CellChange, len(merged))
	for i, m := range merged {
		changes[i] = m.change
	}
	return changes, nil
}
