package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvdiff/internal/table"
)

func mustTable(t *testing.T, name string, columns []string, rows ...[]string) *table.Table {
	t.Helper()
	tbl, err := table.New(name, columns, rows)
	require.NoError(t, err)
	return tbl
}

func exampleTables(t *testing.T) (before, after *table.Table) {
	cols := []string{"id", "name", "status"}
	before = mustTable(t, "before.csv", cols,
		[]string{"1", "A", "open"},
		[]string{"2", "B", "open"},
	)
	after = mustTable(t, "after.csv", cols,
		[]string{"1", "A", "closed"},
		[]string{"3", "C", "open"},
	)
	return before, after
}

func TestCompare_ExampleScenario(t *testing.T) {
	before, after := exampleTables(t)

	res, err := Compare(before, after, "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"3"}, res.AddedKeys())
	assert.Equal(t, []string{"2"}, res.RemovedKeys())
	assert.Equal(t, []CellChange{{Key: "1", Column: "status", Before: "open", After: "closed"}}, res.CellChanges())

	s := res.Summary()
	assert.Equal(t, 1, s.Added)
	assert.Equal(t, 1, s.Removed)
	assert.Equal(t, 1, s.Changed)
	assert.Equal(t, 2, s.BeforeRows)
	assert.Equal(t, 2, s.AfterRows)
	assert.Equal(t, 1, s.ChangedRows)
	assert.Equal(t, map[string]int{"name": 0, "status": 1}, s.Columns)
	assert.True(t, s.HasDifferences())

	assert.Equal(t, "id", res.KeyColumn())
	assert.Equal(t, []string{"name", "status"}, res.Columns())
	assert.Equal(t, DuplicateFail, res.Policy())
}

func TestCompare_Symmetry(t *testing.T) {
	before, after := exampleTables(t)

	forward, err := Compare(before, after, "id")
	require.NoError(t, err)
	backward, err := Compare(after, before, "id")
	require.NoError(t, err)

	assert.Equal(t, forward.AddedKeys(), backward.RemovedKeys())
	assert.Equal(t, forward.RemovedKeys(), backward.AddedKeys())
}

func TestCompare_Idempotence(t *testing.T) {
	before, _ := exampleTables(t)

	res, err := Compare(before, before, "id")
	require.NoError(t, err)

	s := res.Summary()
	assert.Zero(t, s.Added)
	assert.Zero(t, s.Removed)
	assert.Zero(t, s.Changed)
	assert.False(t, s.HasDifferences())
	assert.Empty(t, res.AddedKeys())
	assert.Empty(t, res.RemovedKeys())
	assert.Empty(t, res.CellChanges())
}

func TestCompare_RowPartition(t *testing.T) {
	cols := []string{"k", "v"}
	before := mustTable(t, "b", cols,
		[]string{"a", "1"}, []string{"b", "1"}, []string{"c", "1"}, []string{"d", "1"},
	)
	after := mustTable(t, "a", cols,
		[]string{"e", "1"}, []string{"c", "2"}, []string{"a", "1"}, []string{"f", "1"},
	)

	bIdx, err := BuildIndex(before, "k", DuplicateFail)
	require.NoError(t, err)
	aIdx, err := BuildIndex(after, "k", DuplicateFail)
	require.NoError(t, err)

	added, removed := DiffRows(bIdx, aIdx)
	common := CommonKeys(bIdx, aIdx)

	assert.Equal(t, []string{"e", "f"}, added)
	assert.Equal(t, []string{"b", "d"}, removed)
	assert.Equal(t, []string{"a", "c"}, common)

	assert.ElementsMatch(t, bIdx.Keys(), append(append([]string{}, removed...), common...))
	assert.ElementsMatch(t, aIdx.Keys(), append(append([]string{}, added...), common...))

	for _, k := range common {
		assert.NotContains(t, added, k)
		assert.NotContains(t, removed, k)
	}
	for _, k := range added {
		assert.NotContains(t, removed, k)
	}
}

func TestCompare_CellChangeMinimality(t *testing.T) {
	cols := []string{"id", "x", "y", "z"}
	before := mustTable(t, "b", cols,
		[]string{"1", "a", "b", "c"},
		[]string{"2", "1.0", "", "same"},
	)
	after := mustTable(t, "a", cols,
		[]string{"1", "a", "B", "c"},
		[]string{"2", "1", "filled", "same"},
	)

	res, err := Compare(before, after, "id")
	require.NoError(t, err)

	want := []CellChange{
		{Key: "1", Column: "y", Before: "b", After: "B"},
		{Key: "2", Column: "x", Before: "1.0", After: "1"},
		{Key: "2", Column: "y", Before: "", After: "filled"},
	}
	assert.Equal(t, want, res.CellChanges())
	for _, c := range res.CellChanges() {
		assert.NotEqual(t, c.Before, c.After)
	}
	assert.Equal(t, 2, res.Summary().ChangedRows)
}

func TestCompare_Determinism(t *testing.T) {
	before, after := largeTables(t, 500)

	first, err := Compare(before, after, "id")
	require.NoError(t, err)
	second, err := Compare(before, after, "id")
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
	assert.Equal(t, first.Digest(), second.Digest())
}

func TestCompare_MissingKeyColumn(t *testing.T) {
	tests := []struct {
		name      string
		beforeCol []string
		afterCol  []string
		wantSides []Side
	}{
		{"missing from before", []string{"name"}, []string{"id", "name"}, []Side{Before}},
		{"missing from after", []string{"id", "name"}, []string{"name"}, []Side{After}},
		{"missing from both", []string{"name"}, []string{"name"}, []Side{Before, After}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := mustTable(t, "b.csv", tt.beforeCol)
			after := mustTable(t, "a.csv", tt.afterCol)

			res, err := Compare(before, after, "id")
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrKeyColumnMissing))

			var kerr *KeyColumnMissingError
			require.True(t, errors.As(err, &kerr))
			assert.Equal(t, "id", kerr.Column)
			assert.Equal(t, tt.wantSides, kerr.Sides)
		})
	}
}

func TestCompare_MissingKeyCheckedBeforeDuplicates(t *testing.T) {
	before := mustTable(t, "b", []string{"id"}, []string{"1"}, []string{"1"})
	after := mustTable(t, "a", []string{"other"})

	_, err := Compare(before, after, "id")
	assert.True(t, errors.Is(err, ErrKeyColumnMissing))
	assert.False(t, errors.Is(err, ErrDuplicateKey))
}

func TestCompare_DuplicatePolicy(t *testing.T) {
	cols := []string{"id", "v"}
	before := mustTable(t, "before.csv", cols,
		[]string{"1", "first"},
		[]string{"2", "x"},
		[]string{"1", "last"},
	)
	after := mustTable(t, "after.csv", cols,
		[]string{"1", "first"},
		[]string{"2", "x"},
	)

	t.Run("fail", func(t *testing.T) {
		_, err := Compare(before, after, "id")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateKey))

		var derr *DuplicateKeyError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, "before.csv", derr.Table)
		assert.Equal(t, "id", derr.Column)
		assert.Equal(t, "1", derr.Key)
		assert.Equal(t, []int{1, 3}, derr.Rows)
	})

	t.Run("first", func(t *testing.T) {
		res, err := Compare(before, after, "id", WithDuplicatePolicy(DuplicateKeepFirst))
		require.NoError(t, err)
		assert.Empty(t, res.CellChanges())
		assert.Equal(t, DuplicateKeepFirst, res.Policy())
		assert.Equal(t, []string{"1"}, res.DuplicateKeys().Before)
		assert.Empty(t, res.DuplicateKeys().After)
		assert.Equal(t, 1, res.Summary().Duplicates)
		assert.False(t, res.Summary().HasDifferences())
	})

	t.Run("last", func(t *testing.T) {
		res, err := Compare(before, after, "id", WithDuplicatePolicy(DuplicateKeepLast))
		require.NoError(t, err)
		assert.Equal(t, []CellChange{{Key: "1", Column: "v", Before: "last", After: "first"}}, res.CellChanges())
		assert.Equal(t, []string{"1"}, res.DuplicateKeys().Before)
	})

	t.Run("duplicates survive the JSON round trip", func(t *testing.T) {
		res, err := Compare(before, after, "id", WithDuplicatePolicy(DuplicateKeepFirst))
		require.NoError(t, err)

		data, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"duplicate_keys":{"before":["1"],"after":[]}`)

		decoded, err := DecodeResult(data)
		require.NoError(t, err)
		assert.Equal(t, res.DuplicateKeys().Before, decoded.DuplicateKeys().Before)
		assert.Equal(t, res.Summary(), decoded.Summary())
		assert.Equal(t, res.Digest(), decoded.Digest())
	})

	t.Run("policy names are case insensitive", func(t *testing.T) {
		res, err := Compare(before, after, "id", WithDuplicatePolicy("FIRST"))
		require.NoError(t, err)
		assert.Equal(t, DuplicateKeepFirst, res.Policy())
	})

	t.Run("unknown policy is rejected", func(t *testing.T) {
		_, err := Compare(before, after, "id", WithDuplicatePolicy("sometimes"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrDuplicateKey))
		assert.Contains(t, err.Error(), "unknown duplicate policy")
	})
}

func TestResult_DigestCoversDuplicates(t *testing.T) {
	cols := []string{"id", "v"}
	after := mustTable(t, "after.csv", cols, []string{"1", "a"})
	clean := mustTable(t, "before.csv", cols, []string{"1", "a"})
	repeated := mustTable(t, "before.csv", cols, []string{"1", "a"}, []string{"1", "a"})

	r1, err := Compare(clean, after, "id", WithDuplicatePolicy(DuplicateKeepFirst))
	require.NoError(t, err)
	r2, err := Compare(repeated, after, "id", WithDuplicatePolicy(DuplicateKeepFirst))
	require.NoError(t, err)

	assert.NotEqual(t, r1.Digest(), r2.Digest())
}

func TestCompare_IgnoreColumns(t *testing.T) {
	before, after := exampleTables(t)

	res, err := Compare(before, after, "id", WithIgnoreColumns("status"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, res.Columns())
	assert.Empty(t, res.CellChanges())
	assert.Equal(t, 1, res.Summary().Added)
}

func TestCompare_NoCommonNonKeyColumns(t *testing.T) {
	before := mustTable(t, "b", []string{"id", "x"}, []string{"1", "a"})
	after := mustTable(t, "a", []string{"id", "y"}, []string{"1", "b"}, []string{"2", "c"})

	res, err := Compare(before, after, "id")
	require.NoError(t, err)
	assert.Empty(t, res.Columns())
	assert.Empty(t, res.CellChanges())
	assert.Equal(t, []string{"2"}, res.AddedKeys())
}

func TestCompare_EmptyKeyValue(t *testing.T) {
	cols := []string{"id", "v"}
	before := mustTable(t, "b", cols, []string{"", "1"})
	after := mustTable(t, "a", cols, []string{"", "2"})

	res, err := Compare(before, after, "id")
	require.NoError(t, err)
	assert.Equal(t, []CellChange{{Key: "", Column: "v", Before: "1", After: "2"}}, res.CellChanges())
}

func TestCompare_ColumnOrderFollowsBefore(t *testing.T) {
	before := mustTable(t, "b", []string{"c", "id", "a", "b"}, []string{"1", "k", "1", "1"})
	after := mustTable(t, "a", []string{"b", "a", "id", "c"}, []string{"2", "2", "k", "2"})

	res, err := Compare(before, after, "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, res.Columns())

	var order []string
	for _, c := range res.CellChanges() {
		order = append(order, c.Column)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestResult_AccessorsReturnCopies(t *testing.T) {
	before, after := exampleTables(t)
	res, err := Compare(before, after, "id")
	require.NoError(t, err)

	res.AddedKeys()[0] = "mutated"
	res.CellChanges()[0].After = "mutated"
	res.Summary().Columns["status"] = 99

	assert.Equal(t, []string{"3"}, res.AddedKeys())
	assert.Equal(t, "closed", res.CellChanges()[0].After)
	assert.Equal(t, 1, res.Summary().Columns["status"])
}

func TestResult_JSON(t *testing.T) {
	before, after := exampleTables(t)
	res, err := Compare(before, after, "id")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"key_column", "columns", "duplicate_policy", "summary", "added_keys", "removed_keys", "cell_changes", "duplicate_keys"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "fail", raw["duplicate_policy"])

	decoded, err := DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, res.Summary(), decoded.Summary())
	assert.Equal(t, res.CellChanges(), decoded.CellChanges())
	assert.Equal(t, res.Digest(), decoded.Digest())
}

func TestResult_JSONEmptySequences(t *testing.T) {
	before, _ := exampleTables(t)
	res, err := Compare(before, before, "id")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"added_keys":[]`)
	assert.Contains(t, string(data), `"cell_changes":[]`)
}

func TestDecodeResult_Errors(t *testing.T) {
	_, err := DecodeResult([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeResult([]byte(`{"columns":[]}`))
	assert.Error(t, err)

	_, err = DecodeResult([]byte(`{"key_column":"id","duplicate_policy":"sometimes"}`))
	assert.Error(t, err)
}

func TestResult_DigestDiffers(t *testing.T) {
	before, after := exampleTables(t)

	a, err := Compare(before, after, "id")
	require.NoError(t, err)
	b, err := Compare(after, before, "id")
	require.NoError(t, err)

	assert.NotEqual(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 32)
}

func TestDiffCellsParallel_MatchesSequential(t *testing.T) {
	before, after := largeTables(t, 2000)

	bIdx, err := BuildIndex(before, "id", DuplicateFail)
	require.NoError(t, err)
	aIdx, err := BuildIndex(after, "id", DuplicateFail)
	require.NoError(t, err)
	common := CommonKeys(bIdx, aIdx)
	cols := []string{"a", "b", "c"}

	want := DiffCells(bIdx, aIdx, common, cols)
	require.NotEmpty(t, want)

	for _, workers := range []int{0, 1, 2, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := DiffCellsParallel(context.Background(), bIdx, aIdx, common, cols, workers)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDiffCellsParallel_Canceled(t *testing.T) {
	before, after := largeTables(t, 2000)
	bIdx, _ := BuildIndex(before, "id", DuplicateFail)
	aIdx, _ := BuildIndex(after, "id", DuplicateFail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DiffCellsParallel(ctx, bIdx, aIdx, CommonKeys(bIdx, aIdx), []string{"a"}, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare_WorkersMatchSequential(t *testing.T) {
	before, after := largeTables(t, 2*parallelThreshold)

	seq, err := Compare(before, after, "id")
	require.NoError(t, err)
	par, err := Compare(before, after, "id", WithWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, seq.CellChanges(), par.CellChanges())
	assert.Equal(t, seq.Digest(), par.Digest())
}

// largeTables builds two overlapping tables of n rows where every third
// common row differs in one or two cells.
func largeTables(t *testing.T, n int) (*table.Table, *table.Table) {
	t.Helper()
	cols := []string{"id", "a", "b", "c"}
	var bRows, aRows [][]string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("k%05d", i)
		bRows = append(bRows, []string{id, "x", strings.Repeat("y", i%5), fmt.Sprint(i)})
	}
	for i := n / 10; i < n+n/10; i++ {
		id := fmt.Sprintf("k%05d", i)
		a, c := "x", fmt.Sprint(i)
		if i%3 == 0 {
			a = "changed"
		}
		if i%6 == 0 {
			c = "changed"
		}
		aRows = append(aRows, []string{id, a, strings.Repeat("y", i%5), c})
	}
	return mustTable(t, "before", cols, bRows...), mustTable(t, "after", cols, aRows...)
}
