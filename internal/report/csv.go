package report

import (
	"encoding/csv"
	"io"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// Change types in the first column of a CSV report.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeChanged = "changed"
)

var csvHeader = []string{"change", "key", "column", "before", "after"}

// writeCSV writes one line per difference: cell changes first, then added
// and removed keys. Added and removed lines leave the cell columns empty.
func writeCSV(w io.Writer, c *core.Comparison, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	changes, _ := limited(c.Result, opts)
	for _, ch := range changes {
		if err := cw.Write([]string{ChangeChanged, ch.Key, ch.Column, ch.Before, ch.After}); err != nil {
			return err
		}
	}
	for _, key := range c.Result.AddedKeys() {
		if err := cw.Write([]string{ChangeAdded, key, "", "", ""}); err != nil {
			return err
		}
	}
	for _, key := range c.Result.RemovedKeys() {
		if err := cw.Write([]string{ChangeRemoved, key, "", "", ""}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
