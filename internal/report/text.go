package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

func writeText(w io.Writer, c *core.Comparison, opts Options) error {
	bw := bufio.NewWriter(w)
	res := c.Result
	s := res.Summary()

	fmt.Fprintln(bw, "CSV Comparison Report")
	fmt.Fprintln(bw, strings.Repeat("=", 21))
	fmt.Fprintf(bw, "Before:     %s (%s rows)\n", c.BeforeName, humanize.Comma(int64(s.BeforeRows)))
	fmt.Fprintf(bw, "After:      %s (%s rows)\n", c.AfterName, humanize.Comma(int64(s.AfterRows)))
	fmt.Fprintf(bw, "Key column: %s\n", res.KeyColumn())
	if len(res.Columns()) > 0 {
		fmt.Fprintf(bw, "Compared:   %s\n", strings.Join(res.Columns(), ", "))
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "Rows added:    %s\n", humanize.Comma(int64(s.Added)))
	fmt.Fprintf(bw, "Rows removed:  %s\n", humanize.Comma(int64(s.Removed)))
	fmt.Fprintf(bw, "Cells changed: %s", humanize.Comma(int64(s.Changed)))
	if s.ChangedRows > 0 {
		fmt.Fprintf(bw, " in %s rows", humanize.Comma(int64(s.ChangedRows)))
	}
	fmt.Fprintln(bw)

	section(bw, "Changed Values")
	changes, omitted := limited(res, opts)
	if len(changes) == 0 {
		fmt.Fprintln(bw, "None")
	}
	for _, ch := range changes {
		fmt.Fprintf(bw, "Key %q, Column %q: %q -> %q\n", ch.Key, ch.Column, ch.Before, ch.After)
	}
	if omitted > 0 {
		fmt.Fprintf(bw, "... %s more changes not shown\n", humanize.Comma(int64(omitted)))
	}

	section(bw, fmt.Sprintf("Added Rows (%s)", res.KeyColumn()))
	writeKeys(bw, res.AddedKeys())

	section(bw, fmt.Sprintf("Removed Rows (%s)", res.KeyColumn()))
	writeKeys(bw, res.RemovedKeys())

	if dups := res.DuplicateKeys(); dups.Len() > 0 {
		section(bw, fmt.Sprintf("Duplicate Keys (kept %s row)", res.Policy()))
		for _, k := range dups.Before {
			fmt.Fprintf(bw, "before: %s\n", k)
		}
		for _, k := range dups.After {
			fmt.Fprintf(bw, "after:  %s\n", k)
		}
	}

	return bw.Flush()
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
}

func writeKeys(w io.Writer, keys []string) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "None")
		return
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
}
