// Package report renders stored comparisons for people and other tools.
//
// Every format carries the same sections: a header naming the two sources
// and the key column, the summary counts, the cell changes, and the added and
// removed keys. Options.Limit caps the number of cell changes written; the
// comparison itself always holds the complete sequence.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/core"
)

// Format names an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatHTML Format = "html"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatYAML, FormatHTML}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the HTTP media type of a format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file extension of a format, without the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Options control rendering.
type Options struct {
	// Limit caps the cell changes written. Zero or negative writes all.
	Limit int
}

// Write renders c to w in format f.
func Write(ctx context.Context, w io.Writer, f Format, c *core.Comparison, opts Options) error {
	switch f {
	case FormatText:
		return writeText(w, c, opts)
	case FormatJSON:
		return writeJSON(w, c, opts)
	case FormatCSV:
		return writeCSV(w, c, opts)
	case FormatYAML:
		return writeYAML(w, c, opts)
	case FormatHTML:
		return HTML(c, opts).Render(ctx, w)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// limited returns the cell changes to write and how many were left out.
func limited(res *compare.Result, opts Options) ([]compare.CellChange, int) {
	changes := res.CellChanges()
	if opts.Limit > 0 && len(changes) > opts.Limit {
		return changes[:opts.Limit], len(changes) - opts.Limit
	}
	return changes, 0
}
