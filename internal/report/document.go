package report

import (
	"encoding/json"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// document is the structured form shared by the JSON and YAML reports.
type document struct {
	ID              string    `json:"id" yaml:"id"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	Before          string    `json:"before" yaml:"before"`
	After           string    `json:"after" yaml:"after"`
	KeyColumn       string    `json:"key_column" yaml:"key_column"`
	DuplicatePolicy string    `json:"duplicate_policy" yaml:"duplicate_policy"`
	Digest          string    `json:"digest" yaml:"digest"`
	Columns         []string  `json:"columns" yaml:"columns"`
	Summary         summary   `json:"summary" yaml:"summary"`
	AddedKeys       []string  `json:"added_keys" yaml:"added_keys"`
	RemovedKeys     []string  `json:"removed_keys" yaml:"removed_keys"`
	CellChanges     []change  `json:"cell_changes" yaml:"cell_changes"`
	DuplicateKeys   dupKeys   `json:"duplicate_keys" yaml:"duplicate_keys"`
	Omitted         int       `json:"omitted_changes,omitempty" yaml:"omitted_changes,omitempty"`
}

type summary struct {
	Added       int            `json:"added" yaml:"added"`
	Removed     int            `json:"removed" yaml:"removed"`
	Changed     int            `json:"changed" yaml:"changed"`
	BeforeRows  int            `json:"before_rows" yaml:"before_rows"`
	AfterRows   int            `json:"after_rows" yaml:"after_rows"`
	ChangedRows int            `json:"changed_rows" yaml:"changed_rows"`
	Duplicates  int            `json:"duplicates" yaml:"duplicates"`
	Columns     map[string]int `json:"columns" yaml:"columns"`
}

type dupKeys struct {
	Before []string `json:"before" yaml:"before"`
	After  []string `json:"after" yaml:"after"`
}

type change struct {
	Key    string `json:"key" yaml:"key"`
	Column string `json:"column" yaml:"column"`
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

func newDocument(c *core.Comparison, opts Options) document {
	res := c.Result
	s := res.Summary()
	changes, omitted := limited(res, opts)
	dups := res.DuplicateKeys()

	doc := document{
		ID:              c.ID.String(),
		CreatedAt:       c.CreatedAt.UTC(),
		Before:          c.BeforeName,
		After:           c.AfterName,
		KeyColumn:       res.KeyColumn(),
		DuplicatePolicy: string(res.Policy()),
		Digest:          res.Digest(),
		Columns:         res.Columns(),
		Summary: summary{
			Added:       s.Added,
			Removed:     s.Removed,
			Changed:     s.Changed,
			BeforeRows:  s.BeforeRows,
			AfterRows:   s.AfterRows,
			ChangedRows: s.ChangedRows,
			Duplicates:  s.Duplicates,
			Columns:     s.Columns,
		},
		AddedKeys:     res.AddedKeys(),
		RemovedKeys:   res.RemovedKeys(),
		CellChanges:   make([]change, len(changes)),
		DuplicateKeys: dupKeys{Before: orEmpty(dups.Before), After: orEmpty(dups.After)},
		Omitted:       omitted,
	}
	for i, ch := range changes {
		doc.CellChanges[i] = change(ch)
	}
	return doc
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w io.Writer, c *core.Comparison, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(c, opts))
}

func writeYAML(w io.Writer, c *core.Comparison, opts Options) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(c, opts)); err != nil {
		return err
	}
	return enc.Close()
}
