package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvdiff/internal/compare"
)

var (
	// ErrNotFound is returned when no stored comparison has the requested ID.
	ErrNotFound = errors.New("comparison not found")

	// ErrNoFile is returned when a source is missing from a request.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when a source exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoKey is returned when a comparison request names no key column.
	ErrNoKey = errors.New("no key column selected")

	// ErrInvalidRequest wraps a request option that could not be parsed.
	ErrInvalidRequest = errors.New("invalid request")
)

// Comparison is a comparison result together with the metadata it is
// stored under.
type Comparison struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	BeforeName string
	AfterName  string
	KeyColumn  string
	Result     *compare.Result
}

// Info summarizes a Comparison without its change sequences.
func (c *Comparison) Info() ComparisonInfo {
	return ComparisonInfo{
		ID:         c.ID,
		CreatedAt:  c.CreatedAt,
		BeforeName: c.BeforeName,
		AfterName:  c.AfterName,
		KeyColumn:  c.KeyColumn,
		Digest:     c.Result.Digest(),
		Summary:    c.Result.Summary(),
	}
}

type comparisonJSON struct {
	ID         uuid.UUID       `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	BeforeName string          `json:"before"`
	AfterName  string          `json:"after"`
	KeyColumn  string          `json:"key_column"`
	Digest     string          `json:"digest"`
	Result     json.RawMessage `json:"result"`
}

func (c *Comparison) MarshalJSON() ([]byte, error) {
	res, err := json.Marshal(c.Result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(comparisonJSON{
		ID:         c.ID,
		CreatedAt:  c.CreatedAt.UTC(),
		BeforeName: c.BeforeName,
		AfterName:  c.AfterName,
		KeyColumn:  c.KeyColumn,
		Digest:     c.Result.Digest(),
		Result:     res,
	})
}

func (c *Comparison) UnmarshalJSON(data []byte) error {
	var w comparisonJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	res, err := compare.DecodeResult(w.Result)
	if err != nil {
		return fmt.Errorf("comparison %s: %w", w.ID, err)
	}
	*c = Comparison{
		ID:         w.ID,
		CreatedAt:  w.CreatedAt,
		BeforeName: w.BeforeName,
		AfterName:  w.AfterName,
		KeyColumn:  w.KeyColumn,
		Result:     res,
	}
	return nil
}

// ComparisonInfo is the listing form of a stored comparison.
type ComparisonInfo struct {
	ID         uuid.UUID       `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	BeforeName string          `json:"before"`
	AfterName  string          `json:"after"`
	KeyColumn  string          `json:"key_column"`
	Digest     string          `json:"digest"`
	Summary    compare.Summary `json:"summary"`
}

// Store persists comparisons. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, c *Comparison) error
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id uuid.UUID) (*Comparison, error)
	// List returns the newest comparisons first, at most limit of them.
	List(ctx context.Context, limit int) ([]ComparisonInfo, error)
	// Delete returns ErrNotFound when id is unknown.
	Delete(ctx context.Context, id uuid.UUID) error
	// Prune deletes comparisons created before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Source is one side of a comparison request.
type Source struct {
	Name string
	R    io.Reader
}

// Request holds the per-comparison choices of a caller. Zero fields fall
// back to the service defaults.
type Request struct {
	Key        string
	Duplicates compare.DuplicatePolicy
	Ignore     []string
	Delimiter  rune
	Encoding   string
	TrimSpace  bool
	NullTokens []string // Replace the service default when set
	// StripFormula unwraps ="..." cells. It adds to the service default and
	// cannot turn it off.
	StripFormula bool
}

// Columns lists the headers of two sources and their common columns, the
// candidates for the key column.
type Columns struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
	Common []string `json:"common"`
}
