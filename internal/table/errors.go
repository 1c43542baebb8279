package table

import (
	"errors"
	"fmt"
)

// ErrLoad matches every *LoadError via errors.Is.
var ErrLoad = errors.New("load error")

// ErrorKind classifies why a source could not be loaded.
type ErrorKind string

const (
	KindUnreadable ErrorKind = "unreadable"
	KindMalformed  ErrorKind = "malformed"
	KindNoColumns  ErrorKind = "no columns"
	KindTooLarge   ErrorKind = "too large"
)

// LoadError reports a source that could not be turned into a Table.
type LoadError struct {
	Source string    // Source name (file name or upload name)
	Line   int       // 1-based line in the source, 0 if not applicable
	Kind   ErrorKind // Failure class
	Err    error     // Underlying cause
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %q: %s", e.Source, e.Kind)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrLoad) match any LoadError.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

func loadErr(source string, kind ErrorKind, line int, err error) *LoadError {
	return &LoadError{Source: source, Line: line, Kind: kind, Err: err}
}
