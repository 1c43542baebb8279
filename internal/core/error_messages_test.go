package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/table"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"unreadable source", &table.LoadError{Source: "a.csv", Kind: table.KindUnreadable}, "LOAD001"},
		{"malformed source", &table.LoadError{Source: "a.csv", Kind: table.KindMalformed, Line: 3}, "LOAD002"},
		{"no columns", &table.LoadError{Source: "a.csv", Kind: table.KindNoColumns}, "LOAD003"},
		{"too many rows", &table.LoadError{Source: "a.csv", Kind: table.KindTooLarge}, "LOAD004"},
		{"wrapped load error", fmt.Errorf("load before: %w", &table.LoadError{Source: "a.csv", Kind: table.KindMalformed}), "LOAD002"},
		{"missing key column", &compare.KeyColumnMissingError{Column: "id", Sides: []compare.Side{compare.After}, Tables: []string{"b.csv"}}, "KEY001"},
		{"no common columns", compare.ErrNoCommonColumns, "KEY002"},
		{"no key", ErrNoKey, "KEY003"},
		{"duplicate key", &compare.DuplicateKeyError{Table: "a.csv", Column: "id", Key: "7", Rows: []int{1, 2}}, "DUP001"},
		{"busy", ErrTooManyComparisons, "CMP001"},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), "CMP002"},
		{"file too large", ErrFileTooLarge, "FILE001"},
		{"max bytes reader", errors.New("http: request body too large"), "FILE001"},
		{"no file", ErrNoFile, "FILE004"},
		{"store failure", errors.New("save comparison: bolt: database not open"), "STORE001"},
		{"cancelled", context.Canceled, "REQ001"},
		{"cancelled during load", &table.LoadError{Source: "a.csv", Kind: table.KindUnreadable, Err: context.Canceled}, "REQ001"},
		{"timeout", fmt.Errorf("diff cells: %w", context.DeadlineExceeded), "REQ002"},
		{"invalid option", fmt.Errorf("%w: unknown duplicate policy \"merge\"", ErrInvalidRequest), "REQ003"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("COMPARISON NOT FOUND"), "CMP002"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError().Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && (got.Message == "" || got.Action == "") {
				t.Errorf("MapError() = %+v, want message and action", got)
			}
		})
	}
}

func TestMapError_IncludesContext(t *testing.T) {
	msg := MapError(&compare.KeyColumnMissingError{
		Column: "id",
		Sides:  []compare.Side{compare.Before, compare.After},
		Tables: []string{"old.csv", "new.csv"},
	})
	if !strings.Contains(msg.Message, `"id"`) || !strings.Contains(msg.Message, "old.csv and new.csv") {
		t.Errorf("Message = %q", msg.Message)
	}

	msg = MapError(&table.LoadError{Source: "x.csv", Kind: table.KindMalformed, Line: 12})
	if !strings.Contains(msg.Message, "line 12") {
		t.Errorf("Message = %q, want line number", msg.Message)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q", got)
	}

	got := FormatUserError(ErrTooManyComparisons)
	want := "The server is busy with other comparisons (Code: CMP001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrNoFile) {
		t.Error("ErrNoFile should be user facing")
	}
	if IsUserFacing(errors.New("segfault in the matrix")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestNewUserError(t *testing.T) {
	if NewUserError(nil) != nil {
		t.Error("NewUserError(nil) should be nil")
	}

	ue := NewUserError(ErrNotFound)
	if ue.User.Code != "CMP002" {
		t.Errorf("Code = %q", ue.User.Code)
	}
	if !errors.Is(ue, ErrNotFound) {
		t.Error("UserError should unwrap to the technical error")
	}
	if ue.Error() != ue.User.Message {
		t.Errorf("Error() = %q", ue.Error())
	}
}
