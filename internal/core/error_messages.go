package core

// Error codes reference
//
// Every failure shown to a user carries a code that support staff can look
// up here. Typed errors from the table and compare packages are matched with
// errors.Is/As first; anything else falls through to case-insensitive
// substring patterns, first match wins.
//
// Load errors (LOAD001-LOAD099)
//
//	LOAD001 - File could not be read (I/O failure, unknown encoding, bad delimiter)
//	LOAD002 - File is not valid CSV (field count, quoting, duplicate or empty header)
//	LOAD003 - File has no columns
//	LOAD004 - File has more rows than allowed
//
// Key errors (KEY001-KEY099)
//
//	KEY001 - Key column missing from one or both files
//	KEY002 - Files share no column, so no key can be chosen
//	KEY003 - No key column was selected
//
// Duplicate errors (DUP001-DUP099)
//
//	DUP001 - A key value occurs on more than one row
//
// Comparison errors (CMP001-CMP099)
//
//	CMP001 - Too many comparisons in progress
//	CMP002 - Comparison not found
//
// File errors (FILE001-FILE099)
//
//	FILE001 - Upload exceeds the size limit
//	FILE004 - A file is missing from the request
//
// Store errors (STORE001-STORE099)
//
//	STORE001 - Result could not be saved or read
//
// Request errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	REQ003 - A request option (duplicates, delimiter, encoding, format) is invalid
//
// Rate limiting (RATE001)
//
//	RATE001 - Too many requests
//
// Fallback (ERR000)
//
//	ERR000 - Unexpected error; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvdiff/internal/compare"
	"github.com/JonMunkholm/csvdiff/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that are not typed, such as those coming from a
// store driver or the HTTP layer.
var errorPatterns = []errorPattern{
	{
		pattern: "too many comparisons",
		msg: UserMessage{
			Message: "The server is busy with other comparisons",
			Action:  "Please wait a moment and try again",
			Code:    "CMP001",
		},
	},
	{
		pattern: "comparison not found",
		msg: UserMessage{
			Message: "Comparison not found",
			Action:  "It may have expired. Run the comparison again",
			Code:    "CMP002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Compress the file with gzip or split it",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Compress the file with gzip or split it",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "Both a before and an after file are required",
			Action:  "Select a CSV file for each side",
			Code:    "FILE004",
		},
	},
	{
		pattern: "save comparison",
		msg: UserMessage{
			Message: "The comparison result could not be saved",
			Action:  "Please try again in a few moments",
			Code:    "STORE001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The result store is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "STORE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var (
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try smaller files or try again later",
		Code:    "REQ002",
	}
)

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		loadErr *table.LoadError
		keyErr  *compare.KeyColumnMissingError
		dupErr  *compare.DuplicateKeyError
	)

	switch {
	case errors.As(err, &loadErr):
		return loadMessage(loadErr), true

	case errors.As(err, &keyErr):
		return UserMessage{
			Message: fmt.Sprintf("Key column %q is missing from %s", keyErr.Column, strings.Join(keyErr.Tables, " and ")),
			Action:  "Choose a column present in both files",
			Code:    "KEY001",
		}, true

	case errors.Is(err, compare.ErrKeyColumnMissing):
		return UserMessage{
			Message: "Key column is missing",
			Action:  "Choose a column present in both files",
			Code:    "KEY001",
		}, true

	case errors.Is(err, compare.ErrNoCommonColumns):
		return UserMessage{
			Message: "The files have no columns in common",
			Action:  "Check that both files are versions of the same dataset",
			Code:    "KEY002",
		}, true

	case errors.Is(err, ErrNoKey):
		return UserMessage{
			Message: "No key column was selected",
			Action:  "Select the column that identifies each row",
			Code:    "KEY003",
		}, true

	case errors.As(err, &dupErr):
		return UserMessage{
			Message: fmt.Sprintf("Key %q appears more than once in %s", dupErr.Key, dupErr.Table),
			Action:  "Pick a unique key column, or compare with duplicates set to first or last",
			Code:    "DUP001",
		}, true

	case errors.Is(err, ErrInvalidRequest):
		return UserMessage{
			Message: "The request has an invalid option: " + strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": "),
			Action:  "Correct the option and try again",
			Code:    "REQ003",
		}, true

	case errors.Is(err, ErrTooManyComparisons):
		return errorPatterns[0].msg, true

	case errors.Is(err, ErrNotFound):
		return errorPatterns[1].msg, true
	}
	return UserMessage{}, false
}

func loadMessage(e *table.LoadError) UserMessage {
	at := ""
	if e.Line > 0 {
		at = fmt.Sprintf(" (line %d)", e.Line)
	}

	switch e.Kind {
	case table.KindMalformed:
		return UserMessage{
			Message: fmt.Sprintf("%s is not valid CSV%s", e.Source, at),
			Action:  "Make sure every row has the same number of fields and header names are unique",
			Code:    "LOAD002",
		}
	case table.KindNoColumns:
		return UserMessage{
			Message: fmt.Sprintf("%s has no columns", e.Source),
			Action:  "The first line must be a header row",
			Code:    "LOAD003",
		}
	case table.KindTooLarge:
		return UserMessage{
			Message: fmt.Sprintf("%s has too many rows%s", e.Source, at),
			Action:  "Split the file or raise the row limit",
			Code:    "LOAD004",
		}
	default:
		return UserMessage{
			Message: fmt.Sprintf("%s could not be read", e.Source),
			Action:  "Check the file, its encoding and the delimiter",
			Code:    "LOAD001",
		}
	}
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
