package core

// errors.go defines the sentinel errors of the import domain and the mapping
// from technical errors to user-facing messages with support codes. Handlers
// log the technical error and show the mapped message.

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when a staged file's extension is not
	// one of the supported spreadsheet formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when a staged file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnknownImportType is returned for an unrecognized import type value.
	ErrUnknownImportType = errors.New("unknown import type")

	// ErrIncompleteMapping is returned when a commit is attempted with one or
	// more required fields unmapped.
	ErrIncompleteMapping = errors.New("incomplete column mapping")

	// ErrFileNotFound is returned when an execute or preview call references
	// a file path that is not staged on the server.
	ErrFileNotFound = errors.New("staged file not found")

	// ErrEmptyFile is returned when a staged file has no data rows.
	ErrEmptyFile = errors.New("file has no data rows")

	// ErrImportInProgress is returned when an execute request carries the
	// idempotency key of a run that has not finished yet.
	ErrImportInProgress = errors.New("import already in progress")
)

// UserMessage is a user-friendly rendering of a technical error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference code
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .xlsx, .xls, or .csv file",
			Code:    "FMT001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the upload size limit",
			Action:  "Split the spreadsheet into smaller files",
			Code:    "FMT002",
		},
	},
	{
		pattern: "file has no data rows",
		msg: UserMessage{
			Message: "The file contains no data rows",
			Action:  "Check that the spreadsheet has rows below the header",
			Code:    "FMT003",
		},
	},
	{
		pattern: "workbook",
		msg: UserMessage{
			Message: "The Excel workbook could not be read",
			Action:  "Re-save the spreadsheet as .xlsx or .csv and upload it again",
			Code:    "FMT004",
		},
	},
	{
		pattern: "already in progress",
		msg: UserMessage{
			Message: "An import with the same file and mapping is still running",
			Action:  "Wait for the current run to finish before retrying",
			Code:    "IMP001",
		},
	},
	{
		pattern: "staged file not found",
		msg: UserMessage{
			Message: "The uploaded file could not be found on the server",
			Action:  "Upload the file again",
			Code:    "STG001",
		},
	},
	{
		pattern: "unknown import type",
		msg: UserMessage{
			Message: "The selected import type is not recognized",
			Action:  "Choose corridas, motoristas, or metas",
			Code:    "TYP001",
		},
	},
	{
		pattern: "incomplete column mapping",
		msg: UserMessage{
			Message: "One or more required fields are not mapped to a column",
			Action:  "Map every required field before executing the import",
			Code:    "MAP001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Review the file for rows that were already imported",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "A date value could not be parsed",
			Action:  "Use YYYY-MM-DD or DD/MM/YYYY date formats",
			Code:    "VAL001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again; contact support if it persists",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders a mapped error as a single display string.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
