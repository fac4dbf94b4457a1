// Package core provides the movie dataset loader, cleaning pipeline,
// reports and JSON export.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Callers that surface errors to people (the HTTP API, the CLI) map technical
// errors through MapError and show the code alongside the message.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: The upload exceeds the configured size limit
//	          Action: Split the file or raise SERVER_MAX_UPLOAD_SIZE
//	FILE002 - Invalid CSV: The file could not be parsed as delimited text
//	          Action: Check quoting and that rows match the header
//	FILE003 - Encoding: The requested text encoding is not supported
//	          Action: Use a standard label such as utf-8 or windows-1252
//	FILE004 - No file: No file was provided
//	FILE005 - Empty file: The file has no header row
//	FILE006 - Not found: The input file does not exist
//	FILE007 - Permission denied: The input file cannot be read
//
// # Cleaning Errors (CLN001-CLN099)
//
//	CLN001 - Column not found: A column named for pruning is missing
//	         Action: Compare the drop list with the file header
//	CLN002 - Malformed literal: A genres cell is not a valid list literal
//	         Action: Fix the cell or use the "null" genres policy
//	CLN003 - Cleaning failed: Any other pipeline failure
//	CLN004 - Genres policy: The policy name is not strict or null
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Invalid orient: The JSON layout name is not supported
//
// # Request Errors (UPL003-UPL005, RATE001)
//
//	UPL003 - Server busy: every clean slot is taken
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no rule matches. Check the logs for the technical error.
//
// # Matching
//
// Rules are checked in order with errors.Is / errors.As, so wrapped errors
// match. The first matching rule wins; specific rules come first.
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule pairs a matcher with the message it produces.
type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func contains(pattern string) func(error) bool {
	return func(err error) bool { return strings.Contains(strings.ToLower(err.Error()), pattern) }
}

func isLiteralError(err error) bool {
	var le *LiteralError
	return errors.As(err, &le)
}

func isCleanError(err error) bool {
	var ce *CleanError
	return errors.As(err, &ce)
}

// errorRules maps technical errors to user messages. Order matters.
var errorRules = []errorRule{
	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		match: contains("request body too large"),
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		match: is(ErrInvalidCSV),
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check quoting and that every row matches the header",
			Code:    "FILE002",
		},
	},
	{
		match: is(ErrUnknownEncoding),
		msg: UserMessage{
			Message: "Text encoding is not supported",
			Action:  "Use a standard label such as utf-8 or windows-1252",
			Code:    "FILE003",
		},
	},
	{
		match: contains("no file provided"),
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Send the CSV as the request body or a multipart \"file\" field",
			Code:    "FILE004",
		},
	},
	{
		match: is(ErrEmptyFile),
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Provide a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		match: is(fs.ErrNotExist),
		msg: UserMessage{
			Message: "Input file not found",
			Action:  "Check the input path",
			Code:    "FILE006",
		},
	},
	{
		match: is(fs.ErrPermission),
		msg: UserMessage{
			Message: "Permission denied reading the input file",
			Action:  "Check the file permissions",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Cleaning Errors (CLN001-CLN004)
	// =========================================================================
	{
		match: is(ErrColumnNotFound),
		msg: UserMessage{
			Message: "A column to drop is missing from the dataset",
			Action:  "Compare the drop list with the file header",
			Code:    "CLN001",
		},
	},
	{
		match: isLiteralError,
		msg: UserMessage{
			Message: "A genres value could not be parsed",
			Action:  "Fix the malformed cell or use the \"null\" genres policy",
			Code:    "CLN002",
		},
	},
	{
		match: is(ErrInvalidGenresPolicy),
		msg: UserMessage{
			Message: "Unknown genres policy",
			Action:  "Use \"strict\" or \"null\"",
			Code:    "CLN004",
		},
	},
	{
		match: isCleanError,
		msg: UserMessage{
			Message: "Cleaning the dataset failed",
			Action:  "Check the logs for the failing step",
			Code:    "CLN003",
		},
	},

	// =========================================================================
	// Export Errors (EXP001)
	// =========================================================================
	{
		match: is(ErrInvalidOrient),
		msg: UserMessage{
			Message: "Unsupported JSON layout",
			Action:  "Use one of: records, split, index, columns, values",
			Code:    "EXP001",
		},
	},

	// =========================================================================
	// Request Errors (UPL003-UPL005, RATE001)
	// =========================================================================
	{
		match: is(ErrBusy),
		msg: UserMessage{
			Message: "The server is busy cleaning other files",
			Action:  "Retry in a few seconds",
			Code:    "UPL003",
		},
	},
	{
		match: is(context.Canceled),
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		match: is(context.DeadlineExceeded),
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},
	{
		match: contains("rate limit"),
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no rule matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// The first matching rule wins; ERR000 is returned when nothing matches.
//
// Example:
//
//	err := fmt.Errorf("load: %w", ErrEmptyFile)
//	msg := MapError(err)
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, r := range errorRules {
		if r.match(err) {
			return r.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known rule rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
