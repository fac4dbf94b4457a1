package core

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnNotFound is returned when a named column is absent.
	ErrColumnNotFound = errors.New("column not found")

	// ErrEmptyFile is returned when the input has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnknownEncoding is returned for an unsupported encoding label.
	ErrUnknownEncoding = errors.New("unknown encoding")

	// ErrInvalidOrient is returned for an unsupported JSON layout.
	ErrInvalidOrient = errors.New("invalid orient")

	// ErrInvalidCSV is returned when the input cannot be parsed as CSV.
	ErrInvalidCSV = errors.New("invalid csv")

	// ErrInvalidGenresPolicy is returned for a genres policy other than strict or null.
	ErrInvalidGenresPolicy = errors.New("invalid genres policy")
)

// CleanError reports the pipeline step that failed.
type CleanError struct {
	Step string
	Err  error
}

func (e *CleanError) Error() string {
	return fmt.Sprintf("clean step %s: %v", e.Step, e.Err)
}

func (e *CleanError) Unwrap() error { return e.Err }

// LiteralError reports a nested-field cell that could not be parsed.
// Row is the zero-based row position at the time of parsing.
type LiteralError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("malformed literal in %s at row %d (%.40q): %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *LiteralError) Unwrap() error { return e.Err }
