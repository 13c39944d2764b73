package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUpload is returned when the upload has no header row.
	ErrEmptyUpload = errors.New("upload is empty")
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrMissingValue is returned when a required cell is empty.
	ErrMissingValue = errors.New("missing value")
	// ErrNegativeValue is returned for negative ages, day counts and amounts.
	ErrNegativeValue = errors.New("value must not be negative")
)

// MalformedRowError reports the first row that could not be parsed. Line is
// the 1-based line in the uploaded file; the header is line 1.
type MalformedRowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *MalformedRowError) Error() string {
	switch {
	case e.Column == "":
		return fmt.Sprintf("malformed row at line %d: %v", e.Line, e.Err)
	case e.Value == "":
		return fmt.Sprintf("malformed row at line %d: column %q: %v", e.Line, e.Column, e.Err)
	default:
		return fmt.Sprintf("malformed row at line %d: column %q: invalid value %q: %v", e.Line, e.Column, e.Value, e.Err)
	}
}

func (e *MalformedRowError) Unwrap() error {
	return e.Err
}
