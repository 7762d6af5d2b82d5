// Package reference loads the authoritative reference table from CSV or JSON.
package reference

import (
	"fmt"
	"strings"
)

// MissingColumnError reports required CSV columns absent from the header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("reference input is missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// LoadError represents a failure reading or decoding reference input
type LoadError struct {
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reference load error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("reference load error: %s", e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
