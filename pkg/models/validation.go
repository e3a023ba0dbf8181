package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is a single validation error or warning.
type Entry struct {
	// Type classifies the problem (field, format, duplicate, dependency, ...).
	// After aggregation it carries a source prefix such as "schema:duplicate".
	Type string `json:"type"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Field points at the offending field, e.g. tasks[2].task_id.
	Field string `json:"field,omitempty"`
	// Line is a source line for code-level findings.
	Line *int `json:"line,omitempty"`
	// Details carries extra context supplied by some validators.
	Details any `json:"details,omitempty"`
}

// UnmarshalJSON accepts either a bare string message or a structured entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return err
		}
		*e = Entry{Message: msg}
		return nil
	}

	type plain Entry
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// String renders the entry on one line.
func (e Entry) String() string {
	s := e.Message
	if e.Type != "" {
		s = fmt.Sprintf("[%s] %s", e.Type, s)
	}
	if e.Field != "" {
		s += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.Line != nil {
		s += fmt.Sprintf(" at line %d", *e.Line)
	}
	return s
}

// IntPtr is a helper for building entries with a line number.
func IntPtr(i int) *int {
	return &i
}

// ValidationResult is the output of any validator.
//
// Validity is derived from Errors and never stored; use Valid.
type ValidationResult struct {
	Errors   []Entry `json:"errors"`
	Warnings []Entry `json:"warnings"`
}

// Valid returns true iff there are no errors. Warnings never affect validity.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error entry.
func (r *ValidationResult) AddError(e Entry) {
	r.Errors = append(r.Errors, e)
}

// AddWarning appends a warning entry.
func (r *ValidationResult) AddWarning(e Entry) {
	r.Warnings = append(r.Warnings, e)
}

// MarshalJSON encodes the result with its derived "valid" flag and with
// empty lists rather than null.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	errs := r.Errors
	if errs == nil {
		errs = []Entry{}
	}
	warns := r.Warnings
	if warns == nil {
		warns = []Entry{}
	}
	return json.Marshal(struct {
		Valid    bool    `json:"valid"`
		Errors   []Entry `json:"errors"`
		Warnings []Entry `json:"warnings"`
	}{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warns,
	})
}

// UnmarshalJSON decodes errors and warnings. Any incoming "valid" flag is
// ignored because validity is derived from the error list.
func (r *ValidationResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Errors   []Entry `json:"errors"`
		Warnings []Entry `json:"warnings"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Errors = wire.Errors
	r.Warnings = wire.Warnings
	return nil
}
