// Package validation collects per-field input failures so callers can report
// every offending field at once.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when one or more fields fail validation.
type Error struct {
	Fields []FieldError `json:"fields"`
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field was rejected.
func (e *Error) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Errors accumulates field failures.
type Errors struct {
	fields []FieldError
}

// Add records a failure for field.
func (v *Errors) Add(field, message string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: message})
}

// Required records a failure when value is blank.
func (v *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
		return false
	}
	return true
}

// Err returns nil when nothing failed, otherwise an *Error.
func (v *Errors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &Error{Fields: append([]FieldError(nil), v.fields...)}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var verr *Error
	ok := errors.As(err, &verr)
	return verr, ok
}
