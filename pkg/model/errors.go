package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContract marks a response that claimed success but whose payload was
// missing or malformed. Callers treat it like a transport failure.
var ErrContract = errors.New("unexpected response")

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned by client-side checks before any network call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError creates a ValidationError, or nil when no field failed.
func NewValidationError(details ...FieldError) error {
	if len(details) == 0 {
		return nil
	}
	return &ValidationError{Fields: details}
}

// Required returns a FieldError slice with one entry if value is blank after trimming.
func Required(field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return []FieldError{{Field: field, Message: "is required"}}
	}
	return nil
}

// BusinessError wraps an envelope header whose errorCount is non-zero.
type BusinessError struct {
	Header Header
}

func (e *BusinessError) Error() string {
	for _, m := range e.Header.Messages {
		if m.Level == LevelError && m.Text != "" {
			return m.Text
		}
	}
	return fmt.Sprintf("request rejected with %d error(s)", e.Header.ErrorCount)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidTransitionError is returned when a flow is driven out of order,
// e.g. confirming a delete that was never requested.
type InvalidTransitionError struct {
	Flow string
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s → %s", e.Flow, e.From, e.To)
}
