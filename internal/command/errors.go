package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTimeSpec marks a day/time combination that resolves to a
// timestamp not strictly in the future. It is a validation-class error:
// surfaced to the user, never retried, never persisted.
var ErrInvalidTimeSpec = errors.New("invalid time spec")

// FieldError pins a validation failure to a field and the rule it broke so
// the caller can produce an actionable user message.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Message, e.Rule)
}

// ValidationError aggregates every structural problem found in a command.
// It always carries at least one FieldError.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "command validation failed: " + strings.Join(parts, "; ")
}

// invalid builds a single-field ValidationError.
func invalid(field, rule, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: msg}}}
}

// IsValidation reports whether err is a command validation failure,
// including time-resolution failures.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidTimeSpec)
}
