// Package common defines the error taxonomy shared by the Agita client layers.
// Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Read errors.
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous result")

	// Write errors.
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// Identity / transport errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("store unavailable")

	// Startup errors.
	ErrMissingConfig = errors.New("missing mandatory configuration")
)

// ValidationError carries field-level detail for a client-side pre-check failure.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Resource string
	Fields   map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(resource, field, reason string) *ValidationError {
	return &ValidationError{Resource: resource, Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: invalid %s", ErrValidation, e.Resource)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: invalid %s (%s)", ErrValidation, e.Resource, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Kind maps err onto its taxonomy name. Unknown errors are reported as
// "transport" since every non-classified failure originates at the network boundary.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "auth"
	default:
		return "transport"
	}
}
