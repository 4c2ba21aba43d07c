package sluice

import (
	"errors"
	"strings"
)

// Fixed messages surfaced by the engine itself (as opposed to individual
// validator steps, whose messages live next to their step functions). Callers
// and tests match on these strings.
const (
	MsgMissingKey     = "Missing required key"
	MsgKeyNotAllowed  = "Key not allowed"
	MsgImmutableField = "Attempted to mutate immutable field"
	MsgNotObject      = "Not an object"
)

// ValidationError identifies exactly which field failed and why. ParentKeys
// holds the nesting path from the outermost schema level down to the failing
// field's parent, in order.
type ValidationError struct {
	Key        string
	ParentKeys []string
	Message    string
}

// Error renders the record as "message (at /parent/key)".
func (e *ValidationError) Error() string {
	if e.Key == "" && len(e.ParentKeys) == 0 {
		return e.Message
	}
	return e.Message + " (at " + e.Pointer() + ")"
}

// Pointer returns the failing field's location as a JSON Pointer,
// for example /items/endpoint.
func (e *ValidationError) Pointer() string {
	parts := make([]string, 0, len(e.ParentKeys)+1)
	parts = append(parts, e.ParentKeys...)
	if e.Key != "" {
		parts = append(parts, e.Key)
	}
	if len(parts) == 0 {
		return "/"
	}
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~", "~0"), "/", "~1")
	}
	return "/" + strings.Join(parts, "/")
}

// AsValidationError extracts a *ValidationError using errors.As internally.
func AsValidationError(err error) (*ValidationError, bool) {
	if err == nil {
		return nil, false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
