package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing required field on a creation request.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Kind is the transport-agnostic classification of a failure.
type Kind string

const (
	KindBadInput Kind = "bad_input"
	KindNotFound Kind = "not_found"
	KindInternal Kind = "internal"
)

// Classify maps an error returned by the core to its Kind.
func Classify(err error) Kind {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return KindBadInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
