package generators

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrAPIKeyNotSet = errors.New("API key not set")
	ErrNoMessages   = errors.New("messages cannot be empty")
)

// Provider failure kinds, mirroring the embedding adapter's taxonomy.
// ErrService is the base: every *Error matches it under errors.Is.
var (
	ErrRateLimit  = errors.New("rate limit exceeded")
	ErrTimeout    = errors.New("request timed out")
	ErrConnection = errors.New("connection to provider failed")
	ErrAPI        = errors.New("provider API error")
	ErrService    = errors.New("generation service error")
)

// Error is the closed error type returned for provider failures.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on the exact kind or on the ErrService base.
func (e *Error) Is(target error) bool {
	return target == e.Kind || target == ErrService
}

func newError(kind error, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
