package embedders

import (
	"errors"
	"fmt"
)

// Validation errors. Never retried; surfaced to the caller as-is.
var (
	ErrAPIKeyNotSet     = errors.New("API key not set")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrContentEmpty     = errors.New("text cannot be empty")
	ErrBatchTooLarge    = errors.New("batch size exceeds provider limit")
	ErrTextTooLong      = errors.New("text exceeds model token limit")
)

// Provider failure kinds. ErrService is the base of the taxonomy: every
// *Error matches it under errors.Is, so call sites can blanket-catch
// provider failures while still distinguishing the transient kinds.
var (
	ErrRateLimit  = errors.New("rate limit exceeded")
	ErrTimeout    = errors.New("request timed out")
	ErrConnection = errors.New("connection to provider failed")
	ErrAPI        = errors.New("provider API error")
	ErrService    = errors.New("embedding service error")
)

// Error is the closed error type returned for provider failures. Kind is
// always one of the failure kind sentinels above.
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
