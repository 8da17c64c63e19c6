package engine

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. Each aborts the execution; the
// engine never retries.
var (
	ErrValidation      = errors.New("validation error")
	ErrGraphNavigation = errors.New("graph navigation error")
	ErrIterationLimit  = errors.New("iteration limit error")
	ErrTemplate        = errors.New("template error")
	ErrExecutor        = errors.New("executor error")
	ErrSubWorkflow     = errors.New("sub-workflow error")
	ErrStateUpdate     = errors.New("state update error")
	ErrCancelled       = errors.New("execution cancelled")
)

// Error wraps an engine failure with its kind so callers can branch on
// errors.Is(err, engine.Err*) while users see the plain message.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
