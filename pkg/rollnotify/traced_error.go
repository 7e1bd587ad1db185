// traced_error.go provides an error type that records its construction stack
// and an optional cause, forming an explicit chain for trace_chain reports.

package rollnotify

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 64

// TracedError is an error carrying the call stack where it was created.
// Chains are walked through Unwrap, outermost wrapper first.
type TracedError struct {
	class string
	msg   string
	cause error
	stack []uintptr
}

// NewError returns an error with message msg and the caller's stack.
func NewError(msg string) error {
	return newTracedError("", msg, nil, 1)
}

// Errorf formats like fmt.Errorf. A %w operand becomes the cause.
func Errorf(format string, args ...any) error {
	formatted := fmt.Errorf(format, args...)
	cause := errors.Unwrap(formatted)
	msg := formatted.Error()
	if cause != nil {
		msg = strings.TrimSuffix(msg, ": "+cause.Error())
	}
	return newTracedError("", msg, cause, 1)
}

// Wrap returns an error with message msg whose cause is err. It returns nil
// when err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return newTracedError("", msg, err, 1)
}

// NewTracedError returns an error with an explicit class name, used as the
// exception class in reports.
func NewTracedError(class, msg string, cause error) *TracedError {
	return newTracedError(class, msg, cause, 1)
}

func newTracedError(class, msg string, cause error, skip int) *TracedError {
	return &TracedError{
		class: class,
		msg:   msg,
		cause: cause,
		stack: callers(skip + 1),
	}
}

// callers returns the program counters starting at the function that called
// it, skipping skip additional frames.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}

func (e *TracedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the cause.
func (e *TracedError) Unwrap() error {
	return e.cause
}

// Message returns the error's own message, without its cause.
func (e *TracedError) Message() string {
	return e.msg
}

// ClassName returns the class given to NewTracedError, or "" when unset.
func (e *TracedError) ClassName() string {
	return e.class
}

// Callers returns the program counters captured at construction.
func (e *TracedError) Callers() []uintptr {
	return e.stack
}
