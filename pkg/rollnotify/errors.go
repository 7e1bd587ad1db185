// errors.go defines the error taxonomy returned by the notifier and transports.

package rollnotify

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration covers a missing access token or an uninitialized notifier.
	KindConfiguration
	// KindValidation covers caller input that cannot be reported, such as a nil error.
	KindValidation
	// KindSerialization means the payload could not be encoded even by the fallback encoder.
	KindSerialization
	// KindTransport covers network failures, timeouts and non-2xx responses.
	KindTransport
	// KindAPI means the ingestion API answered with an application-level error.
	KindAPI
	// KindAssembly means an optional section of an item could not be built.
	KindAssembly
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindSerialization:
		return "serialization"
	case KindTransport:
		return "transport"
	case KindAPI:
		return "api"
	case KindAssembly:
		return "assembly"
	default:
		return "unknown"
	}
}

var (
	// ErrUninitialized is returned by report calls made before Init or after Shutdown.
	ErrUninitialized = errors.New("notifier is not initialized")
	// ErrMissingAccessToken is returned by Init when no token is given.
	ErrMissingAccessToken = errors.New("missing access token")
	// ErrShutdown is returned by Init once the notifier has been shut down.
	ErrShutdown = errors.New("notifier is shut down")
	// ErrBelowMinimumLevel is passed to the callback of an item dropped by the level filter.
	ErrBelowMinimumLevel = errors.New("item level is below the minimum level")
	// ErrRateLimited is returned when a client or server rate limit rejects an item.
	ErrRateLimited = errors.New("rate limited")
	// ErrNilError is returned when HandleError is called without an error value.
	ErrNilError = errors.New("error value is nil")
)

// Error is the error type returned by the package.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rollnotify: %s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("rollnotify: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		if x.Kind == kind {
			return true
		}
		return IsKind(x.Err, kind)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	}
	return false
}
