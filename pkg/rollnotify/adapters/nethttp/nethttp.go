// Package nethttp reports errors and panics from net/http handlers.
package nethttp

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// Reporter is the subset of *rollnotify.Notifier used by the middleware.
type Reporter interface {
	HandleError(ctx context.Context, err error, req rollnotify.Request, cb rollnotify.Callback) error
	HandlePanic(ctx context.Context, recovered any, stack []byte, req rollnotify.Request, cb rollnotify.Callback) error
}

// ErrorFunc handles an error raised while serving r.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

// Option configures the middleware.
type Option func(*config)

type config struct {
	requestOptions func(r *http.Request) []rollnotify.RequestOption
	callback       rollnotify.Callback
}

// WithRequestOptions derives per-request options such as the route or the
// authenticated user.
func WithRequestOptions(fn func(r *http.Request) []rollnotify.RequestOption) Option {
	return func(c *config) {
		c.requestOptions = fn
	}
}

// WithCallback receives the delivery result of each reported item.
func WithCallback(cb rollnotify.Callback) Option {
	return func(c *config) {
		c.callback = cb
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) request(r *http.Request) rollnotify.Request {
	if c.requestOptions == nil {
		return rollnotify.FromHTTPRequest(r)
	}
	return rollnotify.FromHTTPRequest(r, c.requestOptions(r)...)
}

// ErrorHandler reports err with the request attached and then calls next
// with the original error. A nil next writes a 500 response. A nil err is
// passed through without reporting.
func ErrorHandler(reporter Reporter, next ErrorFunc, opts ...Option) ErrorFunc {
	cfg := newConfig(opts)
	if next == nil {
		next = defaultErrorResponse
	}
	return func(w http.ResponseWriter, r *http.Request, err error) {
		if err != nil {
			_ = reporter.HandleError(r.Context(), err, cfg.request(r), cfg.callback)
		}
		next(w, r, err)
	}
}

// Recoverer reports panics from next at level critical and answers 500.
// http.ErrAbortHandler is re-raised without reporting.
func Recoverer(reporter Reporter, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				_ = reporter.HandlePanic(r.Context(), rec, debug.Stack(), cfg.request(r), cfg.callback)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorResponse(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
