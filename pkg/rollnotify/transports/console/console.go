// Package console provides a transport that logs items in human-readable
// form instead of sending them. Useful for development and debugging.
package console

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// Option configures the console transport.
type Option func(*config)

type config struct {
	verbose bool
	out     io.Writer
	noColor bool
}

// WithVerbose includes frames in the output.
func WithVerbose() Option {
	return func(c *config) {
		c.verbose = true
	}
}

// WithOutput sets the destination (default: os.Stderr).
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithNoColor disables ANSI colors.
func WithNoColor() Option {
	return func(c *config) {
		c.noColor = true
	}
}

// Transport writes each item as one log line.
type Transport struct {
	logger  zerolog.Logger
	verbose bool
}

// New creates a console transport.
func New(opts ...Option) *Transport {
	cfg := &config{out: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}
	output := zerolog.ConsoleWriter{
		Out:        cfg.out,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.noColor,
	}
	return &Transport{
		logger:  zerolog.New(output).With().Timestamp().Logger(),
		verbose: cfg.verbose,
	}
}

// PostItems logs every item and always succeeds.
func (t *Transport) PostItems(_ context.Context, _ string, items []*rollnotify.Item) (*rollnotify.Response, error) {
	for _, item := range items {
		t.write(item)
	}
	return &rollnotify.Response{}, nil
}

func (t *Transport) write(item *rollnotify.Item) {
	event := t.logger.WithLevel(zerologLevel(item.Level)).
		Str("uuid", item.UUID).
		Str("environment", item.Environment)

	if item.Fingerprint != "" {
		event = event.Str("fingerprint", item.Fingerprint)
	}
	if item.Context != "" {
		event = event.Str("context", item.Context)
	}
	if item.ContextID != nil {
		event = event.Uint64("context_id", *item.ContextID)
	}
	if item.Person != nil && item.Person.ID != "" {
		event = event.Str("person", item.Person.ID)
	}
	if item.Request != nil {
		event = event.Str("method", item.Request.Method).Str("url", item.Request.URL)
	}

	traces := item.Body.TraceChain
	if item.Body.Trace != nil {
		traces = []rollnotify.Trace{*item.Body.Trace}
	}
	if len(traces) > 0 {
		event = event.Str("class", traces[0].Exception.Class)
		if len(traces) > 1 {
			causes := make([]string, 0, len(traces)-1)
			for _, tr := range traces[1:] {
				causes = append(causes, tr.Exception.Class+": "+tr.Exception.Message)
			}
			event = event.Strs("causes", causes)
		}
		if t.verbose {
			event = event.Strs("frames", frameLines(traces[0].Frames))
		}
	}

	event.Msg(message(item))
}

func message(item *rollnotify.Item) string {
	switch {
	case item.Title != "":
		return item.Title
	case item.Body.Message != nil:
		return item.Body.Message.Body
	case item.Body.Trace != nil:
		return item.Body.Trace.Exception.Message
	case len(item.Body.TraceChain) > 0:
		return item.Body.TraceChain[0].Exception.Message
	}
	return ""
}

// frameLines renders frames innermost first, as a reader expects.
func frameLines(frames []rollnotify.Frame) []string {
	lines := make([]string, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		var b strings.Builder
		b.WriteString(f.Method)
		b.WriteString(" ")
		b.WriteString(f.Filename)
		if f.Lineno > 0 {
			b.WriteString(":")
			b.WriteString(strconv.Itoa(f.Lineno))
		}
		lines = append(lines, b.String())
	}
	return lines
}

func zerologLevel(level rollnotify.Level) zerolog.Level {
	switch level {
	case rollnotify.LevelDebug:
		return zerolog.DebugLevel
	case rollnotify.LevelInfo:
		return zerolog.InfoLevel
	case rollnotify.LevelWarning:
		return zerolog.WarnLevel
	case rollnotify.LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Close is a no-op.
func (t *Transport) Close() error {
	return nil
}
