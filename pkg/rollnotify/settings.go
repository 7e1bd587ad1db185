// settings.go holds notifier configuration and its functional options.

package rollnotify

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the public ingestion API base URL.
	DefaultEndpoint = "https://api.rollbar.com/api/1/"
	// DefaultHandlerInterval is the flush period in ModeInterval.
	DefaultHandlerInterval = 3 * time.Second
	// DefaultBatchSize is the maximum number of items per transport call.
	DefaultBatchSize = 10

	// NotifierName and Version identify this library in payloads.
	NotifierName = "go-rollnotify"
	Version      = "0.1.0"

	// EnvironmentVariable supplies the default environment name.
	EnvironmentVariable = "GO_ENV"
)

// HandlerMode selects when queued items are flushed.
type HandlerMode string

const (
	ModeInterval HandlerMode = "interval"
	ModeNextTick HandlerMode = "nextTick"
	ModeInline   HandlerMode = "inline"
)

// ParseHandlerMode validates a handler mode name.
func ParseHandlerMode(s string) (HandlerMode, error) {
	switch m := HandlerMode(s); m {
	case ModeInterval, ModeNextTick, ModeInline:
		return m, nil
	}
	return "", &Error{Op: "parse handler", Kind: KindConfiguration, Err: fmt.Errorf("unknown handler mode %q", s)}
}

// AddRequestDataFunc replaces the default request enrichment of an item.
type AddRequestDataFunc func(item *Item, req Request) error

// Settings is the notifier configuration, fixed at Init.
type Settings struct {
	AccessToken string
	Endpoint    string
	Environment string
	Host        string
	Root        string
	Branch      string
	CodeVersion string
	Framework   string

	Handler         HandlerMode
	HandlerInterval time.Duration
	BatchSize       int
	MinimumLevel    Level

	ScrubFields   []string
	ScrubHeaders  []string
	ScrubMessages bool
	ContextLines  int

	AddRequestData AddRequestDataFunc
	ItemsPerMinute int
	Fingerprinting bool

	Logger    *zap.Logger
	Metrics   *Metrics
	Transport Transport
}

func defaultSettings() Settings {
	env := os.Getenv(EnvironmentVariable)
	if env == "" {
		env = "unspecified"
	}
	return Settings{
		Endpoint:        DefaultEndpoint,
		Environment:     env,
		Host:            defaultHost(),
		Framework:       "go",
		Handler:         ModeInterval,
		HandlerInterval: DefaultHandlerInterval,
		BatchSize:       DefaultBatchSize,
		MinimumLevel:    LevelDebug,
		ScrubFields:     append([]string{}, DefaultScrubFields...),
		ContextLines:    DefaultContextLines,
		Logger:          zap.NewNop(),
	}
}

func (s *Settings) validate() error {
	if _, err := ParseHandlerMode(string(s.Handler)); err != nil {
		return err
	}
	if s.HandlerInterval <= 0 {
		s.HandlerInterval = DefaultHandlerInterval
	}
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return nil
}

// Option configures a Notifier at Init.
type Option func(*Settings)

// WithEnvironment sets the environment name.
func WithEnvironment(env string) Option {
	return func(s *Settings) { s.Environment = env }
}

// WithHost overrides the reported host name.
func WithHost(host string) Option {
	return func(s *Settings) { s.Host = host }
}

// WithRoot sets the code root reported with the server section.
func WithRoot(root string) Option {
	return func(s *Settings) { s.Root = root }
}

// WithBranch sets the source branch.
func WithBranch(branch string) Option {
	return func(s *Settings) { s.Branch = branch }
}

// WithCodeVersion sets the deployed code version.
func WithCodeVersion(version string) Option {
	return func(s *Settings) { s.CodeVersion = version }
}

// WithFramework sets the framework tag.
func WithFramework(framework string) Option {
	return func(s *Settings) { s.Framework = framework }
}

// WithEndpoint sets the API base URL.
func WithEndpoint(endpoint string) Option {
	return func(s *Settings) { s.Endpoint = endpoint }
}

// WithHandler sets the flush mode.
func WithHandler(mode HandlerMode) Option {
	return func(s *Settings) { s.Handler = mode }
}

// WithHandlerInterval sets the flush period for ModeInterval.
func WithHandlerInterval(d time.Duration) Option {
	return func(s *Settings) { s.HandlerInterval = d }
}

// WithBatchSize sets the maximum number of items per transport call.
func WithBatchSize(n int) Option {
	return func(s *Settings) { s.BatchSize = n }
}

// WithMinimumLevel drops items below level at delivery time.
func WithMinimumLevel(level Level) Option {
	return func(s *Settings) { s.MinimumLevel = level }
}

// WithScrubFields replaces the list of masked parameter names.
func WithScrubFields(fields ...string) Option {
	return func(s *Settings) { s.ScrubFields = fields }
}

// WithScrubHeaders sets the list of masked header names.
func WithScrubHeaders(headers ...string) Option {
	return func(s *Settings) { s.ScrubHeaders = headers }
}

// WithMessageScrubbing redacts secrets and PII found in messages.
func WithMessageScrubbing() Option {
	return func(s *Settings) { s.ScrubMessages = true }
}

// WithContextLines sets how many source lines surround each frame.
func WithContextLines(n int) Option {
	return func(s *Settings) { s.ContextLines = n }
}

// WithAddRequestData replaces the default request enrichment.
func WithAddRequestData(fn AddRequestDataFunc) Option {
	return func(s *Settings) { s.AddRequestData = fn }
}

// WithItemsPerMinute rejects reports above n per minute. Zero disables the limit.
func WithItemsPerMinute(n int) Option {
	return func(s *Settings) { s.ItemsPerMinute = n }
}

// WithFingerprinting computes a fingerprint for items that lack one.
func WithFingerprinting() Option {
	return func(s *Settings) { s.Fingerprinting = true }
}

// WithLogger sets the notifier's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Settings) { s.Logger = logger }
}

// WithMetrics records queue and delivery metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Settings) { s.Metrics = m }
}

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(s *Settings) { s.Transport = t }
}
