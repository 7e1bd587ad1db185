package agentssdk

import (
	"time"

	"github.com/strongdm/ai-agents-sdk/pkg/agents"
	"go.uber.org/zap"
)

// WrapOption configures a WrappedRunner.
type WrapOption func(*WrappedRunner)

// WithLogger sets the logger used when reporting fails.
func WithLogger(logger *zap.Logger) WrapOption {
	return func(w *WrappedRunner) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithEnrichmentStore replaces the default in-memory store.
func WithEnrichmentStore(store EnrichmentStore) WrapOption {
	return func(w *WrappedRunner) {
		if store != nil {
			w.enrichments = store
		}
	}
}

// Instrument wraps runner so failed runs are reported through reporter,
// normally a *rollnotify.Notifier.
//
//	notifier := rollnotify.New()
//	_ = notifier.Init(token)
//	wrapped := agentssdk.Instrument(agents.NewRunner(client), notifier)
//	result, err := wrapped.Run(ctx, agent, input, session, nil)
func Instrument(runner *agents.Runner, reporter Reporter, opts ...WrapOption) *WrappedRunner {
	w := &WrappedRunner{
		inner:       runner,
		reporter:    reporter,
		enrichments: NewEnrichmentStore(),
		logger:      zap.NewNop(),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}
