// wrapper.go wraps agents.Runner so failed and panicking runs are reported.

package agentssdk

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/strongdm/ai-agents-sdk/pkg/agents"
	"go.uber.org/zap"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// Reporter is the subset of *rollnotify.Notifier used by the wrapper.
type Reporter interface {
	HandleErrorWithPayloadData(ctx context.Context, err error, payload map[string]any, req rollnotify.Request, cb rollnotify.Callback) error
	HandlePanicWithPayloadData(ctx context.Context, recovered any, stack []byte, payload map[string]any, req rollnotify.Request, cb rollnotify.Callback) error
}

// WrappedRunner reports run errors and panics. Hooks installed by the
// wrapper only collect enrichment.
type WrappedRunner struct {
	inner       *agents.Runner
	reporter    Reporter
	enrichments EnrichmentStore
	logger      *zap.Logger
	startTime   time.Time
}

// Run executes the agent and reports any error or panic. The original
// error is returned unchanged and panics are re-raised.
func (w *WrappedRunner) Run(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (agents.RunResult, error) {
	ctx, runID := w.begin(ctx, session)
	defer w.enrichments.Delete(runID)
	defer w.capturePanic(ctx, runID)

	result, err := w.inner.Run(ctx, agent, input, session, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, err)
	}
	return result, err
}

// RunOnce executes a single turn without a session.
func (w *WrappedRunner) RunOnce(ctx context.Context, agent *agents.Agent, input string, cfg *agents.RunConfig) (agents.RunResult, error) {
	ctx, runID := w.begin(ctx, nil)
	defer w.enrichments.Delete(runID)
	defer w.capturePanic(ctx, runID)

	result, err := w.inner.RunOnce(ctx, agent, input, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, err)
	}
	return result, err
}

// RunStream starts a streaming run. Only errors returned while starting the
// stream are reported. The enrichment for a started stream is kept until
// the stream's context ends.
func (w *WrappedRunner) RunStream(ctx context.Context, agent *agents.Agent, input string, session agents.Session, cfg *agents.RunConfig) (*agents.StreamingRun, error) {
	ctx, runID := w.begin(ctx, session)
	defer w.capturePanic(ctx, runID)

	stream, err := w.inner.RunStream(ctx, agent, input, session, w.wrapRunConfig(cfg))
	if err != nil {
		w.captureError(ctx, runID, err)
		w.enrichments.Delete(runID)
		return stream, err
	}
	context.AfterFunc(ctx, func() { w.enrichments.Delete(runID) })
	return stream, nil
}

// Inner returns the wrapped runner.
func (w *WrappedRunner) Inner() *agents.Runner {
	return w.inner
}

// begin assigns a run ID and links the context to the session's cxdb
// context when one is known.
func (w *WrappedRunner) begin(ctx context.Context, session any) (context.Context, string) {
	runID := uuid.New().String()
	ctx = rollnotify.WithRunID(ctx, runID)
	if provider, ok := session.(rollnotify.ContextIDProvider); ok {
		if id, err := provider.ContextID(ctx); err == nil {
			ctx = rollnotify.WithContextID(ctx, id)
		} else {
			w.logger.Debug("session has no context id", zap.Error(err))
		}
	}
	return ctx, runID
}

// wrapRunConfig clones cfg and installs a HookAdapter around its hooks.
func (w *WrappedRunner) wrapRunConfig(cfg *agents.RunConfig) *agents.RunConfig {
	var cloned agents.RunConfig
	if cfg != nil {
		cloned = *cfg
	}
	cloned.Hooks = NewHookAdapter(w.enrichments, cloned.Hooks, w.logger)
	return &cloned
}

func (w *WrappedRunner) captureError(ctx context.Context, runID string, err error) {
	markFailed(w.enrichments, runID, err.Error())
	enrichment, _ := w.enrichments.Get(runID)
	payload := buildPayload(runID, classifyError(err), enrichment, rollnotify.CaptureRuntimeState(w.startTime))
	if rerr := w.reporter.HandleErrorWithPayloadData(ctx, err, payload, nil, nil); rerr != nil {
		w.logger.Warn("failed to report run error", zap.String("run_id", runID), zap.Error(rerr))
	}
}

// capturePanic reports a panic and re-raises it.
func (w *WrappedRunner) capturePanic(ctx context.Context, runID string) {
	r := recover()
	if r == nil {
		return
	}
	stack := debug.Stack()
	markFailed(w.enrichments, runID, fmt.Sprint(r))
	enrichment, _ := w.enrichments.Get(runID)
	payload := buildPayload(runID, "panic", enrichment, rollnotify.CaptureRuntimeState(w.startTime))
	if rerr := w.reporter.HandlePanicWithPayloadData(ctx, r, stack, payload, nil, nil); rerr != nil {
		w.logger.Warn("failed to report run panic", zap.String("run_id", runID), zap.Error(rerr))
	}
	panic(r)
}
