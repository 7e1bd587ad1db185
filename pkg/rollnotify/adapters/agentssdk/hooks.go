// hooks.go captures operation context for the runner wrapper. Hooks never
// report; errors are detected at the runner boundary.

package agentssdk

import (
	"context"
	"time"

	"github.com/strongdm/ai-agents-sdk/pkg/agents"
	llmsdk "github.com/strongdm/ai-llm-sdk/pkg/llm"
	"go.uber.org/zap"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// HookAdapter implements agents.RunHooks. It records enrichment for the run
// found in the context and then delegates to inner.
type HookAdapter struct {
	store  EnrichmentStore
	inner  agents.RunHooks
	logger *zap.Logger
	now    func() time.Time
}

// NewHookAdapter wraps inner, which may be nil. Only inner's errors are
// returned.
func NewHookAdapter(store EnrichmentStore, inner agents.RunHooks, logger *zap.Logger) agents.RunHooks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookAdapter{
		store:  store,
		inner:  inner,
		logger: logger,
		now:    time.Now,
	}
}

func (h *HookAdapter) OnAgentStart(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent) error {
	if agent != nil {
		h.update(ctx, func(e *Enrichment) {
			e.AgentName = agent.Name()
		})
	}
	if h.inner != nil {
		return h.inner.OnAgentStart(ctx, runCtx, agent)
	}
	return nil
}

func (h *HookAdapter) OnAgentEnd(ctx context.Context, runCtx *agents.AgentHookContext, agent *agents.Agent, result agents.RunResult) error {
	if h.inner != nil {
		return h.inner.OnAgentEnd(ctx, runCtx, agent, result)
	}
	return nil
}

func (h *HookAdapter) OnHandoff(ctx context.Context, runCtx *agents.RunContext, from *agents.Agent, to *agents.Agent) error {
	if to != nil {
		h.update(ctx, func(e *Enrichment) {
			e.AgentName = to.Name()
			e.Operation = "handoff"
		})
	}
	if h.inner != nil {
		return h.inner.OnHandoff(ctx, runCtx, from, to)
	}
	return nil
}

func (h *HookAdapter) OnToolStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, call llmsdk.ToolCall) error {
	agentName := nameOf(agent)
	h.update(ctx, func(e *Enrichment) {
		if agentName != "" {
			e.AgentName = agentName
		}
		e.Operation = "tool"
		e.ToolName = tool.Name
		e.ToolCallID = call.ID
		e.OperationID = call.ID
	})
	h.appendOperation(ctx, OperationRecord{
		Kind:      "tool",
		Timestamp: h.now(),
		AgentName: agentName,
		Tool: &ToolOperation{
			Name:      tool.Name,
			CallID:    call.ID,
			InputSize: len(call.Arguments),
		},
	})

	if h.inner != nil {
		return h.inner.OnToolStart(ctx, runCtx, agent, tool, call)
	}
	return nil
}

func (h *HookAdapter) OnToolEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, tool agents.Tool, output string) error {
	h.finishOperation(ctx, "tool", func(rec *OperationRecord) {
		if rec.Tool != nil {
			rec.Tool.OutputSize = len(output)
		}
	})
	if h.inner != nil {
		return h.inner.OnToolEnd(ctx, runCtx, agent, tool, output)
	}
	return nil
}

func (h *HookAdapter) OnLLMStart(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, req llmsdk.Request) error {
	agentName := nameOf(agent)
	h.update(ctx, func(e *Enrichment) {
		if agentName != "" {
			e.AgentName = agentName
		}
		e.Operation = "llm"
		e.Model = req.Model
	})
	h.appendOperation(ctx, OperationRecord{
		Kind:      "llm",
		Timestamp: h.now(),
		AgentName: agentName,
		LLM:       buildLLMOperation(req),
	})

	if h.inner != nil {
		return h.inner.OnLLMStart(ctx, runCtx, agent, req)
	}
	return nil
}

func (h *HookAdapter) OnLLMEnd(ctx context.Context, runCtx *agents.RunContext, agent *agents.Agent, resp llmsdk.Response) error {
	h.finishOperation(ctx, "llm", func(rec *OperationRecord) {
		applyLLMResponse(rec.LLM, resp)
	})
	if h.inner != nil {
		return h.inner.OnLLMEnd(ctx, runCtx, agent, resp)
	}
	return nil
}

func (h *HookAdapter) update(ctx context.Context, fn func(e *Enrichment)) {
	if runID, ok := rollnotify.RunIDFromContext(ctx); ok {
		h.store.Update(runID, fn)
	}
}

func (h *HookAdapter) appendOperation(ctx context.Context, rec OperationRecord) {
	if runID, ok := rollnotify.RunIDFromContext(ctx); ok {
		h.store.AppendOperation(runID, rec)
	}
}

// finishOperation completes the newest record when it is an open operation
// of the given kind.
func (h *HookAdapter) finishOperation(ctx context.Context, kind string, fn func(rec *OperationRecord)) {
	runID, ok := rollnotify.RunIDFromContext(ctx)
	if !ok {
		return
	}
	now := h.now()
	h.store.UpdateLastOperation(runID, func(rec *OperationRecord) {
		if rec.Kind != kind || rec.done {
			h.logger.Debug("no open operation to finish", zap.String("kind", kind), zap.String("run_id", runID))
			return
		}
		rec.DurationMs = now.Sub(rec.Timestamp).Milliseconds()
		rec.done = true
		fn(rec)
	})
}

func nameOf(agent *agents.Agent) string {
	if agent == nil {
		return ""
	}
	return agent.Name()
}
