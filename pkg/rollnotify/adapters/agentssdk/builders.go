// builders.go turns run enrichment into payload data for the notifier.

package agentssdk

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

var guardrailPatterns = []string{
	"guardrail",
	"content policy",
	"safety filter",
	"blocked by policy",
}

// buildPayload returns the payload data attached to an item reported for
// a failed run. Agent details go under custom; the agent name becomes the
// item context when known.
func buildPayload(runID, errorType string, enrichment Enrichment, state *rollnotify.RuntimeState) map[string]any {
	custom := map[string]any{
		"run_id":     runID,
		"error_type": errorType,
	}
	for k, v := range map[string]string{
		"agent_name":   enrichment.AgentName,
		"model":        enrichment.Model,
		"tool_name":    enrichment.ToolName,
		"tool_call_id": enrichment.ToolCallID,
		"operation":    enrichment.Operation,
		"operation_id": enrichment.OperationID,
	} {
		if v != "" {
			custom[k] = v
		}
	}
	if len(enrichment.History) > 0 {
		custom["operation_history"] = enrichment.History
	}
	if state != nil {
		custom["runtime"] = state
	}

	payload := map[string]any{"custom": custom}
	if enrichment.AgentName != "" {
		payload["context"] = "agent/" + enrichment.AgentName
	}
	return payload
}

// classifyError names the failure class of a run error.
func classifyError(err error) string {
	switch {
	case err == nil:
		return "error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	msg := strings.ToLower(err.Error())
	if lo.ContainsBy(guardrailPatterns, func(p string) bool { return strings.Contains(msg, p) }) {
		return "guardrail"
	}
	return "error"
}

// markFailed attaches msg to the newest operation if it never finished.
func markFailed(store EnrichmentStore, runID, msg string) {
	store.UpdateLastOperation(runID, func(rec *OperationRecord) {
		if !rec.done {
			rec.Error = msg
		}
	})
}
