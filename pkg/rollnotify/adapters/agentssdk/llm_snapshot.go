package agentssdk

import (
	"github.com/samber/lo"
	llmsdk "github.com/strongdm/ai-llm-sdk/pkg/llm"
)

// maxSnapshotMessages bounds the message metadata kept per LLM call.
const maxSnapshotMessages = 10

func buildLLMOperation(req llmsdk.Request) *LLMOperation {
	op := &LLMOperation{
		Model:        req.Model,
		Provider:     string(req.Provider),
		MessageCount: len(req.Messages),
		Temperature:  req.Temperature,
		TopP:         req.TopP,
		MaxTokens:    req.MaxTokens,
		ToolCount:    len(req.Tools),
	}
	if len(req.Tools) > 0 {
		op.ToolNames = make([]string, len(req.Tools))
		for i, tool := range req.Tools {
			op.ToolNames[i] = tool.Name
		}
	}

	recent := req.Messages
	if len(recent) > maxSnapshotMessages {
		recent = recent[len(recent)-maxSnapshotMessages:]
	}
	op.Messages = lo.Map(recent, func(m llmsdk.Message, _ int) MessageMetadata { return buildMessageMetadata(m) })
	return op
}

func buildMessageMetadata(msg llmsdk.Message) MessageMetadata {
	md := MessageMetadata{
		Role:       string(msg.Role),
		PartsCount: len(msg.Parts),
	}
	for _, part := range msg.Parts {
		md.ContentLength += len(part.Text)
		md.HasImage = md.HasImage || part.ImageData != nil
		md.HasToolCall = md.HasToolCall || part.ToolCall != nil
		md.HasToolResult = md.HasToolResult || part.ToolResult != nil
	}
	return md
}

func applyLLMResponse(op *LLMOperation, resp llmsdk.Response) {
	if op == nil {
		return
	}
	op.ResponseID = resp.ID
	op.FinishReason = string(resp.FinishReason)
	op.PromptTokens = resp.Usage.PromptTokens
	op.CompletionTokens = resp.Usage.CompletionTokens
	op.TotalTokens = resp.Usage.TotalTokens
	if len(resp.ToolCalls) > 0 {
		op.ToolCallCount = len(resp.ToolCalls)
		op.ToolCallNames = lo.Map(resp.ToolCalls, func(tc llmsdk.ToolCall, _ int) string { return tc.Name })
	}
}
