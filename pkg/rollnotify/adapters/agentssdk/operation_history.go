// operation_history.go records the LLM and tool calls leading up to a failure.

package agentssdk

import "time"

// OperationRecord is one LLM or tool call. It is reported under
// custom.operation_history.
type OperationRecord struct {
	Kind       string    `json:"kind"` // llm or tool
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	AgentName  string    `json:"agent_name,omitempty"`

	LLM  *LLMOperation  `json:"llm,omitempty"`
	Tool *ToolOperation `json:"tool,omitempty"`

	// Error is set on the operation in progress when the run failed.
	Error string `json:"error,omitempty"`

	done bool
}

// LLMOperation is request and response metadata of an LLM call. Message
// text is never stored.
type LLMOperation struct {
	Model        string            `json:"model"`
	Provider     string            `json:"provider"`
	MessageCount int               `json:"message_count"`
	Messages     []MessageMetadata `json:"messages"`
	Temperature  *float32          `json:"temperature,omitempty"`
	TopP         *float32          `json:"top_p,omitempty"`
	MaxTokens    *int              `json:"max_tokens,omitempty"`
	ToolCount    int               `json:"tool_count"`
	ToolNames    []string          `json:"tool_names,omitempty"`

	ResponseID       string   `json:"response_id,omitempty"`
	FinishReason     string   `json:"finish_reason,omitempty"`
	ToolCallCount    int      `json:"tool_call_count,omitempty"`
	ToolCallNames    []string `json:"tool_call_names,omitempty"`
	PromptTokens     int      `json:"prompt_tokens,omitempty"`
	CompletionTokens int      `json:"completion_tokens,omitempty"`
	TotalTokens      int      `json:"total_tokens,omitempty"`
}

// MessageMetadata describes a message without its content.
type MessageMetadata struct {
	Role          string `json:"role"`
	ContentLength int    `json:"content_length"`
	PartsCount    int    `json:"parts_count"`
	HasImage      bool   `json:"has_image,omitempty"`
	HasToolCall   bool   `json:"has_tool_call,omitempty"`
	HasToolResult bool   `json:"has_tool_result,omitempty"`
}

// ToolOperation holds sizes only; arguments and output may carry secrets.
type ToolOperation struct {
	Name       string `json:"name"`
	CallID     string `json:"call_id"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size,omitempty"`
}

// operationHistoryBuffer is a bounded ring buffer.
type operationHistoryBuffer struct {
	records  []OperationRecord
	maxSize  int
	writeIdx int
}

func (b *operationHistoryBuffer) Add(record OperationRecord) {
	if b.maxSize <= 0 {
		return
	}
	if len(b.records) < b.maxSize {
		b.records = append(b.records, record)
		return
	}
	b.records[b.writeIdx] = record
	b.writeIdx = (b.writeIdx + 1) % b.maxSize
}

// GetAll returns records oldest first.
func (b *operationHistoryBuffer) GetAll() []OperationRecord {
	if len(b.records) < b.maxSize {
		return b.records
	}
	// writeIdx points at the oldest record once full.
	result := make([]OperationRecord, len(b.records))
	n := copy(result, b.records[b.writeIdx:])
	copy(result[n:], b.records[:b.writeIdx])
	return result
}

// UpdateLast applies fn to the newest record. It reports false when empty.
func (b *operationHistoryBuffer) UpdateLast(fn func(*OperationRecord)) bool {
	if len(b.records) == 0 {
		return false
	}
	last := len(b.records) - 1
	if len(b.records) == b.maxSize {
		last = (b.writeIdx - 1 + b.maxSize) % b.maxSize
	}
	fn(&b.records[last])
	return true
}
