package workshop

import "encoding/json"

// --- LLM protocol types ---

// ChatMessage is one entry in a conversation. Role is "system", "user",
// "assistant", or "tool". ToolCalls is meaningful only on assistant messages;
// ToolCallID is required on tool messages and links the result back to the
// assistant call that requested it.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-emitted request to run a tool. Args is the raw
// arguments text as produced by the model; it is not guaranteed to be valid
// JSON until execution time.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolChoice values accepted by ChatRequest.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

type ChatRequest struct {
	Messages    []ChatMessage    `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"` // "auto", "none", or empty
	Temperature *float64         `json:"temperature,omitempty"` // nil = provider default
}

type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Usage tracks token consumption reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}

// --- Streaming ---

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

const (
	// EventToken carries an incremental text chunk from the model.
	EventToken StreamEventType = "token"
	// EventAgent carries a specialist agent's output, emitted before the
	// main loop's first model call when the router selects one.
	EventAgent StreamEventType = "agent"
)

// StreamEvent is a typed event emitted during a streamed turn. Consumers
// receive these on the channel passed to Agent.RespondStream.
type StreamEvent struct {
	// Type identifies the event kind.
	Type StreamEventType `json:"type"`
	// Token carries the text delta (token events only).
	Token string `json:"token,omitempty"`
	// Name is the specialist agent name (agent events only).
	Name string `json:"name,omitempty"`
	// Content is the specialist agent output (agent events only).
	Content string `json:"content,omitempty"`
}
