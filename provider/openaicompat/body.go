package openaicompat

import (
	"encoding/json"

	"github.com/nevindra/workshop"
)

// BuildBody converts a workshop ChatRequest and a model name into an
// OpenAI-format ChatRequest. System messages are kept in the messages array
// as role:"system". Tools and tool_choice are included only when the request
// carries a non-empty tool list. Options configure generation parameters;
// a per-request temperature is applied last and overrides option defaults.
func BuildBody(req workshop.ChatRequest, model string, opts ...Option) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			// Replayed assistant turn; the backend matches tool results
			// to these call ids.
			msg := Message{Role: "assistant", ToolCalls: wireToolCalls(m.ToolCalls)}
			if m.Content != "" {
				msg.Content = m.Content
			}
			msgs = append(msgs, msg)

		case m.Role == "tool":
			msgs = append(msgs, Message{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})

		default:
			// System, user, or plain assistant message.
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
	}

	body := ChatRequest{
		Model:    model,
		Messages: msgs,
	}

	if len(req.Tools) > 0 {
		body.Tools = BuildToolDefs(req.Tools)
		if req.ToolChoice != "" {
			body.ToolChoice = req.ToolChoice
		}
	}

	for _, opt := range opts {
		opt(&body)
	}

	if req.Temperature != nil {
		t := *req.Temperature
		body.Temperature = &t
	}

	return body
}

func wireToolCalls(calls []workshop.ToolCall) []ToolCallRequest {
	out := make([]ToolCallRequest, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ToolCallRequest{
			ID:   tc.ID,
			Type: "function",
			Function: FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Args),
			},
		})
	}
	return out
}

// BuildToolDefs converts workshop ToolDefinitions to OpenAI tool format.
// Tools with no declared parameters get an empty schema object; some
// backends reject a missing parameters field.
func BuildToolDefs(tools []workshop.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
