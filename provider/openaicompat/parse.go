package openaicompat

import (
	"encoding/json"

	"github.com/nevindra/workshop"
)

// ParseResponse maps a wire completion onto the runtime response type.
// Only choices[0] is read; backends are asked for a single choice.
func ParseResponse(resp ChatResponse) (workshop.ChatResponse, error) {
	out := workshop.ChatResponse{Usage: usageFrom(resp.Usage)}
	if len(resp.Choices) == 0 {
		return out, nil
	}
	if msg := resp.Choices[0].Message; msg != nil {
		out.Content = msg.Content
		out.ToolCalls = ParseToolCalls(msg.ToolCalls)
	}
	return out, nil
}

func usageFrom(u *Usage) workshop.Usage {
	if u == nil {
		return workshop.Usage{}
	}
	return workshop.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
}

// ParseToolCalls converts wire tool-call requests to runtime ToolCalls.
// function.arguments arrives as a JSON string; anything that is not valid
// JSON is replaced with an empty object so downstream decoding never sees a
// broken payload.
func ParseToolCalls(tcs []ToolCallRequest) []workshop.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]workshop.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out = append(out, workshop.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out
}
