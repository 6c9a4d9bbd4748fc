package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nevindra/workshop"
)

// StreamSSE decodes a chat completions SSE body, forwarding text deltas to
// ch as token events and accumulating the final response: content, assembled
// tool calls, and the usage that arrives on the last data frame.
//
// The channel is never closed here; the caller owns it and may reuse it
// across multiple streaming calls. The context cancels channel sends when
// the consumer is no longer interested.
func StreamSSE(ctx context.Context, body io.Reader, ch chan<- workshop.StreamEvent) (workshop.ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	// Tool call arguments can push a single data line past the 64KB
	// scanner default.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder
	var usage workshop.Usage
	var calls toolCallAssembler

	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			// Comment, event name, or retry hint.
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Broken frame; keep reading.
			continue
		}

		// Usage arrives on the final chunk (often with empty choices).
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta == nil {
			continue
		}

		if delta.Content != "" {
			fullContent.WriteString(delta.Content)
			if ch != nil {
				select {
				case ch <- workshop.StreamEvent{Type: workshop.EventToken, Token: delta.Content}:
				case <-ctx.Done():
					return workshop.ChatResponse{}, ctx.Err()
				}
			}
		}

		for _, tc := range delta.ToolCalls {
			calls.add(tc)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return workshop.ChatResponse{}, ctx.Err()
		}
		return workshop.ChatResponse{}, workshop.WrapError(workshop.KindProvider, err, "read stream")
	}

	return workshop.ChatResponse{
		Content:   fullContent.String(),
		ToolCalls: calls.finish(),
		Usage:     usage,
	}, nil
}

// toolCallAssembler accumulates streamed tool call fragments. OpenAI streams
// tool calls incrementally: each fragment usually carries an index, the first
// fragment for a call carries its id and name, and arguments arrive as string
// pieces to be concatenated in order.
type toolCallAssembler struct {
	calls []*partialToolCall
}

type partialToolCall struct {
	ID   string
	Name string
	Args strings.Builder
}

// add merges one streamed fragment. The slot is chosen by index when the
// fragment carries one, otherwise by matching a previously seen id, otherwise
// a fresh slot is appended.
func (a *toolCallAssembler) add(tc ToolCallRequest) {
	slot := a.slotFor(tc)
	if tc.ID != "" {
		slot.ID = tc.ID
	}
	if tc.Function.Name != "" {
		slot.Name = tc.Function.Name
	}
	if tc.Function.Arguments != "" {
		slot.Args.WriteString(tc.Function.Arguments)
	}
}

func (a *toolCallAssembler) slotFor(tc ToolCallRequest) *partialToolCall {
	if tc.Index != nil {
		for len(a.calls) <= *tc.Index {
			a.calls = append(a.calls, &partialToolCall{})
		}
		return a.calls[*tc.Index]
	}
	if tc.ID != "" {
		for _, c := range a.calls {
			if c.ID == tc.ID {
				return c
			}
		}
	}
	c := &partialToolCall{}
	a.calls = append(a.calls, c)
	return c
}

// finish builds the final tool calls. Calls that never received an id get a
// synthesized one so tool results can still be correlated; arguments that do
// not form valid JSON are replaced with an empty object.
func (a *toolCallAssembler) finish() []workshop.ToolCall {
	var out []workshop.ToolCall
	for i, c := range a.calls {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d_%d", time.Now().Unix(), i)
		}
		args := json.RawMessage(c.Args.String())
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out = append(out, workshop.ToolCall{
			ID:   id,
			Name: c.Name,
			Args: args,
		})
	}
	return out
}
