package workshop

import (
	"context"
	"encoding/json"
)

// mockProvider pops scripted responses in order. A non-nil entry in errs at
// the same index is returned instead. Exhausting the script returns a plain
// "exhausted" response so runaway loops terminate visibly.
type mockProvider struct {
	name      string
	responses []ChatResponse
	errs      []error
	reqs      []ChatRequest
	idx       int
}

func (m *mockProvider) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	return m.next(req)
}

func (m *mockProvider) ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error) {
	resp, err := m.next(req)
	if err == nil && ch != nil && resp.Content != "" {
		ch <- StreamEvent{Type: EventToken, Token: resp.Content}
	}
	return resp, err
}

func (m *mockProvider) next(req ChatRequest) (ChatResponse, error) {
	m.reqs = append(m.reqs, req)
	i := m.idx
	m.idx++
	if i < len(m.errs) && m.errs[i] != nil {
		return ChatResponse{}, m.errs[i]
	}
	if i >= len(m.responses) {
		return ChatResponse{Content: "exhausted"}, nil
	}
	return m.responses[i], nil
}

// echoTool returns the "text" argument as its content.
type echoTool struct{}

func (echoTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name:        "echo",
		Description: "Echo the text argument",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}}
}

func (echoTool) Execute(_ context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	var a struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return ToolResult{Error: "bad args"}, nil
	}
	return ToolResult{Content: a.Text}, nil
}

// writeTool registers under the fs_write name to exercise the confirm gate.
type writeTool struct {
	executed bool
}

func (w *writeTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "fs_write", Description: "Write a file"}}
}

func (w *writeTool) Execute(_ context.Context, _ string, _ json.RawMessage) (ToolResult, error) {
	w.executed = true
	return ToolResult{Content: "written"}, nil
}

func newTestRegistry(tools ...Tool) *ToolRegistry {
	reg := NewToolRegistry()
	for _, t := range tools {
		reg.Add(t)
	}
	return reg
}
