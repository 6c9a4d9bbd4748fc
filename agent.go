package workshop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// noResponseText is returned when the provider yields neither content nor
// tool calls.
const noResponseText = "No response from model."

// defaultMaxSteps bounds the reason/act loop when WithMaxSteps is not given.
const defaultMaxSteps = 12

// writableTools is the allow-list of tools gated behind user confirmation
// when auto-approval is off.
var writableTools = map[string]bool{
	"fs_write":       true,
	"fs_apply_patch": true,
}

// ConfirmFunc asks the user to approve a write operation. Returning false
// declines it. Implementations may block (TTY prompt); the remote server
// wires an always-deny function since no interactive channel exists.
type ConfirmFunc func(question string) bool

// Agent drives the bounded reason/act loop: it calls the provider, executes
// requested tool calls sequentially, and returns the final answer. One Agent
// serves one Session at a time; construct one per session for remote use.
type Agent struct {
	provider    Provider
	tools       *ToolRegistry
	maxSteps    int
	autoApprove bool
	confirm     ConfirmFunc
	router      RouterFunc
	tracer      Tracer
	logger      *slog.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithTools sets the tool registry offered to the model.
func WithTools(reg *ToolRegistry) AgentOption {
	return func(a *Agent) { a.tools = reg }
}

// WithMaxSteps bounds the number of model calls per turn.
func WithMaxSteps(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithAutoApprove skips the confirmation gate on writable tools.
func WithAutoApprove(v bool) AgentOption {
	return func(a *Agent) { a.autoApprove = v }
}

// WithConfirm sets the user-confirmation collaborator for writable tools.
// Without it (and without auto-approval) write operations are declined.
func WithConfirm(fn ConfirmFunc) AgentOption {
	return func(a *Agent) { a.confirm = fn }
}

// WithRouter replaces the built-in specialist router. Pass nil to disable
// specialist routing entirely.
func WithRouter(fn RouterFunc) AgentOption {
	return func(a *Agent) { a.router = fn }
}

// WithTracer sets the tracer. When set, the agent emits spans per turn, per
// loop step, and per tool execution. Use observer.NewTracer() for an
// OTEL-backed implementation.
func WithTracer(t Tracer) AgentOption {
	return func(a *Agent) { a.tracer = t }
}

// WithLogger sets the structured logger. If not set, a no-op logger is used.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAgent creates an Agent around the given provider.
func NewAgent(p Provider, opts ...AgentOption) *Agent {
	a := &Agent{
		provider: p,
		maxSteps: defaultMaxSteps,
		router:   DefaultRouter,
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	// Text is the final answer, or a sentinel when the loop could not
	// produce one.
	Text string
	// Usage aggregates provider token usage across all loop steps.
	Usage Usage
	// Steps counts completed model calls.
	Steps int
}

// Respond runs one blocking turn: append the user message, route a
// specialist if one matches, then loop until the model answers or the step
// bound is hit.
func (a *Agent) Respond(ctx context.Context, sess *Session, message string) (TurnResult, error) {
	return a.run(ctx, sess, message, nil)
}

// RespondStream runs one turn like Respond, emitting StreamEvent values into
// ch throughout execution (token deltas and specialist notes). The channel
// is closed when the turn completes, success or not.
func (a *Agent) RespondStream(ctx context.Context, sess *Session, message string, ch chan<- StreamEvent) (TurnResult, error) {
	return a.run(ctx, sess, message, ch)
}

func (a *Agent) run(ctx context.Context, sess *Session, message string, ch chan<- StreamEvent) (TurnResult, error) {
	if ch != nil {
		defer close(ch)
	}
	var total Usage

	if a.tracer != nil {
		var turnSpan Span
		ctx, turnSpan = a.tracer.Start(ctx, "agent.turn",
			StringAttr("session_id", sess.ID),
			IntAttr("max_steps", a.maxSteps))
		defer turnSpan.End()
	}

	sess.append(UserMessage(message))
	sess.Log().Message("user", message, nil)

	a.routeSpecialist(ctx, sess, message, ch)

	var defs []ToolDefinition
	if a.tools != nil {
		defs = a.tools.AllDefinitions()
	}

	for step := 0; step < a.maxSteps; step++ {
		stepCtx := ctx
		var stepSpan Span
		if a.tracer != nil {
			stepCtx, stepSpan = a.tracer.Start(ctx, "agent.step",
				IntAttr("step", step),
				BoolAttr("has_tools", len(defs) > 0))
		}
		endStep := func() {
			if stepSpan != nil {
				stepSpan.End()
			}
		}

		temp := 0.0
		req := ChatRequest{Messages: sess.Messages(), Temperature: &temp}
		if len(defs) > 0 {
			req.Tools = defs
			req.ToolChoice = ToolChoiceAuto
		}

		var resp ChatResponse
		var err error
		if ch != nil {
			resp, err = a.provider.ChatStream(stepCtx, req, ch)
		} else {
			resp, err = a.provider.Chat(stepCtx, req)
		}
		if err != nil {
			if stepSpan != nil {
				stepSpan.Error(err)
			}
			endStep()
			return TurnResult{Usage: total, Steps: step}, err
		}
		total.Add(resp.Usage)

		if resp.Content == "" && len(resp.ToolCalls) == 0 {
			endStep()
			a.logger.Warn("empty provider response", "step", step)
			emit(stepCtx, ch, StreamEvent{Type: EventToken, Token: noResponseText})
			return TurnResult{Text: noResponseText, Usage: total, Steps: step + 1}, nil
		}

		// The assistant message is appended only after the stream has fully
		// completed, so a cancelled turn never leaves a half-built message.
		sess.append(ChatMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		sess.Log().Message("assistant", resp.Content, resp.ToolCalls)

		if len(resp.ToolCalls) > 0 {
			if stepSpan != nil {
				stepSpan.SetAttr(IntAttr("tool_count", len(resp.ToolCalls)))
			}
			a.runToolCalls(stepCtx, sess, resp.ToolCalls)
			endStep()
			continue
		}

		endStep()
		return TurnResult{Text: resp.Content, Usage: total, Steps: step + 1}, nil
	}

	a.logger.Warn("max steps reached without final response", "max_steps", a.maxSteps)
	text := fmt.Sprintf("Reached max steps (%d) without final response.", a.maxSteps)
	emit(ctx, ch, StreamEvent{Type: EventToken, Token: text})
	return TurnResult{Text: text, Usage: total, Steps: a.maxSteps}, nil
}

// routeSpecialist runs the router and, on a match, the specialist agent.
// Its output is surfaced as an agent event and injected into the
// conversation as a system note. A specialist failure degrades to a warning;
// the main loop still runs.
func (a *Agent) routeSpecialist(ctx context.Context, sess *Session, message string, ch chan<- StreamEvent) {
	if a.router == nil {
		return
	}
	dec := a.router(message)
	if dec == nil {
		return
	}

	specCtx := ctx
	if a.tracer != nil {
		var span Span
		specCtx, span = a.tracer.Start(ctx, "agent.specialist",
			StringAttr("specialist", dec.Agent.ID),
			StringAttr("reason", dec.Reason))
		defer span.End()
	}

	a.logger.Info("specialist routed", "specialist", dec.Agent.ID, "reason", dec.Reason)
	text, err := RunSpecialist(specCtx, a.provider, dec.Agent, message)
	if err != nil {
		a.logger.Warn("specialist failed, continuing without note", "specialist", dec.Agent.ID, "error", err)
		return
	}
	if text == "" {
		return
	}

	emit(specCtx, ch, StreamEvent{Type: EventAgent, Name: dec.Agent.Name, Content: text})
	sess.Log().Agent(dec.Agent.ID, dec.Agent.Name, dec.Reason, text)

	note := specialistNote(dec.Agent.Name, text)
	sess.append(SystemMessage(note))
	sess.Log().Message("system", note, nil)
}

// runToolCalls executes an assistant turn's tool calls sequentially in
// presentation order, appending one tool message per call before returning.
func (a *Agent) runToolCalls(ctx context.Context, sess *Session, calls []ToolCall) {
	for _, tc := range calls {
		sess.Log().ToolCall(tc.Name, tc.Args)

		result := a.executeToolCall(ctx, tc)

		content, err := json.Marshal(result)
		if err != nil {
			content = []byte(`{"error":"tool result not serializable"}`)
		}
		sess.append(ToolResultMessage(tc.ID, string(content)))
		sess.Log().ToolResult(tc.Name, result)
	}
}

// executeToolCall runs one tool call, capturing every failure as a result
// error so the model can react. It never returns an error and never panics
// the loop.
func (a *Agent) executeToolCall(ctx context.Context, tc ToolCall) ToolResult {
	var span Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, "agent.tool", StringAttr("tool", tc.Name))
		defer span.End()
	}
	a.logger.Info("tool call", "tool", tc.Name)

	if !json.Valid(tc.Args) {
		return ToolResult{Error: "Invalid tool arguments for " + tc.Name}
	}

	if writableTools[tc.Name] && !a.autoApprove {
		if a.confirm == nil || !a.confirm("Allow "+tc.Name+" to modify the workspace?") {
			a.logger.Info("write declined", "tool", tc.Name)
			return ToolResult{Error: "User declined write operation"}
		}
	}

	if a.tools == nil {
		return ToolResult{Error: "unknown tool: " + tc.Name}
	}
	result, err := a.tools.Execute(ctx, tc.Name, tc.Args)
	if err != nil {
		if span != nil {
			span.Error(err)
		}
		return ToolResult{Error: err.Error()}
	}
	if result.Error != "" && span != nil {
		span.SetAttr(StringAttr("tool_error", result.Error))
	}
	return result
}

// emit sends ev into ch unless the channel is absent or ctx is done.
func emit(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// nopLogger discards all output. Used when WithLogger is not set.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
