package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	workshop "github.com/nevindra/workshop"
)

// stubProvider scripts the chat backend. Each ChatStream call emits the
// configured tokens and returns text; block (when set) stalls the call until
// released so tests can observe a busy session.
type stubProvider struct {
	tokens []string
	text   string
	err    error

	block   chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls int
}

func (p *stubProvider) Chat(ctx context.Context, req workshop.ChatRequest) (workshop.ChatResponse, error) {
	return p.ChatStream(ctx, req, nil)
}

func (p *stubProvider) ChatStream(ctx context.Context, req workshop.ChatRequest, ch chan<- workshop.StreamEvent) (workshop.ChatResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return workshop.ChatResponse{}, ctx.Err()
		}
	}
	if p.err != nil {
		return workshop.ChatResponse{}, p.err
	}
	for _, tok := range p.tokens {
		if ch != nil {
			select {
			case ch <- workshop.StreamEvent{Type: workshop.EventToken, Token: tok}:
			case <-ctx.Done():
				return workshop.ChatResponse{}, ctx.Err()
			}
		}
	}
	return workshop.ChatResponse{
		Content: p.text,
		Usage:   workshop.Usage{InputTokens: 3, OutputTokens: 5},
	}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestServer(t *testing.T, provider workshop.Provider, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithBaseDir(t.TempDir())}, opts...)
	srv := New(provider, nil, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func createSession(t *testing.T, baseURL, userID string) string {
	t.Helper()
	resp := postJSON(t, baseURL+"/session", map[string]string{"userId": userID}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /session status = %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if out.SessionID == "" {
		t.Fatal("sessionId is empty")
	}
	return out.SessionID
}

// decodeEvents parses every `data:` line of an SSE body.
func decodeEvents(t *testing.T, body io.Reader) []Event {
	t.Helper()
	var events []Event
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan SSE body: %v", err)
	}
	return events
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{}, WithToken("secret"))

	// No auth header: /health must still answer.
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["ok"] {
		t.Errorf("body = %v, want ok=true", out)
	}
}

func TestAuthRequired(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{text: "hi"}, WithToken("secret"))

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing token", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"correct token", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/session", map[string]string{}, tt.header)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				var out map[string]string
				if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if out["error"] == "" {
					t.Error("401 body has no error field")
				}
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{})

	resp, err := http.Get(ts.URL + "/session")
	if err != nil {
		t.Fatalf("GET /session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestSessionCreatesWorkspace(t *testing.T) {
	baseDir := t.TempDir()
	srv := New(&stubProvider{}, nil, WithBaseDir(baseDir))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	id := createSession(t, ts.URL, "alice")
	if id == "" {
		t.Fatal("empty session id")
	}
	info, err := os.Stat(filepath.Join(baseDir, "workspaces", "alice"))
	if err != nil {
		t.Fatalf("workspace dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("workspace path is not a directory")
	}
}

func TestSessionUserIDFromHeader(t *testing.T) {
	baseDir := t.TempDir()
	srv := New(&stubProvider{}, nil, WithBaseDir(baseDir))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	resp := postJSON(t, ts.URL+"/session", map[string]string{}, map[string]string{"X-User-Id": "bob"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(baseDir, "workspaces", "bob")); err != nil {
		t.Errorf("workspace for header user: %v", err)
	}
}

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "default"},
		{"alice", "alice"},
		{"alice-b_2", "alice-b_2"},
		{"../../etc", "______etc"},
		{"a b@c", "a_b_c"},
		{"über", "_ber"},
		{strings.Repeat("x", 80), strings.Repeat("x", 64)},
	}
	for _, tt := range tests {
		if got := sanitizeUserID(tt.in); got != tt.want {
			t.Errorf("sanitizeUserID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChatStream(t *testing.T) {
	provider := &stubProvider{tokens: []string{"Hello", " world"}, text: "Hello world"}
	_, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := decodeEvents(t, resp.Body)
	if len(events) == 0 {
		t.Fatal("no events received")
	}

	var text strings.Builder
	tokens := 0
	for _, ev := range events {
		switch ev.Type {
		case eventSession:
			t.Errorf("unexpected session event for existing session %s", id)
		case eventToken:
			tokens++
			text.WriteString(ev.Token)
		}
	}
	if tokens < 1 {
		t.Fatalf("got %d token events, want at least 1", tokens)
	}
	if got := text.String(); got != "Hello world" {
		t.Errorf("concatenated tokens = %q, want %q", got, "Hello world")
	}
	if last := events[len(events)-1]; last.Type != eventDone {
		t.Errorf("last event type = %q, want done", last.Type)
	}
}

func TestChatCreatesSessionWhenUnknown(t *testing.T) {
	provider := &stubProvider{tokens: []string{"ok"}, text: "ok"}
	_, ts := newTestServer(t, provider)

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	events := decodeEvents(t, resp.Body)
	if len(events) < 2 {
		t.Fatalf("got %d events, want at least session + done", len(events))
	}
	if events[0].Type != eventSession {
		t.Fatalf("first event type = %q, want session", events[0].Type)
	}
	if events[0].SessionID == "" {
		t.Error("session event has empty sessionId")
	}
	if last := events[len(events)-1]; last.Type != eventDone {
		t.Errorf("last event type = %q, want done", last.Type)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{})

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "   "}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChatBusySession(t *testing.T) {
	provider := &stubProvider{
		tokens:  []string{"done"},
		text:    "done",
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	_, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	firstDone := make(chan int, 1)
	go func() {
		resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		firstDone <- resp.StatusCode
	}()

	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first chat never reached the provider")
	}

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "again", "sessionId": id}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("concurrent chat status = %d, want 409", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if out["error"] == "" {
		t.Error("409 body has no error field")
	}

	close(provider.block)
	select {
	case status := <-firstDone:
		if status != http.StatusOK {
			t.Errorf("first chat status = %d, want 200", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first chat never finished")
	}
}

func TestChatProviderError(t *testing.T) {
	provider := &stubProvider{err: workshop.Errorf(workshop.KindProvider, "model unavailable")}
	_, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (stream already started)", resp.StatusCode)
	}

	events := decodeEvents(t, resp.Body)
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	last := events[len(events)-1]
	if last.Type != eventError {
		t.Fatalf("last event type = %q, want error", last.Type)
	}
	if !strings.Contains(last.Message, "model unavailable") {
		t.Errorf("error message = %q, want provider message", last.Message)
	}
	for _, ev := range events {
		if ev.Type == eventDone {
			t.Error("done event sent after an error")
		}
	}
}

func TestChatSpecialistEvent(t *testing.T) {
	provider := &stubProvider{tokens: []string{"briefing"}, text: "briefing"}
	_, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "research quantum computing", "sessionId": id}, nil)
	defer resp.Body.Close()
	events := decodeEvents(t, resp.Body)

	var agentEvents []Event
	for _, ev := range events {
		if ev.Type == eventAgent {
			agentEvents = append(agentEvents, ev)
		}
	}
	if len(agentEvents) != 1 {
		t.Fatalf("got %d agent events, want 1", len(agentEvents))
	}
	if agentEvents[0].Name != workshop.ResearchAgent.Name {
		t.Errorf("agent name = %q, want %q", agentEvents[0].Name, workshop.ResearchAgent.Name)
	}
	if agentEvents[0].Content != "briefing" {
		t.Errorf("agent content = %q, want specialist output", agentEvents[0].Content)
	}
	// Specialist call plus one loop step.
	if got := provider.callCount(); got != 2 {
		t.Errorf("provider calls = %d, want 2", got)
	}
}

func TestResetUnknownSession(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{})

	resp := postJSON(t, ts.URL+"/reset", map[string]string{"sessionId": "nope"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResetClearsHistory(t *testing.T) {
	provider := &stubProvider{tokens: []string{"ok"}, text: "ok"}
	srv, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	chat := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
	io.Copy(io.Discard, chat.Body)
	chat.Body.Close()

	rec := srv.registry.lookup(id)
	if rec == nil {
		t.Fatal("session not in registry")
	}
	if got := len(rec.session.Messages()); got < 3 {
		t.Fatalf("history after turn = %d messages, want at least system+user+assistant", got)
	}

	resp := postJSON(t, ts.URL+"/reset", map[string]string{"sessionId": id}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["ok"] {
		t.Error("reset body ok != true")
	}

	msgs := rec.session.Messages()
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Errorf("history after reset = %d messages, want single system prompt", len(msgs))
	}
}

func TestResetBusySession(t *testing.T) {
	provider := &stubProvider{
		tokens:  []string{"done"},
		text:    "done",
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	_, ts := newTestServer(t, provider)

	id := createSession(t, ts.URL, "alice")

	go func() {
		resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("chat never reached the provider")
	}
	defer close(provider.block)

	resp := postJSON(t, ts.URL+"/reset", map[string]string{"sessionId": id}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("reset busy status = %d, want 409", resp.StatusCode)
	}
}

func TestTurnRecorder(t *testing.T) {
	provider := &stubProvider{tokens: []string{"ok"}, text: "ok"}

	type recorded struct {
		sessionID, userID, status string
		result                    workshop.TurnResult
	}
	var mu sync.Mutex
	var got []recorded
	recorder := func(ctx context.Context, sessionID, userID, status string, d time.Duration, result workshop.TurnResult) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, recorded{sessionID, userID, status, result})
	}

	_, ts := newTestServer(t, provider, WithTurnRecorder(recorder))

	id := createSession(t, ts.URL, "alice")
	resp := postJSON(t, ts.URL+"/chat", map[string]string{"message": "hi there", "sessionId": id}, nil)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("recorded %d turns, want 1", len(got))
	}
	if got[0].sessionID != id || got[0].userID != "alice" {
		t.Errorf("recorded identity = (%q, %q), want (%q, alice)", got[0].sessionID, got[0].userID, id)
	}
	if got[0].status != "ok" {
		t.Errorf("status = %q, want ok", got[0].status)
	}
	if got[0].result.Text != "ok" {
		t.Errorf("result text = %q, want ok", got[0].result.Text)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workshop.Errorf(workshop.KindInvalidInput, "bad"), http.StatusBadRequest},
		{workshop.Errorf(workshop.KindUnauthorized, "no"), http.StatusUnauthorized},
		{workshop.Errorf(workshop.KindNotFound, "gone"), http.StatusNotFound},
		{workshop.Errorf(workshop.KindBusy, "later"), http.StatusConflict},
		{workshop.Errorf(workshop.KindIO, "disk"), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
