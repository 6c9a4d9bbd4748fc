package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SSE event types sent on the /chat stream.
const (
	eventSession = "session"
	eventToken   = "token"
	eventAgent   = "agent"
	eventDone    = "done"
	eventError   = "error"
)

// Event is one Server-Sent Event payload. Each event is written as a single
// `data: <json>` line; the kind travels in Type rather than an SSE event
// field so clients only need to parse data lines.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	Name      string `json:"name,omitempty"`
	Content   string `json:"content,omitempty"`
	Message   string `json:"message,omitempty"`
}

// sseWriter frames events onto an HTTP response and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter validates that w supports flushing, sets the event-stream
// headers and flushes them eagerly so proxies begin streaming immediately.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not implement http.Flusher")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// send writes one event and flushes. Write failures are returned but safe to
// ignore: a disconnected client just stops receiving.
func (s *sseWriter) send(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
