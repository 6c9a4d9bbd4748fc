package workshop

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SessionLog is an append-only JSONL event log for one session, written to
// <baseDir>/.workshop/sessions/<timestamp>.jsonl. All write methods are
// fire-and-forget: failures are reported to the side-channel logger (if any)
// and otherwise ignored. All methods are nil-receiver safe.
type SessionLog struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	logger *slog.Logger
}

// OpenSessionLog creates the sessions directory under baseDir and opens a
// fresh log file named after the current UTC time.
func OpenSessionLog(baseDir string, logger *slog.Logger) (*SessionLog, error) {
	if logger == nil {
		logger = nopLogger
	}
	dir := filepath.Join(baseDir, ".workshop", "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(time.Now().UTC().Format(time.RFC3339))
	path := filepath.Join(dir, stamp+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &SessionLog{f: f, path: path, logger: logger}, nil
}

// Path returns the log file path.
func (l *SessionLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Message records a conversation message.
func (l *SessionLog) Message(role, content string, toolCalls []ToolCall) {
	entry := map[string]any{"role": role, "content": content}
	if len(toolCalls) > 0 {
		entry["tool_calls"] = toolCalls
	}
	l.append("message", entry)
}

// ToolCall records a tool invocation before it runs. Arguments are logged as
// a parsed object when they are valid JSON, as the raw string otherwise.
func (l *SessionLog) ToolCall(name string, args json.RawMessage) {
	var parsed any
	if err := json.Unmarshal(args, &parsed); err != nil {
		parsed = string(args)
	}
	l.append("tool_call", map[string]any{"name": name, "arguments": parsed})
}

// ToolResult records a tool's outcome.
func (l *SessionLog) ToolResult(name string, result any) {
	l.append("tool_result", map[string]any{"name": name, "result": result})
}

// Agent records a specialist agent invocation.
func (l *SessionLog) Agent(id, name, reason, content string) {
	l.append("agent", map[string]any{"id": id, "name": name, "reason": reason, "content": content})
}

// Close closes the underlying file.
func (l *SessionLog) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *SessionLog) append(eventType string, fields map[string]any) {
	if l == nil || l.f == nil {
		return
	}
	entry := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["type"] = eventType

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("session log marshal failed", "type", eventType, "error", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		l.logger.Warn("session log write failed", "path", l.path, "error", err)
	}
}
