// Package server hosts agent sessions behind an HTTP surface: JSON control
// endpoints plus a Server-Sent-Events chat stream. Each session owns a
// per-user sandbox under <baseDir>/workspaces/<userId>, an append-only
// session log, and one agent loop; a busy flag serializes turns per session
// while separate sessions run concurrently.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	workshop "github.com/nevindra/workshop"
	"github.com/nevindra/workshop/sandbox"
)

const (
	defaultMaxSteps     = 12
	defaultUserID       = "default"
	maxUserIDLen        = 64
	maxRequestBodyBytes = 1 << 20
)

const defaultSystemPrompt = "You are a helpful assistant with access to tools. " +
	"Use them when they help; answer directly when they do not."

// ToolFactory builds the tool registry for one session's sandbox. The server
// calls it once per created session so file tools are confined to that
// session's workspace.
type ToolFactory func(sb *sandbox.Sandbox) *workshop.ToolRegistry

// TurnRecorder receives one completed turn for metrics export. status is
// "ok", "error" or "cancelled". observer.Instruments.RecordTurn satisfies it.
type TurnRecorder func(ctx context.Context, sessionID, userID, status string, d time.Duration, result workshop.TurnResult)

// Server is the remote session server.
type Server struct {
	provider workshop.Provider
	tools    ToolFactory
	registry *registry

	baseDir      string
	token        string
	autoApprove  bool
	maxSteps     int
	systemPrompt string

	tracer     workshop.Tracer
	recordTurn TurnRecorder
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithBaseDir sets the directory that anchors per-user workspaces and
// session logs. Defaults to the current directory.
func WithBaseDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.baseDir = dir
		}
	}
}

// WithToken enables bearer-token authentication on every endpoint except
// /health.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithAutoApprove lets sessions run writable tools without confirmation.
// Without it the server denies all write operations: no interactive
// confirmation channel exists over HTTP.
func WithAutoApprove(v bool) Option {
	return func(s *Server) { s.autoApprove = v }
}

// WithMaxSteps bounds each session's reason/act loop.
func WithMaxSteps(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithSystemPrompt sets the system prompt new sessions start from.
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithTracer propagates a tracer into every session's agent loop.
func WithTracer(t workshop.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithTurnRecorder registers a hook that receives every completed turn.
func WithTurnRecorder(fn TurnRecorder) Option {
	return func(s *Server) { s.recordTurn = fn }
}

// WithLogger sets the structured logger. If not set, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server around a chat provider and a per-session tool factory
// (which may be nil for a tool-less assistant).
func New(provider workshop.Provider, tools ToolFactory, opts ...Option) *Server {
	s := &Server{
		provider:     provider,
		tools:        tools,
		registry:     newRegistry(),
		baseDir:      ".",
		maxSteps:     defaultMaxSteps,
		systemPrompt: defaultSystemPrompt,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/session", s.requireAuth(postOnly(s.handleSession)))
	mux.HandleFunc("/reset", s.requireAuth(postOnly(s.handleReset)))
	mux.HandleFunc("/chat", s.requireAuth(postOnly(s.handleChat)))
	return mux
}

// Close closes every session's log file. Sessions are not persisted; this is
// shutdown hygiene only.
func (s *Server) Close() {
	s.registry.each(func(id string, rec *sessionRecord) {
		if err := rec.session.Log().Close(); err != nil {
			s.logger.Warn("close session log", "session_id", id, "error", err)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type sessionRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := s.resolveUserID(req.UserID, r)
	rec, err := s.newSessionRecord(userID)
	if err != nil {
		s.logger.Error("create session", "user", userID, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.registry.add(rec)
	s.logger.Info("session created", "session_id", rec.session.ID, "user", userID, "workspace", rec.workspaceRoot)
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": rec.session.ID})
}

type resetRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, found, ok := s.registry.acquire(req.SessionID)
	if !found {
		writeError(w, http.StatusNotFound, "unknown session: "+req.SessionID)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "session is busy")
		return
	}
	defer s.registry.release(rec)
	rec.session.Reset()
	s.logger.Info("session reset", "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// newSessionRecord builds everything one session owns: the per-user sandbox,
// the session log, the tool registry, and the agent loop. The write-confirm
// collaborator is wired to always deny unless auto-approval is on.
func (s *Server) newSessionRecord(userID string) (*sessionRecord, error) {
	root := filepath.Join(s.baseDir, "workspaces", userID)
	sb, err := sandbox.Open(root)
	if err != nil {
		return nil, err
	}

	// Fire-and-forget: a session without a log is degraded, not broken.
	sessionLog, err := workshop.OpenSessionLog(s.baseDir, s.logger)
	if err != nil {
		s.logger.Warn("open session log", "user", userID, "error", err)
		sessionLog = nil
	}

	sess := workshop.NewSession(s.systemPrompt, sb.Root(),
		workshop.WithUserID(userID),
		workshop.WithSessionLog(sessionLog),
	)

	agentOpts := []workshop.AgentOption{
		workshop.WithMaxSteps(s.maxSteps),
		workshop.WithLogger(s.logger),
	}
	if s.tools != nil {
		agentOpts = append(agentOpts, workshop.WithTools(s.tools(sb)))
	}
	if s.tracer != nil {
		agentOpts = append(agentOpts, workshop.WithTracer(s.tracer))
	}
	if s.autoApprove {
		agentOpts = append(agentOpts, workshop.WithAutoApprove(true))
	} else {
		agentOpts = append(agentOpts, workshop.WithConfirm(func(string) bool { return false }))
	}

	return &sessionRecord{
		session:       sess,
		agent:         workshop.NewAgent(s.provider, agentOpts...),
		userID:        userID,
		workspaceRoot: sb.Root(),
	}, nil
}

// resolveUserID applies the identity precedence: body, X-User-Id header,
// then "default", sanitized for filesystem use.
func (s *Server) resolveUserID(bodyUserID string, r *http.Request) string {
	raw := bodyUserID
	if raw == "" {
		raw = r.Header.Get("X-User-Id")
	}
	return sanitizeUserID(raw)
}

var userIDUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitizeUserID restricts a user id to [A-Za-z0-9_-] (the complement maps
// to "_"), truncated to 64 characters. A blank result becomes "default".
func sanitizeUserID(raw string) string {
	id := userIDUnsafe.ReplaceAllString(raw, "_")
	if len(id) > maxUserIDLen {
		id = id[:maxUserIDLen]
	}
	if id == "" {
		return defaultUserID
	}
	return id
}

// requireAuth enforces the shared bearer token when one is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

// decodeBody parses the JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// statusFor maps structured error kinds to HTTP statuses; unknown kinds are
// internal errors.
func statusFor(err error) int {
	switch workshop.KindOf(err) {
	case workshop.KindInvalidInput:
		return http.StatusBadRequest
	case workshop.KindUnauthorized:
		return http.StatusUnauthorized
	case workshop.KindNotFound:
		return http.StatusNotFound
	case workshop.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
