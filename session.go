package workshop

// Session is one conversation plus the sandbox and logger that belong to it.
// The first message is always the system prompt; Reset restores that state.
// Sessions are not safe for concurrent turns; the caller serializes access
// (the remote server does this with its busy flag).
type Session struct {
	ID            string
	UserID        string
	WorkspaceRoot string

	systemPrompt string
	messages     []ChatMessage
	log          *SessionLog
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithUserID sets the owning user id.
func WithUserID(id string) SessionOption {
	return func(s *Session) { s.UserID = id }
}

// WithSessionLog attaches an append-only event log to the session.
func WithSessionLog(l *SessionLog) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession creates a session whose conversation starts with the given
// system prompt.
func NewSession(systemPrompt, workspaceRoot string, opts ...SessionOption) *Session {
	s := &Session{
		ID:            NewID(),
		WorkspaceRoot: workspaceRoot,
		systemPrompt:  systemPrompt,
		messages:      []ChatMessage{SystemMessage(systemPrompt)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages returns the conversation in order. The returned slice is the
// session's own backing store; callers must not mutate it.
func (s *Session) Messages() []ChatMessage { return s.messages }

// Reset replaces the conversation with a fresh single-entry system prompt.
func (s *Session) Reset() {
	s.messages = []ChatMessage{SystemMessage(s.systemPrompt)}
}

// Log returns the attached session log, or nil. SessionLog methods are
// nil-safe, so callers may use the result unconditionally.
func (s *Session) Log() *SessionLog { return s.log }

func (s *Session) append(m ChatMessage) {
	s.messages = append(s.messages, m)
}
