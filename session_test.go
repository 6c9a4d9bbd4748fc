package workshop

import "testing"

func TestNewSession(t *testing.T) {
	s := NewSession("be helpful", "/tmp/ws")

	if s.ID == "" {
		t.Error("ID is empty")
	}
	if s.WorkspaceRoot != "/tmp/ws" {
		t.Errorf("WorkspaceRoot = %q", s.WorkspaceRoot)
	}
	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("new session has %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be helpful" {
		t.Errorf("first message = %+v, want the system prompt", msgs[0])
	}
}

func TestSessionIDsUnique(t *testing.T) {
	a := NewSession("p", "")
	b := NewSession("p", "")
	if a.ID == b.ID {
		t.Errorf("two sessions share id %q", a.ID)
	}
}

func TestSessionOptions(t *testing.T) {
	log := &SessionLog{}
	s := NewSession("p", "", WithUserID("alice"), WithSessionLog(log))
	if s.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", s.UserID)
	}
	if s.Log() != log {
		t.Error("Log() did not return the attached log")
	}
}

func TestSessionLogDefaultsNil(t *testing.T) {
	s := NewSession("p", "")
	if s.Log() != nil {
		t.Error("Log() should be nil when no log is attached")
	}
	// Nil-safe: must not panic.
	s.Log().Message("user", "hello", nil)
}

func TestSessionReset(t *testing.T) {
	s := NewSession("be helpful", "")
	s.append(UserMessage("hi"))
	s.append(AssistantMessage("hello"))
	if len(s.Messages()) != 3 {
		t.Fatalf("session has %d messages, want 3", len(s.Messages()))
	}

	s.Reset()

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("after reset session has %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "be helpful" {
		t.Errorf("after reset first message = %+v, want the original system prompt", msgs[0])
	}
}
