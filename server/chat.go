package server

import (
	"net/http"
	"strings"
	"time"

	workshop "github.com/nevindra/workshop"
)

// previewLen bounds the reply excerpt on turn-end log lines.
const previewLen = 200

// chatRequest is the parsed body of POST /chat.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// handleChat runs one turn and streams it as Server-Sent Events. An unknown
// or absent sessionId creates a fresh session whose id is announced as the
// first event; a busy session is rejected with 409 before the stream starts.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	rec, created, err := s.obtainSession(req, r)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer s.registry.release(rec)

	sw, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if created {
		sw.send(Event{Type: eventSession, SessionID: rec.session.ID})
	}

	ctx := r.Context()
	start := time.Now()
	s.logger.Info("chat turn start",
		"session_id", rec.session.ID,
		"user", rec.userID,
		"message_chars", len(req.Message),
		"approx_tokens", len(req.Message)/4,
	)

	type turnOutcome struct {
		result workshop.TurnResult
		err    error
	}
	ch := make(chan workshop.StreamEvent, 64)
	outcomeCh := make(chan turnOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				// The agent's deferred close has already run, so the range
				// below terminates; only the outcome is still owed.
				outcomeCh <- turnOutcome{err: workshop.Errorf(workshop.KindInternal, "agent panic: %v", p)}
			}
		}()
		res, err := rec.agent.RespondStream(ctx, rec.session, req.Message, ch)
		outcomeCh <- turnOutcome{result: res, err: err}
	}()

	for ev := range ch {
		switch ev.Type {
		case workshop.EventToken:
			sw.send(Event{Type: eventToken, Token: ev.Token})
		case workshop.EventAgent:
			sw.send(Event{Type: eventAgent, Name: ev.Name, Content: ev.Content})
		}
	}
	out := <-outcomeCh

	status := "ok"
	switch {
	case out.err != nil && ctx.Err() != nil:
		// Client went away; nobody is reading the stream anymore.
		status = "cancelled"
		s.logger.Info("chat turn cancelled", "session_id", rec.session.ID, "user", rec.userID)
	case out.err != nil:
		status = "error"
		s.logger.Error("chat turn failed", "session_id", rec.session.ID, "error", out.err)
		sw.send(Event{Type: eventError, Message: out.err.Error()})
	default:
		sw.send(Event{Type: eventDone})
	}

	elapsed := time.Since(start)
	if s.recordTurn != nil {
		s.recordTurn(ctx, rec.session.ID, rec.userID, status, elapsed, out.result)
	}
	s.logger.Info("chat turn end",
		"session_id", rec.session.ID,
		"status", status,
		"duration", elapsed.Round(time.Millisecond),
		"steps", out.result.Steps,
		"input_tokens", out.result.Usage.InputTokens,
		"output_tokens", out.result.Usage.OutputTokens,
		"preview", truncateStr(strings.ReplaceAll(out.result.Text, "\n", " "), previewLen),
	)
}

// obtainSession resolves the target session for a chat turn and marks it
// busy. Known ids are acquired; unknown or absent ids create a fresh session
// owned by the resolved user.
func (s *Server) obtainSession(req chatRequest, r *http.Request) (rec *sessionRecord, created bool, err error) {
	if req.SessionID != "" {
		if rec, found, ok := s.registry.acquire(req.SessionID); found {
			if !ok {
				return nil, false, workshop.Errorf(workshop.KindBusy, "session %s is processing another request", req.SessionID)
			}
			return rec, false, nil
		}
	}
	userID := s.resolveUserID(req.UserID, r)
	rec, err = s.newSessionRecord(userID)
	if err != nil {
		return nil, false, err
	}
	s.registry.addAcquired(rec)
	return rec, true, nil
}

// truncateStr truncates a string to n runes.
func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
