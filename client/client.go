// Package client consumes the remote session server: it sends chat turns,
// parses the Server-Sent-Events stream back into token and agent callbacks,
// and reassembles the final response text.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	workshop "github.com/nevindra/workshop"
)

// maxEventBytes bounds a single SSE line; agent events can carry a full
// specialist briefing.
const maxEventBytes = 1 << 20

// Options configures a RemoteSession.
type Options struct {
	// BaseURL is the server address, e.g. "http://127.0.0.1:8787".
	BaseURL string
	// Token is the bearer token, when the server requires one.
	Token string
	// UserID identifies the workspace owner. Sent on session creation only.
	UserID string
	// HTTPClient overrides the transport. Defaults to http.DefaultClient,
	// which has no overall timeout and so suits long streams.
	HTTPClient *http.Client
}

// RemoteSession is a client-side handle on one server session. The session
// id is learned from the first send and reused afterwards, so consecutive
// sends share conversation history.
type RemoteSession struct {
	baseURL string
	token   string
	userID  string
	client  *http.Client

	mu        sync.Mutex
	sessionID string
}

// New creates a RemoteSession against the given server.
func New(opts Options) (*RemoteSession, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, workshop.Errorf(workshop.KindInvalidInput, "base URL must not be empty")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteSession{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		userID:  opts.UserID,
		client:  httpClient,
	}, nil
}

// SessionID returns the server-assigned session id, or "" before the first
// successful send.
func (s *RemoteSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// event mirrors the server's SSE payload.
type event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Message   string `json:"message"`
}

type chatPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
}

type resetPayload struct {
	SessionID string `json:"sessionId"`
}

// Send runs one chat turn. onToken receives each text delta and onAgent each
// specialist note, in stream order; either callback may be nil. The returned
// string is the trimmed concatenation of all token deltas. Cancelling ctx
// aborts the request and the server-side turn.
func (s *RemoteSession) Send(ctx context.Context, message string, onToken func(token string), onAgent func(name, content string)) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", workshop.Errorf(workshop.KindInvalidInput, "message must not be empty")
	}

	s.mu.Lock()
	payload := chatPayload{Message: message, SessionID: s.sessionID, UserID: s.userID}
	s.mu.Unlock()

	resp, err := s.post(ctx, "/chat", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(resp)
	}

	var text strings.Builder
	done := false

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
	for !done && sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return "", workshop.WrapError(workshop.KindProvider, err, "malformed stream event")
		}
		switch ev.Type {
		case "session":
			s.setSessionID(ev.SessionID)
		case "token":
			text.WriteString(ev.Token)
			if onToken != nil {
				onToken(ev.Token)
			}
		case "agent":
			if onAgent != nil {
				onAgent(ev.Name, ev.Content)
			}
		case "error":
			return "", workshop.Errorf(workshop.KindProvider, "%s", ev.Message)
		case "done":
			done = true
		}
	}
	if err := sc.Err(); err != nil {
		if ctx.Err() != nil {
			return "", workshop.WrapError(workshop.KindCancelled, ctx.Err(), "send cancelled")
		}
		return "", workshop.WrapError(workshop.KindIO, err, "read event stream")
	}
	if !done {
		return "", workshop.Errorf(workshop.KindProvider, "event stream ended without done event")
	}
	return strings.TrimSpace(text.String()), nil
}

// Reset clears the server-side conversation. Before the first send there is
// no server session, so Reset is a no-op.
func (s *RemoteSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	id := s.sessionID
	s.mu.Unlock()
	if id == "" {
		return nil
	}

	resp, err := s.post(ctx, "/reset", resetPayload{SessionID: id})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *RemoteSession) setSessionID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

func (s *RemoteSession) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, workshop.WrapError(workshop.KindInvalidInput, err, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, workshop.WrapError(workshop.KindInvalidInput, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, workshop.WrapError(workshop.KindCancelled, ctx.Err(), "request cancelled")
		}
		return nil, workshop.WrapError(workshop.KindIO, err, "call "+path)
	}
	return resp, nil
}

// errorFromResponse converts a non-200 reply into a kinded error, preferring
// the server's {error: ...} body over the bare status text.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return workshop.Errorf(kindForStatus(resp.StatusCode), "%s", msg)
}

func kindForStatus(code int) workshop.Kind {
	switch code {
	case http.StatusBadRequest:
		return workshop.KindInvalidInput
	case http.StatusUnauthorized:
		return workshop.KindUnauthorized
	case http.StatusNotFound:
		return workshop.KindNotFound
	case http.StatusConflict:
		return workshop.KindBusy
	default:
		return workshop.KindProvider
	}
}
