package workshop

import (
	"context"
	"sync"
	"time"
)

// WithRateLimit wraps p so chat calls wait for rate budget before hitting
// the backend:
//
//	provider = workshop.WithRateLimit(provider, workshop.RPM(60))
//	provider = workshop.WithRateLimit(provider, workshop.RPM(60), workshop.TPM(100000))
//
// Waiting respects the call's context; cancellation returns ctx.Err().
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	r := &rateLimitProvider{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RateLimitOption configures WithRateLimit.
type RateLimitOption func(*rateLimitProvider)

// RPM caps requests per sliding minute.
func RPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.rpm = n }
}

// TPM caps tokens per sliding minute, input and output combined, measured
// from ChatResponse.Usage. The cap is soft: the request that crosses it
// completes, and later requests wait until the window slides.
func TPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.tpm = n }
}

// rateLimitProvider tracks one sliding minute of request timestamps (rpm)
// and token spends (tpm). A zero cap disables that window.
type rateLimitProvider struct {
	inner Provider

	rpm int
	tpm int

	mu        sync.Mutex
	rpmWindow []time.Time
	tpmWindow []tpmEntry
}

var _ Provider = (*rateLimitProvider)(nil)

type tpmEntry struct {
	at     time.Time
	tokens int
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.admit(ctx); err != nil {
		return ChatResponse{}, err
	}
	resp, err := r.inner.Chat(ctx, req)
	if err == nil {
		r.recordTokens(resp.Usage)
	}
	return resp, err
}

func (r *rateLimitProvider) ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error) {
	if err := r.admit(ctx); err != nil {
		return ChatResponse{}, err
	}
	resp, err := r.inner.ChatStream(ctx, req, ch)
	if err == nil {
		r.recordTokens(resp.Usage)
	}
	return resp, err
}

// admit blocks until both windows have room, then books the request slot.
func (r *rateLimitProvider) admit(ctx context.Context) error {
	for {
		ok, retry := r.tryAdmit(time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// tryAdmit prunes both windows, and either books a request slot (ok=true)
// or reports how long until the oldest blocking entry leaves the window.
func (r *rateLimitProvider) tryAdmit(now time.Time) (ok bool, retry time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	r.rpmWindow = pruneTime(r.rpmWindow, cutoff)
	r.tpmWindow = pruneTpm(r.tpmWindow, cutoff)

	requestsOK := r.rpm <= 0 || len(r.rpmWindow) < r.rpm
	tokensOK := r.tpm <= 0 || r.spentTokens() < r.tpm

	if requestsOK && tokensOK {
		if r.rpm > 0 {
			r.rpmWindow = append(r.rpmWindow, now)
		}
		return true, 0
	}

	if !requestsOK && len(r.rpmWindow) > 0 {
		retry = r.rpmWindow[0].Add(time.Minute).Sub(now)
	}
	if !tokensOK && len(r.tpmWindow) > 0 {
		if d := r.tpmWindow[0].at.Add(time.Minute).Sub(now); retry == 0 || d < retry {
			retry = d
		}
	}
	if retry <= 0 {
		retry = 10 * time.Millisecond
	}
	return false, retry
}

// spentTokens sums the current window. Caller holds mu.
func (r *rateLimitProvider) spentTokens() int {
	total := 0
	for _, e := range r.tpmWindow {
		total += e.tokens
	}
	return total
}

// recordTokens books a completed request's token spend against the window.
func (r *rateLimitProvider) recordTokens(u Usage) {
	spend := u.InputTokens + u.OutputTokens
	if r.tpm <= 0 || spend <= 0 {
		return
	}
	r.mu.Lock()
	r.tpmWindow = append(r.tpmWindow, tpmEntry{at: time.Now(), tokens: spend})
	r.mu.Unlock()
}

// pruneTime drops entries before cutoff from a time-ordered slice.
func pruneTime(s []time.Time, cutoff time.Time) []time.Time {
	for len(s) > 0 && s[0].Before(cutoff) {
		s = s[1:]
	}
	return s
}

// pruneTpm drops entries before cutoff from a time-ordered slice.
func pruneTpm(s []tpmEntry, cutoff time.Time) []tpmEntry {
	for len(s) > 0 && s[0].at.Before(cutoff) {
		s = s[1:]
	}
	return s
}
