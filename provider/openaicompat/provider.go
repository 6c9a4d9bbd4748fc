package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/nevindra/workshop"
)

// Provider speaks the OpenAI chat completions wire format, which most
// inference backends expose: OpenAI itself, OpenRouter, Groq, DeepSeek,
// Ollama, vLLM, LM Studio, Azure OpenAI. One adapter covers them all; only
// baseURL and model change. The format details live in the exported helpers
// (BuildBody, StreamSSE, ParseResponse) so other transports can reuse them.
type Provider struct {
	baseURL string
	model   string
	apiKey  string

	name   string
	client *http.Client
	opts   []Option
}

var _ workshop.Provider = (*Provider)(nil)

// NewProvider builds a Provider for the backend at baseURL, which names the
// API root ("https://api.openai.com/v1", "http://localhost:11434/v1"); the
// /chat/completions path is appended per call and a trailing slash is
// tolerated. An empty apiKey omits the Authorization header, which local
// servers accept.
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		name:    "openai",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name reports "openai" unless WithName overrode it.
func (p *Provider) Name() string { return p.name }

// Chat performs one blocking completion. Responses to tool-bearing requests
// may carry ToolCalls instead of (or alongside) text.
func (p *Provider) Chat(ctx context.Context, req workshop.ChatRequest) (workshop.ChatResponse, error) {
	resp, err := p.post(ctx, BuildBody(req, p.model, p.opts...))
	if err != nil {
		return workshop.ChatResponse{}, err
	}
	defer resp.Body.Close()

	var decoded ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return workshop.ChatResponse{}, workshop.Errorf(workshop.KindProvider, "decode response: %v", err)
	}
	return ParseResponse(decoded)
}

// ChatStream streams token events into ch, then returns the final
// accumulated response. The channel is left open; the caller owns it and
// may pass the same channel to several calls in a row.
func (p *Provider) ChatStream(ctx context.Context, req workshop.ChatRequest, ch chan<- workshop.StreamEvent) (workshop.ChatResponse, error) {
	body := BuildBody(req, p.model, p.opts...)
	body.Stream = true
	body.StreamOptions = &StreamOptions{IncludeUsage: true}

	resp, err := p.post(ctx, body)
	if err != nil {
		return workshop.ChatResponse{}, err
	}
	defer resp.Body.Close()

	return StreamSSE(ctx, resp.Body, ch)
}

// post sends one request to the chat completions endpoint and hands back the
// response with a 200 status; anything else is drained into an error here.
// Context cancellation surfaces as ctx.Err() rather than a wrapped transport
// error.
func (p *Provider) post(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, workshop.Errorf(workshop.KindProvider, "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, workshop.Errorf(workshop.KindProvider, "create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, workshop.WrapError(workshop.KindProvider, err, "send request")
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := apiError(resp)
		resp.Body.Close()
		return nil, apiErr
	}
	return resp, nil
}

// apiError turns a non-200 response into a provider error carrying the
// status code and up to 4KB of the upstream message.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return workshop.Errorf(workshop.KindProvider, "http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
