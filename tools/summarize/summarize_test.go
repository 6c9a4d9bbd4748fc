package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	workshop "github.com/nevindra/workshop"
	"github.com/nevindra/workshop/sandbox"
	"github.com/nevindra/workshop/tools/web"
)

// scriptedProvider pops canned responses in order and records requests.
type scriptedProvider struct {
	requests  []workshop.ChatRequest
	responses []workshop.ChatResponse
	err       error
}

func (p *scriptedProvider) Chat(_ context.Context, req workshop.ChatRequest) (workshop.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return workshop.ChatResponse{}, p.err
	}
	if len(p.responses) == 0 {
		return workshop.ChatResponse{}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req workshop.ChatRequest, _ chan<- workshop.StreamEvent) (workshop.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *scriptedProvider) Name() string { return "scripted" }

func newTestTool(t *testing.T, provider workshop.Provider) (*Tool, *sandbox.Sandbox) {
	t.Helper()
	sb, err := sandbox.Open(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return New(provider, sb, web.NewFetcher(nil, nil)), sb
}

func TestSummarizeFile(t *testing.T) {
	provider := &scriptedProvider{responses: []workshop.ChatResponse{{Content: "A short summary."}}}
	tool, sb := newTestTool(t, provider)
	if _, err := sb.Write("doc.txt", "The project shipped on time. Costs stayed under budget.", false); err != nil {
		t.Fatal(err)
	}

	res := tool.Summarize(context.Background(), "doc.txt", "", "", 0)
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	if res.SourceType != "file" {
		t.Errorf("SourceType = %q, want file", res.SourceType)
	}
	if res.Summary != "A short summary." {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.Style != "brief" {
		t.Errorf("Style = %q, want brief", res.Style)
	}
	if res.ChunkCount != 1 {
		t.Errorf("ChunkCount = %d, want 1", res.ChunkCount)
	}
	if res.Truncated {
		t.Error("Truncated = true for small document")
	}

	if len(provider.requests) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.requests))
	}
	req := provider.requests[0]
	if req.Temperature == nil || *req.Temperature != summaryTemperature {
		t.Errorf("Temperature = %v, want %v", req.Temperature, summaryTemperature)
	}
	if !strings.Contains(req.Messages[0].Content, "precise summarizer") {
		t.Errorf("system prompt = %q", req.Messages[0].Content)
	}
	if len(req.Tools) != 0 {
		t.Errorf("summarizer request should carry no tools, got %d", len(req.Tools))
	}
}

func TestSummarizeStyleAndFocus(t *testing.T) {
	provider := &scriptedProvider{responses: []workshop.ChatResponse{{Content: "- point"}}}
	tool, sb := newTestTool(t, provider)
	if _, err := sb.Write("doc.txt", "content", false); err != nil {
		t.Fatal(err)
	}

	res := tool.Summarize(context.Background(), "doc.txt", "BULLETS", "costs", 0)
	if res.Style != "bullets" {
		t.Errorf("Style = %q, want bullets", res.Style)
	}
	system := provider.requests[0].Messages[0].Content
	if !strings.Contains(system, "bullet") {
		t.Errorf("style instruction missing: %q", system)
	}
	if !strings.Contains(system, "Focus on: costs.") {
		t.Errorf("focus clause missing: %q", system)
	}
}

func TestSummarizeChunksAndCombines(t *testing.T) {
	provider := &scriptedProvider{responses: []workshop.ChatResponse{
		{Content: "first part"},
		{Content: "second part"},
		{Content: "combined summary"},
	}}
	tool, sb := newTestTool(t, provider)

	doc := strings.Repeat("a", 7000) + "\n\n" + strings.Repeat("b", 7000)
	if _, err := sb.Write("big.txt", doc, false); err != nil {
		t.Fatal(err)
	}

	res := tool.Summarize(context.Background(), "big.txt", "", "", 0)
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	if res.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", res.ChunkCount)
	}
	if res.Summary != "combined summary" {
		t.Errorf("Summary = %q", res.Summary)
	}
	if len(provider.requests) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(provider.requests))
	}
	combineSystem := provider.requests[2].Messages[0].Content
	if !strings.Contains(combineSystem, "Combine the chunk summaries") {
		t.Errorf("combine prompt = %q", combineSystem)
	}
	if !strings.Contains(provider.requests[2].Messages[1].Content, "Chunk 1 summary:") {
		t.Errorf("combine input = %q", provider.requests[2].Messages[1].Content)
	}
}

func TestSummarizeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Remote article body with enough words to extract.</p></body></html>")
	}))
	defer srv.Close()

	provider := &scriptedProvider{responses: []workshop.ChatResponse{{Content: "url summary"}}}
	sb, err := sandbox.Open(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatal(err)
	}
	tool := New(provider, sb, web.NewFetcher(srv.Client(), nil))

	res := tool.Summarize(context.Background(), srv.URL, "", "", 0)
	if res.Error != "" {
		t.Fatalf("Error = %q", res.Error)
	}
	if res.SourceType != "url" {
		t.Errorf("SourceType = %q, want url", res.SourceType)
	}
	if res.Summary != "url summary" {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestSummarizeMissingFile(t *testing.T) {
	provider := &scriptedProvider{}
	tool, _ := newTestTool(t, provider)
	res := tool.Summarize(context.Background(), "ghost.txt", "", "", 0)
	if !strings.HasPrefix(res.Error, "load file:") {
		t.Errorf("Error = %q, want load file prefix", res.Error)
	}
	if len(provider.requests) != 0 {
		t.Errorf("provider called %d times for missing file", len(provider.requests))
	}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	provider := &scriptedProvider{}
	tool, sb := newTestTool(t, provider)
	if _, err := sb.Write("blank.txt", "   \n\n  ", false); err != nil {
		t.Fatal(err)
	}
	res := tool.Summarize(context.Background(), "blank.txt", "", "", 0)
	if res.Error != "document is empty" {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestSummarizeTruncates(t *testing.T) {
	provider := &scriptedProvider{responses: []workshop.ChatResponse{{Content: "s"}}}
	tool, sb := newTestTool(t, provider)
	if _, err := sb.Write("long.txt", strings.Repeat("x", 500), false); err != nil {
		t.Fatal(err)
	}
	res := tool.Summarize(context.Background(), "long.txt", "", "", 100)
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if res.TextChars != 100 {
		t.Errorf("TextChars = %d, want 100", res.TextChars)
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("backend down")}
	tool, sb := newTestTool(t, provider)
	if _, err := sb.Write("doc.txt", "content", false); err != nil {
		t.Fatal(err)
	}
	res := tool.Summarize(context.Background(), "doc.txt", "", "", 0)
	if !strings.Contains(res.Error, "summarize chunk 1/1") {
		t.Errorf("Error = %q, want stage prefix", res.Error)
	}
}

func TestExecuteNeverRaises(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("backend down")}
	tool, _ := newTestTool(t, provider)
	res, err := tool.Execute(context.Background(), "summarize_doc", json.RawMessage(`{"source":"nope.txt"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Error != "" {
		t.Fatalf("tool-level Error = %q, failures belong in the result payload", res.Error)
	}
	var out Result
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		t.Fatal(err)
	}
	if out.Error == "" {
		t.Error("Result.Error empty for missing file")
	}
}

func TestChunkTextPacksParagraphs(t *testing.T) {
	text := "aaa\n\nbbb\n\nccc"
	chunks := chunkText(text, 9)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2: %q", len(chunks), chunks)
	}
	if chunks[0] != "aaa\n\nbbb" {
		t.Errorf("chunks[0] = %q", chunks[0])
	}
	if chunks[1] != "ccc" {
		t.Errorf("chunks[1] = %q", chunks[1])
	}
}

func TestChunkTextHardSlicesOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 25) + "\n\nshort"
	chunks := chunkText(text, 10)
	if len(chunks) != 4 {
		t.Fatalf("len(chunks) = %d, want 4: %q", len(chunks), chunks)
	}
	for i := 0; i < 2; i++ {
		if len(chunks[i]) != 10 {
			t.Errorf("len(chunks[%d]) = %d, want 10", i, len(chunks[i]))
		}
	}
}

func TestNormalizeText(t *testing.T) {
	in := "a\r\nb\t\tc   d\n\n\n\ne"
	want := "a\nb c d\n\ne"
	if got := normalizeText(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
