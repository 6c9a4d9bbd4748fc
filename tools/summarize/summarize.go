// Package summarize provides the summarize_doc tool: map-reduce
// summarization of workspace files and URLs. Large documents are chunked on
// paragraph boundaries, each chunk is summarized by the chat provider, and a
// combine pass merges the chunk summaries.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	workshop "github.com/nevindra/workshop"
	"github.com/nevindra/workshop/extract"
	"github.com/nevindra/workshop/sandbox"
	"github.com/nevindra/workshop/tools/web"
)

const (
	chunkSize       = 12000
	defaultMaxChars = 60000
)

// summaryTemperature keeps chunk and combine passes near-deterministic.
const summaryTemperature = 0.1

// Tool provides summarize_doc over a chat provider, a workspace sandbox for
// file sources and a page fetcher for URL sources.
type Tool struct {
	provider workshop.Provider
	sb       *sandbox.Sandbox
	fetcher  *web.Fetcher
}

// New creates the summarizer tool. All three collaborators are required.
func New(provider workshop.Provider, sb *sandbox.Sandbox, fetcher *web.Fetcher) *Tool {
	return &Tool{provider: provider, sb: sb, fetcher: fetcher}
}

func (t *Tool) Definitions() []workshop.ToolDefinition {
	return []workshop.ToolDefinition{{
		Name:        "summarize_doc",
		Description: "Summarize a document from the workspace or a URL. Handles text, Markdown, HTML, PDF and CSV files. Large documents are summarized chunk by chunk.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"source":{"type":"string","description":"Workspace-relative file path or http(s) URL"},"style":{"type":"string","enum":["brief","detailed","bullets"],"description":"Summary shape (default brief)"},"focus":{"type":"string","description":"Aspect to emphasize"},"maxChars":{"type":"integer","description":"Cap on document characters read (default 60000)"}},"required":["source"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (workshop.ToolResult, error) {
	var params struct {
		Source   string `json:"source"`
		Style    string `json:"style"`
		Focus    string `json:"focus"`
		MaxChars int    `json:"maxChars"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return workshop.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	result := t.Summarize(ctx, params.Source, params.Style, params.Focus, params.MaxChars)
	data, err := json.Marshal(result)
	if err != nil {
		return workshop.ToolResult{Error: "encode result: " + err.Error()}, nil
	}
	return workshop.ToolResult{Content: string(data)}, nil
}

// Result is the summarize_doc payload. Failures are carried in Error with a
// stage-specific message; the call itself never raises.
type Result struct {
	Source     string `json:"source"`
	SourceType string `json:"sourceType"`
	Title      string `json:"title,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Style      string `json:"style"`
	Focus      string `json:"focus,omitempty"`
	Truncated  bool   `json:"truncated"`
	ChunkCount int    `json:"chunkCount"`
	TextChars  int    `json:"textChars"`
	Error      string `json:"error,omitempty"`
}

// Summarize loads, normalizes, chunks and summarizes one document.
func (t *Tool) Summarize(ctx context.Context, source, style, focus string, maxChars int) Result {
	style = normalizeStyle(style)
	res := Result{Source: source, Style: style, Focus: focus}
	if strings.TrimSpace(source) == "" {
		res.Error = "source is required"
		return res
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	var text string
	if isURL(source) {
		res.SourceType = "url"
		// Fetch one char past the cap so truncation is detectable.
		page, err := t.fetcher.Fetch(ctx, source, maxChars+1)
		if err != nil {
			res.Error = "load url: " + err.Error()
			return res
		}
		text = page.Text
		res.Title = page.Title
	} else {
		res.SourceType = "file"
		f, err := t.sb.Read(source)
		if err != nil {
			res.Error = "load file: " + err.Error()
			return res
		}
		extracted, err := extract.Text(source, []byte(f.Content))
		if err != nil {
			res.Error = "extract text: " + err.Error()
			return res
		}
		text = extracted
	}

	text = normalizeText(text)
	if len(text) > maxChars {
		text, _ = splitAt(text, maxChars)
		res.Truncated = true
	}
	res.TextChars = len(text)
	if text == "" {
		res.Error = "document is empty"
		return res
	}

	chunks := chunkText(text, chunkSize)
	res.ChunkCount = len(chunks)

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := t.summarizeChunk(ctx, chunk, style, focus, i+1, len(chunks))
		if err != nil {
			res.Error = fmt.Sprintf("summarize chunk %d/%d: %v", i+1, len(chunks), err)
			return res
		}
		summaries = append(summaries, summary)
	}

	if len(summaries) == 1 {
		res.Summary = summaries[0]
		return res
	}

	combined, err := t.combine(ctx, summaries, style, focus)
	if err != nil {
		res.Error = "combine summaries: " + err.Error()
		return res
	}
	res.Summary = combined
	return res
}

func (t *Tool) summarizeChunk(ctx context.Context, chunk, style, focus string, index, total int) (string, error) {
	system := "You are a precise summarizer. Summarize the provided text faithfully. Preserve key facts, names, numbers and conclusions. Do not add information. " + styleInstruction(style)
	if focus != "" {
		system += " Focus on: " + focus + "."
	}
	user := chunk
	if total > 1 {
		user = fmt.Sprintf("Part %d of %d:\n\n%s", index, total, chunk)
	}
	return t.chat(ctx, system, user)
}

func (t *Tool) combine(ctx context.Context, summaries []string, style, focus string) (string, error) {
	system := "You are a precise summarizer. Combine the chunk summaries below into one coherent summary of the whole document. Remove repetition, keep all distinct facts. " + styleInstruction(style)
	if focus != "" {
		system += " Focus on: " + focus + "."
	}
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "Chunk %d summary:\n%s\n\n", i+1, s)
	}
	return t.chat(ctx, system, b.String())
}

func (t *Tool) chat(ctx context.Context, system, user string) (string, error) {
	temp := summaryTemperature
	resp, err := t.provider.Chat(ctx, workshop.ChatRequest{
		Messages: []workshop.ChatMessage{
			workshop.SystemMessage(system),
			workshop.UserMessage(user),
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty summary from provider")
	}
	return text, nil
}

func styleInstruction(style string) string {
	switch style {
	case "bullets":
		return "Write 5-10 bullet points, one fact per bullet."
	case "detailed":
		return "Write short paragraphs covering every major section."
	default:
		return "Write 5-8 plain sentences."
	}
}

func normalizeStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "bullets":
		return "bullets"
	case "detailed":
		return "detailed"
	default:
		return "brief"
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

var (
	tabSpaceRuns = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
)

// normalizeText applies the whitespace rules: CRLF to LF, runs of tabs and
// spaces to one space, three or more newlines to two.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = tabSpaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// chunkText packs paragraphs greedily up to size chars per chunk. A single
// paragraph longer than size is hard-sliced.
func chunkText(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, p := range strings.Split(text, "\n\n") {
		for len(p) > size {
			flush()
			var head string
			head, p = splitAt(p, size)
			chunks = append(chunks, head)
		}
		if p == "" {
			continue
		}
		joined := len(p)
		if cur.Len() > 0 {
			joined += cur.Len() + 2
		}
		if joined > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()
	return chunks
}

// splitAt cuts s at n bytes without splitting a rune.
func splitAt(s string, n int) (string, string) {
	if len(s) <= n {
		return s, ""
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], s[cut:]
}
