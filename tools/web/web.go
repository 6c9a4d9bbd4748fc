// Package web provides web_search and web_fetch agent tools. Search is
// backend-polymorphic: a key-authenticated JSON API when a key is
// configured, an HTML scraper over a public endpoint otherwise. Fetched
// content is readable-text extracted, size-capped and scanned for prompt
// injection before it reaches the model.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	workshop "github.com/nevindra/workshop"
)

const (
	defaultCount      = 5
	defaultFetchCount = 3
	defaultMaxChars   = 20000
)

// Config configures the web tool.
type Config struct {
	// SearchAPIKey selects the JSON search API backend when set; without it
	// searches scrape a public HTML endpoint.
	SearchAPIKey string
	// SearchBaseURL overrides the backend endpoint. Defaults to the Brave
	// API for the keyed backend and the DuckDuckGo HTML endpoint for the
	// scraper.
	SearchBaseURL string
	// HTTPClient overrides the default client (15-second timeout).
	HTTPClient *http.Client
	// Logger receives guard warnings. Discarded when unset.
	Logger *slog.Logger
}

// Tool provides web_search and web_fetch.
type Tool struct {
	fetcher *Fetcher
	backend SearchBackend
	log     *slog.Logger
}

// New creates the web tool. The search backend is picked by key presence in
// cfg.
func New(cfg Config) *Tool {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var backend SearchBackend
	if cfg.SearchAPIKey != "" {
		backend = &apiBackend{key: cfg.SearchAPIKey, baseURL: cfg.SearchBaseURL, client: client}
	} else {
		backend = &scrapeBackend{baseURL: cfg.SearchBaseURL, client: client}
	}
	return &Tool{
		fetcher: &Fetcher{client: client, log: log},
		backend: backend,
		log:     log,
	}
}

// Fetcher returns the tool's page fetcher for collaborators that load URLs
// directly.
func (t *Tool) Fetcher() *Fetcher { return t.fetcher }

func (t *Tool) Definitions() []workshop.ToolDefinition {
	return []workshop.ToolDefinition{
		{
			Name:        "web_search",
			Description: "Search the web for current information. Returns result titles, URLs and snippets, and fetches readable text from the top results unless fetch is false.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query optimized for search engines"},"count":{"type":"integer","description":"Number of results to return (default 5)"},"fetch":{"type":"boolean","description":"Fetch readable text from top results (default true)"},"fetchCount":{"type":"integer","description":"How many top results to fetch (default 3)"},"maxChars":{"type":"integer","description":"Character cap per fetched page (default 20000)"}},"required":["query"]}`),
		},
		{
			Name:        "web_fetch",
			Description: "Fetch a URL and extract its readable text content. Use for reading web pages, articles, documentation.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"URL to fetch"},"maxChars":{"type":"integer","description":"Character cap for the extracted text (default 20000)"}},"required":["url"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (workshop.ToolResult, error) {
	var params struct {
		Query      string `json:"query"`
		Count      int    `json:"count"`
		Fetch      *bool  `json:"fetch"`
		FetchCount int    `json:"fetchCount"`
		MaxChars   int    `json:"maxChars"`
		URL        string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return workshop.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	switch name {
	case "web_search":
		if strings.TrimSpace(params.Query) == "" {
			return workshop.ToolResult{Error: "query is required"}, nil
		}
		opts := SearchOptions{
			Count:      params.Count,
			Fetch:      params.Fetch == nil || *params.Fetch,
			FetchCount: params.FetchCount,
			MaxChars:   params.MaxChars,
		}
		resp, err := t.Search(ctx, params.Query, opts)
		if err != nil {
			return workshop.ToolResult{Error: err.Error()}, nil
		}
		return marshalResult(resp)
	case "web_fetch":
		if strings.TrimSpace(params.URL) == "" {
			return workshop.ToolResult{Error: "url is required"}, nil
		}
		page, err := t.fetcher.Fetch(ctx, params.URL, params.MaxChars)
		if err != nil {
			return workshop.ToolResult{Error: err.Error()}, nil
		}
		return marshalResult(page)
	default:
		return workshop.ToolResult{Error: "unknown web tool: " + name}, nil
	}
}

// SearchOptions tune one search call. Zero values select the defaults.
type SearchOptions struct {
	Count      int
	Fetch      bool
	FetchCount int
	MaxChars   int
}

// SearchResponse is the web_search payload: the ranked results plus, when
// fetching is on, readable text for the top ones.
type SearchResponse struct {
	Results []SearchResult  `json:"results"`
	Fetched []FetchedResult `json:"fetched,omitempty"`
}

// FetchedResult pairs a search hit with its fetched text. A failed fetch
// keeps the slot with an error message and empty text rather than failing
// the whole search.
type FetchedResult struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	Suspicious bool   `json:"suspicious,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Search runs the configured backend and optionally fetches the top results.
func (t *Tool) Search(ctx context.Context, query string, opts SearchOptions) (SearchResponse, error) {
	count := opts.Count
	if count <= 0 {
		count = defaultCount
	}
	results, err := t.backend.Search(ctx, query, count)
	if err != nil {
		return SearchResponse{}, err
	}
	if len(results) > count {
		results = results[:count]
	}
	resp := SearchResponse{Results: results}
	if !opts.Fetch {
		return resp, nil
	}

	fetchCount := opts.FetchCount
	if fetchCount <= 0 {
		fetchCount = defaultFetchCount
	}
	if fetchCount > len(results) {
		fetchCount = len(results)
	}
	for i := 0; i < fetchCount; i++ {
		fr := FetchedResult{URL: results[i].URL, Title: results[i].Title}
		page, ferr := t.fetcher.Fetch(ctx, results[i].URL, opts.MaxChars)
		if ferr != nil {
			fr.Error = ferr.Error()
		} else {
			fr.Text = page.Text
			fr.Suspicious = page.Suspicious
			if page.Title != "" {
				fr.Title = page.Title
			}
		}
		resp.Fetched = append(resp.Fetched, fr)
	}
	return resp, nil
}

func marshalResult(v any) (workshop.ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return workshop.ToolResult{Error: "encode result: " + err.Error()}, nil
	}
	return workshop.ToolResult{Content: string(data)}, nil
}
