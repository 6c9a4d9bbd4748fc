package web

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"

	"github.com/nevindra/workshop/extract"
)

const userAgent = "Mozilla/5.0 (compatible; WorkshopBot/1.0)"

// Fetcher downloads a page and extracts its readable text.
type Fetcher struct {
	client *http.Client
	log    *slog.Logger
}

// NewFetcher creates a standalone page fetcher, for collaborators that need
// URL loading without the search tool. nil arguments select the defaults.
func NewFetcher(client *http.Client, log *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{client: client, log: log}
}

// Page is the readable text of a fetched URL, normalized to single-spaced
// content and capped in size. Suspicious marks content that matched an
// injection phrase; the text is still returned.
type Page struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`
	Suspicious bool   `json:"suspicious,omitempty"`
}

// Fetch downloads rawURL and extracts readable text, preferring readability
// and falling back to manual tag stripping. maxChars <= 0 selects the
// default cap.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (Page, error) {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return Page{}, fmt.Errorf("read error: %w", err)
	}

	html := string(body)
	title := ""
	text := ""
	parsedURL, _ := url.Parse(rawURL)
	article, rerr := readability.FromReader(strings.NewReader(html), parsedURL)
	if rerr == nil && strings.TrimSpace(article.TextContent) != "" {
		title = strings.TrimSpace(article.Title)
		text = article.TextContent
	} else {
		text = extract.StripHTML(html)
	}

	text = truncate(normalizeSpace(text), maxChars)
	page := Page{URL: rawURL, Title: title, Text: text}
	if scanUntrusted(text) {
		page.Suspicious = true
		f.log.Warn("fetched content matched injection phrase", "url", rawURL)
	}
	return page, nil
}

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
