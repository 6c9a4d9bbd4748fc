package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	defaultAPIBaseURL     = "https://api.search.brave.com/res/v1/web/search"
	defaultScrapeBaseURL  = "https://html.duckduckgo.com/html/"
	scrapeResultSelector  = "result__a"
	scrapeSnippetSelector = "result__snippet"
)

// SearchResult is one search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchBackend turns a query into ranked results.
type SearchBackend interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// apiBackend queries a key-authenticated JSON search API.
type apiBackend struct {
	key     string
	baseURL string
	client  *http.Client
}

func (b *apiBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := b.baseURL
	if base == "" {
		base = defaultAPIBaseURL
	}
	u := fmt.Sprintf("%s?q=%s&count=%d", base, url.QueryEscape(query), count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.key)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search API %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("search parse error: %w", err)
	}

	var results []SearchResult
	for _, r := range data.Web.Results {
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
	}
	return results, nil
}

// scrapeBackend scrapes a public HTML search endpoint. Used when no API key
// is configured.
type scrapeBackend struct {
	baseURL string
	client  *http.Client
}

func (b *scrapeBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := b.baseURL
	if base == "" {
		base = defaultScrapeBaseURL
	}
	u := base + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("search parse error: %w", err)
	}
	results := parseScrapedResults(doc, count)
	if len(results) == 0 {
		return nil, fmt.Errorf("no results parsed from search page")
	}
	return results, nil
}

// parseScrapedResults walks the parsed page collecting result anchors and
// their snippets in document order, then caps at count.
func parseScrapedResults(doc *html.Node, count int) []SearchResult {
	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, scrapeResultSelector):
				results = append(results, SearchResult{
					Title: innerText(n),
					URL:   cleanResultURL(attr(n, "href")),
				})
			case hasClass(n, scrapeSnippetSelector):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = innerText(n)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(results) > count {
		results = results[:count]
	}
	return results
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// cleanResultURL unwraps redirect links whose real target sits in the uddg
// query parameter.
func cleanResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
