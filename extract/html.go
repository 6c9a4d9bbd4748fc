package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// HTML extracts readable text from an HTML document. Readability handles
// article-shaped pages; anything it cannot parse falls back to StripHTML.
func HTML(content []byte) string {
	u, _ := url.Parse("file:///document.html")
	article, err := readability.FromReader(strings.NewReader(string(content)), u)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return collapseWhitespace(article.TextContent)
	}
	return StripHTML(string(content))
}

// Elements whose open or close tag forces a line break in the output.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true,
}

// Elements whose text content never renders. Close tags for these are raw
// text terminators, so an unclosed one swallows the rest of the input, same
// as a browser would.
var invisibleTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// StripHTML reduces markup to plain text: tags go, entities decode, block
// boundaries become newlines, script and style bodies are dropped. The
// tokenizer tolerates truncated and malformed input, so this never fails.
func StripHTML(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var out strings.Builder
	out.Grow(len(content) / 2)

	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(out.String())
		case html.TextToken:
			if hidden == 0 {
				out.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case invisibleTags[tag]:
				if tt == html.StartTagToken {
					hidden++
				} else if tt == html.EndTagToken && hidden > 0 {
					hidden--
				}
			case blockTags[tag]:
				out.WriteByte('\n')
			}
		}
	}
}

// collapseWhitespace trims every line, squeezes runs of blank lines down to
// one, and drops leading and trailing blanks.
func collapseWhitespace(text string) string {
	var kept []string
	blanks := 0
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			blanks++
			continue
		}
		if blanks > 1 && len(kept) > 0 {
			kept = append(kept, "")
		}
		kept = append(kept, line)
		blanks = 0
	}
	return strings.Join(kept, "\n")
}
