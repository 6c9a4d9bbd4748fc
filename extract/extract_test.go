package extract

import (
	"strings"
	"testing"
)

func TestTextPlainFallthrough(t *testing.T) {
	out, err := Text("notes.txt", []byte("hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello world" {
		t.Errorf("expected hello world, got %q", out)
	}

	out, err = Text("data.unknown", []byte("raw bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "raw bytes" {
		t.Errorf("unknown extension should pass through, got %q", out)
	}
}

func TestTextDispatchesByExtension(t *testing.T) {
	out, err := Text("doc.HTML", []byte("<p>Hello <b>world</b></p>"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<") {
		t.Errorf("HTML tags not stripped: %q", out)
	}

	out, err = Text("doc.md", []byte("# Title\nbody"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "#") {
		t.Errorf("heading markers not stripped: %q", out)
	}
}

func TestStripHTMLBasic(t *testing.T) {
	out := StripHTML("<p>Hello <b>world</b></p>")
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("missing content: %q", out)
	}
	if strings.Contains(out, "<") {
		t.Error("HTML tags not stripped")
	}
}

func TestStripHTMLEntities(t *testing.T) {
	out := StripHTML("Tom &amp; Jerry &lt;3 &#65;")
	if !strings.Contains(out, "Tom & Jerry") {
		t.Errorf("named entities not decoded: %q", out)
	}
	if !strings.Contains(out, "A") {
		t.Errorf("numeric entity not decoded: %q", out)
	}
}

func TestStripHTMLScriptAndStyle(t *testing.T) {
	out := StripHTML("<p>Hello</p><script>alert('xss')</script><style>.x{}</style><p>World</p>")
	if strings.Contains(out, "alert") || strings.Contains(out, ".x{}") {
		t.Errorf("script/style content not stripped: %q", out)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "World") {
		t.Error("text content lost")
	}
}

func TestStripHTMLBlockTagsBreakLines(t *testing.T) {
	out := StripHTML("<h1>Title</h1><p>First</p><p>Second</p>")
	lines := strings.Split(out, "\n")
	if len(lines) < 3 {
		t.Errorf("block tags should separate lines, got %q", out)
	}
}

func TestMarkdownHeadingsAndLists(t *testing.T) {
	md := "# Title\n\nSome text.\n\n- first\n- second\n\n1. one\n2. two\n"
	out := Markdown([]byte(md))
	if strings.Contains(out, "#") {
		t.Errorf("heading markers not stripped: %q", out)
	}
	for _, want := range []string{"Title", "Some text.", "- first", "- second", "1. one", "2. two"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestMarkdownLinksKeepText(t *testing.T) {
	out := Markdown([]byte("See [the docs](https://example.com/docs) for details."))
	if !strings.Contains(out, "the docs") {
		t.Errorf("link text lost: %q", out)
	}
	if strings.Contains(out, "https://example.com/docs") {
		t.Errorf("link target should be dropped: %q", out)
	}
}

func TestMarkdownCodeFence(t *testing.T) {
	out := Markdown([]byte("```go\nfmt.Println(\"hi\")\n```\n"))
	if !strings.Contains(out, `fmt.Println("hi")`) {
		t.Errorf("code content lost: %q", out)
	}
	if strings.Contains(out, "```") {
		t.Errorf("fence markers not stripped: %q", out)
	}
}

func TestMarkdownDropsRawHTML(t *testing.T) {
	out := Markdown([]byte("before\n\n<div class=\"x\">inside</div>\n\nafter"))
	if strings.Contains(out, "<div") {
		t.Errorf("raw HTML not dropped: %q", out)
	}
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("surrounding text lost: %q", out)
	}
}

func TestCSVFlattensRows(t *testing.T) {
	out, err := CSV([]byte("name,age\nalice,30\nbob,41\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := "name, age\nalice, 30\nbob, 41"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestCSVRaggedRows(t *testing.T) {
	out, err := CSV([]byte("a,b,c\nd\n"))
	if err != nil {
		t.Fatalf("ragged rows should parse: %v", err)
	}
	if !strings.Contains(out, "a, b, c") || !strings.Contains(out, "d") {
		t.Errorf("got %q", out)
	}
}

func TestPDFEmpty(t *testing.T) {
	if _, err := PDF(nil); err == nil {
		t.Error("empty PDF should fail")
	}
}
