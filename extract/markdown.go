package extract

import (
	"bytes"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// Markdown renders a Markdown document to plain text through the goldmark
// AST: headings and emphasis lose their markers, list items keep a bullet or
// number, code blocks keep their raw lines, raw HTML is dropped.
func Markdown(content []byte) string {
	gm := goldmark.New(goldmark.WithRenderer(
		renderer.NewRenderer(renderer.WithNodeRenderers(
			util.Prioritized(&plainText{}, 1),
		)),
	))

	var buf bytes.Buffer
	if err := gm.Convert(content, &buf); err != nil {
		return collapseWhitespace(string(content))
	}
	return collapseWhitespace(buf.String())
}

// plainText is a goldmark NodeRenderer that erases all markup. Ordered list
// numbering nests through a counter stack; -1 marks an unordered level.
type plainText struct {
	counters []int
}

func (p *plainText) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	pass := func(_ util.BufWriter, _ []byte, _ ast.Node, _ bool) (ast.WalkStatus, error) {
		return ast.WalkContinue, nil
	}
	drop := func(_ util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	}
	breakAfter := func(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			_, _ = w.WriteString("\n")
		}
		return ast.WalkContinue, nil
	}

	for kind, fn := range map[ast.NodeKind]renderer.NodeRendererFunc{
		ast.KindDocument:        pass,
		ast.KindBlockquote:      pass,
		ast.KindCodeSpan:        pass,
		ast.KindEmphasis:        pass,
		ast.KindLink:            pass,
		ast.KindHeading:         breakAfter,
		ast.KindParagraph:       breakAfter,
		ast.KindThematicBreak:   breakAfter,
		ast.KindHTMLBlock:       drop,
		ast.KindRawHTML:         drop,
		ast.KindImage:           drop,
		ast.KindFencedCodeBlock: p.code,
		ast.KindCodeBlock:       p.code,
		ast.KindList:            p.list,
		ast.KindListItem:        p.item,
		ast.KindTextBlock:       p.textBlock,
		ast.KindText:            p.text,
		ast.KindString:          p.str,
		ast.KindAutoLink:        p.autoLink,
	} {
		reg.Register(kind, fn)
	}
}

// code writes the block's raw lines and skips goldmark's token children.
func (p *plainText) code(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(line.Value(source))
	}
	return ast.WalkSkipChildren, nil
}

func (p *plainText) list(_ util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		start := -1
		if l := node.(*ast.List); l.IsOrdered() {
			start = l.Start
		}
		p.counters = append(p.counters, start)
	} else if n := len(p.counters); n > 0 {
		p.counters = p.counters[:n-1]
	}
	return ast.WalkContinue, nil
}

func (p *plainText) item(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("\n")
		return ast.WalkContinue, nil
	}
	top := len(p.counters) - 1
	if n := p.counters[top]; n >= 0 {
		_, _ = w.WriteString(strconv.Itoa(n))
		_, _ = w.WriteString(". ")
		p.counters[top]++
	} else {
		_, _ = w.WriteString("- ")
	}
	return ast.WalkContinue, nil
}

func (p *plainText) textBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	// List items write their own trailing newline.
	if !entering && node.Parent() != nil && node.Parent().Kind() != ast.KindListItem {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (p *plainText) text(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	t := node.(*ast.Text)
	_, _ = w.Write(t.Segment.Value(source))
	if t.SoftLineBreak() || t.HardLineBreak() {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (p *plainText) str(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.Write(node.(*ast.String).Value)
	}
	return ast.WalkContinue, nil
}

func (p *plainText) autoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.Write(node.(*ast.AutoLink).URL(source))
	}
	return ast.WalkContinue, nil
}
