package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText flattens markdown into speakable text. Block elements end up on
// their own lines; code, raw HTML, images and bare links are dropped.
func PlainText(markdown string) string {
	reader := text.NewReader([]byte(markdown))
	doc := goldmark.New().Parser().Parse(reader)

	var buf strings.Builder
	walkNode(doc, reader.Source(), &buf)
	return strings.TrimSpace(buf.String())
}

func walkNode(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML,
		*ast.Image, *ast.AutoLink, *ast.ThematicBreak:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		switch {
		case n.HardLineBreak():
			buf.WriteString("\n")
		case n.SoftLineBreak():
			buf.WriteString(" ")
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.Heading, *ast.Paragraph, *ast.TextBlock, *ast.ListItem:
		walkChildren(n, source, buf)
		buf.WriteString("\n")
		return
	}

	walkChildren(node, source, buf)
}

func walkChildren(node ast.Node, source []byte, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkNode(c, source, buf)
	}
}
