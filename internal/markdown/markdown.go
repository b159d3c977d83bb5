// Package markdown turns Markdown chapter sources into content trees.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	epub "github.com/simp-lee/epubpack"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

// ToHTML renders src as an XHTML fragment.
func ToHTML(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("markdown: convert: %w", err)
	}
	return buf.Bytes(), nil
}

// Title returns the text of the first level-1 heading of src, or "".
func Title(src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok || h.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(plainText(h, src))
		return ast.WalkStop, nil
	})
	return title
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

// Parse converts src to a content tree rooted at a <body> container. The
// returned title is that of the first level-1 heading.
func Parse(src []byte) (*epub.Node, string, error) {
	frag, err := ToHTML(src)
	if err != nil {
		return nil, "", err
	}

	var page bytes.Buffer
	page.WriteString("<html><head></head><body>")
	page.Write(frag)
	page.WriteString("</body></html>")

	body, _, err := epub.ParseDocument(&page)
	if err != nil {
		return nil, "", err
	}
	return body, Title(src), nil
}
