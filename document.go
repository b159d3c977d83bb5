package epub

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxSectionBytes is the default content budget of one XHTML
// document. It stays below the ~300 KB limits seen in reading systems.
const DefaultMaxSectionBytes int64 = 300 * 1024

// DocType selects the prolog written in front of a content document.
type DocType uint8

const (
	// DocTypeHTML5 writes <!DOCTYPE html> (ePub 3).
	DocTypeHTML5 DocType = iota
	// DocTypeXHTML11 writes the XHTML 1.1 doctype (ePub 2).
	DocTypeXHTML11
)

const (
	xhtmlNamespace = "http://www.w3.org/1999/xhtml"
	opsNamespace   = "http://www.idpf.org/2007/ops"

	xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	xhtml11Doctype = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">` + "\n"
	html5Doctype   = "<!DOCTYPE html>\n"
)

// Document is one content document of the package: a <body> tree plus the
// page-level data every fragment of it must carry.
type Document struct {
	// Content is the <body> element of the page.
	Content *Node

	// Title is written to <head><title>.
	Title string

	// Stylesheets are linked from <head>, in order.
	Stylesheets []InternalPath

	// Type selects the doctype.
	Type DocType

	// NavParent is the document this one nests under in the table of
	// contents; nil for a top-level entry.
	NavParent *Document

	// NotInNavigation is set on fragments produced by splitting; only the
	// first fragment of a document is a navigation target.
	NotInNavigation bool
}

// NewDocument returns a document with an empty <body>.
func NewDocument(title string) *Document {
	return &Document{Content: NewContainer("body"), Title: title}
}

// sibling returns an empty fragment carrying d's page data. It is never a
// navigation target.
func (d *Document) sibling() *Document {
	return &Document{
		Content:         d.Content.CloneEmpty(),
		Title:           d.Title,
		Stylesheets:     append([]InternalPath(nil), d.Stylesheets...),
		Type:            d.Type,
		NavParent:       d.NavParent,
		NotInNavigation: true,
	}
}

// Render writes d as a complete page located at the given path. Stylesheet
// references are made relative to that location.
func (d *Document) Render(w io.Writer, at InternalPath, flat bool) error {
	prolog := xmlDeclaration + html5Doctype
	if d.Type == DocTypeXHTML11 {
		prolog = xmlDeclaration + xhtml11Doctype
	}
	if _, err := io.WriteString(w, prolog); err != nil {
		return err
	}

	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "html",
		DataAtom: atom.Html,
		Attr:     []html.Attribute{{Key: "xmlns", Val: xhtmlNamespace}},
	}
	if d.Type == DocTypeHTML5 {
		root.Attr = append(root.Attr, html.Attribute{Key: "xmlns:epub", Val: opsNamespace})
	}

	head, err := d.head(at, flat)
	if err != nil {
		return err
	}
	root.AppendChild(head)

	body := d.Content
	if body == nil {
		body = NewContainer("body")
	}
	root.AppendChild(body.toHTML())

	if err := html.Render(w, root); err != nil {
		return fmt.Errorf("epub: render %s: %w", at.String(), err)
	}
	return nil
}

// head builds the <head> element for a page at the given path.
func (d *Document) head(at InternalPath, flat bool) (*html.Node, error) {
	head := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}

	title := &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
	title.AppendChild(&html.Node{Type: html.TextNode, Data: d.Title})
	head.AppendChild(title)

	for _, css := range d.Stylesheets {
		href, err := css.RelativePathTo(at, flat)
		if err != nil {
			return nil, fmt.Errorf("epub: stylesheet link in %s: %w", at.String(), err)
		}
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     "link",
			DataAtom: atom.Link,
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "type", Val: "text/css"},
				{Key: "href", Val: href},
			},
		})
	}
	return head, nil
}
