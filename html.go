package epub

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// selfClosingRawText matches <script/> and <style/>. The HTML parser
// would read everything after them as script or style text.
var selfClosingRawText = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

// parsePage parses the bytes of an (X)HTML page.
func parsePage(data []byte) (*html.Node, error) {
	data = selfClosingRawText.ReplaceAll(stripBOM(data), []byte(`<$1$2></$1>`))
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("epub: parse document: %w", err)
	}
	return doc, nil
}

// ParseDocument reads an (X)HTML document and returns its <body> as a
// content tree, along with the text of its <title>. Script and style
// elements, event handler attributes and unsafe URIs are removed.
func ParseDocument(r io.Reader) (*Node, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("epub: read document: %w", err)
	}
	doc, err := parsePage(data)
	if err != nil {
		return nil, "", err
	}

	var title string
	if t := findElement(doc, atom.Title); t != nil {
		title = FromHTML(t).PlainText()
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return NewContainer("body"), title, nil
	}
	sanitize(body)
	return FromHTML(body), title, nil
}

// findElement returns the first element with the given tag in pre-order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// stylesheetLinks returns the href of every <link rel="stylesheet"> in doc.
func stylesheetLinks(doc *html.Node) []string {
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Link {
			var rel, href string
			for _, a := range n.Attr {
				switch a.Key {
				case "rel":
					rel = a.Val
				case "href":
					href = strings.TrimSpace(a.Val)
				}
			}
			if href != "" && containsToken(strings.ToLower(rel), "stylesheet") {
				refs = append(refs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs
}

// sanitize drops script and style elements under n, and on every element
// the event handlers and the links with a scheme other than http, https,
// mailto or data:image.
func sanitize(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				n.RemoveChild(c)
				c = next
				continue
			}
			attr := c.Attr[:0]
			for _, a := range c.Attr {
				if keepAttr(a) {
					attr = append(attr, a)
				}
			}
			c.Attr = attr
		}
		sanitize(c)
		c = next
	}
}

func keepAttr(a html.Attribute) bool {
	if strings.HasPrefix(strings.ToLower(a.Key), "on") {
		return false
	}
	isLink := a.Key == "href" || a.Key == "src" || a.Key == "xlink:href"
	if !isLink {
		return true
	}
	// Browsers ignore control characters and spaces inside a scheme.
	v := strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, a.Val)
	if !hasURIScheme(v) {
		return true
	}
	scheme, _, _ := strings.Cut(strings.ToLower(v), ":")
	switch scheme {
	case "http", "https", "mailto":
		return true
	case "data":
		return strings.HasPrefix(strings.ToLower(v), "data:image/")
	}
	return false
}
