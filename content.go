package epub

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeKind is the variant of a content Node.
type NodeKind uint8

const (
	// ContainerNode is a generic element that holds block or inline
	// children (body, section, div, span, em, a, img, ...).
	ContainerNode NodeKind = iota
	// ParagraphNode is a paragraph-like element whose children are inline
	// content (p, h1-h6, li, ...).
	ParagraphNode
	// TextNode is a run of character data.
	TextNode
)

// String returns the lowercase name of the kind.
func (k NodeKind) String() string {
	switch k {
	case ContainerNode:
		return "container"
	case ParagraphNode:
		return "paragraph"
	case TextNode:
		return "text"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Node is one node of a content document. Element nodes (containers and
// paragraphs) have a tag, attributes and ordered children; text nodes hold
// a string. A node belongs to at most one parent.
//
// A Node is not safe for concurrent use.
type Node struct {
	kind     NodeKind
	tag      string
	ns       string // "svg" or "math" for foreign content
	attr     []html.Attribute
	text     string
	parent   *Node
	children []*Node
}

// NewContainer returns a container element with the given tag.
func NewContainer(tag string, attr ...html.Attribute) *Node {
	return &Node{kind: ContainerNode, tag: strings.ToLower(tag), attr: copyAttrs(attr)}
}

// NewParagraph returns a paragraph-like element with the given tag.
// An empty tag means "p".
func NewParagraph(tag string, attr ...html.Attribute) *Node {
	if tag == "" {
		tag = "p"
	}
	return &Node{kind: ParagraphNode, tag: strings.ToLower(tag), attr: copyAttrs(attr)}
}

// NewText returns a text node.
func NewText(s string) *Node {
	return &Node{kind: TextNode, text: s}
}

// Kind returns the variant of n.
func (n *Node) Kind() NodeKind { return n.kind }

// Tag returns the element name, or "" for text.
func (n *Node) Tag() string { return n.tag }

// Text returns the payload of a text node, or "" for elements.
func (n *Node) Text() string { return n.text }

// SetText replaces the payload of a text node.
func (n *Node) SetText(s string) {
	if n.kind == TextNode {
		n.text = s
	}
}

// Attr returns a copy of the element attributes.
func (n *Node) Attr() []html.Attribute { return copyAttrs(n.attr) }

// AttrValue returns the value of the attribute key, or "".
func (n *Node) AttrValue(key string) string {
	for _, a := range n.attr {
		if a.Key == key && a.Namespace == "" {
			return a.Val
		}
	}
	return ""
}

// Parent returns the parent of n, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return append([]*Node(nil), n.children...) }

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// voidTags are the HTML elements that are written without an end tag and
// therefore cannot hold children.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// AppendChild adds c as the last child of n.
// It panics if c already has a parent, if n is a text node or if n is a
// void element such as img or br.
func (n *Node) AppendChild(c *Node) {
	if n.kind == TextNode {
		panic("epub: AppendChild called on a text node")
	}
	if voidTags[n.tag] {
		panic("epub: AppendChild called on void element <" + n.tag + ">")
	}
	if c.parent != nil {
		panic("epub: AppendChild called for an attached child Node")
	}
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveChild removes c from the children of n.
// It panics if c is not a child of n.
func (n *Node) RemoveChild(c *Node) {
	if c.parent != n {
		panic("epub: RemoveChild called for a non-child Node")
	}
	for i, k := range n.children {
		if k == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	c.parent = nil
}

// detachChildren removes and returns every child of n.
func (n *Node) detachChildren() []*Node {
	kids := n.children
	n.children = nil
	for _, c := range kids {
		c.parent = nil
	}
	return kids
}

// Root walks parent links up to the top of the tree.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// BelongsTo reports whether n is root itself or one of its descendants.
func (n *Node) BelongsTo(root *Node) bool {
	for c := n; c != nil; c = c.parent {
		if c == root {
			return true
		}
	}
	return false
}

// CloneEmpty returns a detached copy of n without children. For text
// nodes the payload is copied.
func (n *Node) CloneEmpty() *Node {
	return &Node{kind: n.kind, tag: n.tag, ns: n.ns, attr: copyAttrs(n.attr), text: n.text}
}

// Clone returns a detached deep copy of n.
func (n *Node) Clone() *Node {
	c := n.CloneEmpty()
	for _, k := range n.children {
		c.AppendChild(k.Clone())
	}
	return c
}

// TextContent concatenates the text of n and all its descendants.
func (n *Node) TextContent() string {
	if n.kind == TextNode {
		return n.text
	}
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n.kind == TextNode {
		sb.WriteString(n.text)
		return
	}
	for _, c := range n.children {
		c.writeText(sb)
	}
}

// lineTags are the containers that start a new line in plain text.
var lineTags = map[atom.Atom]bool{
	atom.Body:       true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Aside:      true,
	atom.Header:     true,
	atom.Footer:     true,
	atom.Nav:        true,
	atom.Figure:     true,
	atom.Blockquote: true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Dl:         true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Br:         true,
	atom.Hr:         true,
}

// PlainText returns the text of n with one line per paragraph or block.
// Whitespace runs collapse to a single space and empty lines are dropped.
func (n *Node) PlainText() string {
	var (
		lines []string
		line  strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}
	var walk func(*Node)
	walk = func(n *Node) {
		if n.kind == TextNode {
			line.WriteString(n.text)
			return
		}
		block := n.kind == ParagraphNode || lineTags[atom.Lookup([]byte(n.tag))]
		if block {
			flush()
		}
		for _, c := range n.children {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(n)
	flush()
	return strings.Join(lines, "\n")
}

// find returns the first element in pre-order, n included, for which
// match reports true.
func (n *Node) find(match func(*Node) bool) *Node {
	if n.kind != TextNode && match(n) {
		return n
	}
	for _, c := range n.children {
		if found := c.find(match); found != nil {
			return found
		}
	}
	return nil
}

// Render writes the serialized form of n. This is the exact byte sequence
// used inside written content documents, so its length is what
// EstimateBytes reports.
func (n *Node) Render(w io.Writer) error {
	return html.Render(w, n.toHTML())
}

// toHTML converts n into a detached x/net/html tree.
func (n *Node) toHTML() *html.Node {
	if n.kind == TextNode {
		return &html.Node{Type: html.TextNode, Data: n.text}
	}
	h := &html.Node{
		Type:      html.ElementNode,
		Data:      n.tag,
		DataAtom:  atom.Lookup([]byte(n.tag)),
		Namespace: n.ns,
		Attr:      copyAttrs(n.attr),
	}
	for _, c := range n.children {
		h.AppendChild(c.toHTML())
	}
	return h
}

func copyAttrs(attr []html.Attribute) []html.Attribute {
	if len(attr) == 0 {
		return nil
	}
	return append([]html.Attribute(nil), attr...)
}

// paragraphTags are the elements imported as ParagraphNode: blocks whose
// children are inline content and that read naturally when cut in two.
var paragraphTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.Pre:        true,
	atom.Caption:    true,
	atom.Figcaption: true,
	atom.Td:         true,
	atom.Th:         true,
}

// FromHTML converts an x/net/html subtree into a detached content tree.
// Element nodes become containers or paragraphs depending on their tag,
// text nodes become text; comments, doctypes and other node types are
// dropped, as are children of void elements, which only foreign content
// can produce. A document node is converted through its children and returns
// a "body" container holding them.
func FromHTML(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		return NewText(h.Data)
	case html.ElementNode:
		var n *Node
		if paragraphTags[h.DataAtom] || h.DataAtom == atom.Blockquote && inlineOnly(h) {
			n = NewParagraph(h.Data, h.Attr...)
		} else {
			n = NewContainer(h.Data, h.Attr...)
		}
		// Foreign elements keep their adjusted case (e.g. foreignObject).
		n.tag, n.ns = h.Data, h.Namespace
		appendHTMLChildren(n, h)
		return n
	case html.DocumentNode:
		n := NewContainer("body")
		appendHTMLChildren(n, h)
		return n
	default:
		return nil
	}
}

func appendHTMLChildren(n *Node, h *html.Node) {
	if voidTags[n.tag] {
		return
	}
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if k := FromHTML(c); k != nil {
			n.AppendChild(k)
		}
	}
}

// inlineOnly reports whether h has no block-level element children.
func inlineOnly(h *html.Node) bool {
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom != atom.Br && (lineTags[c.DataAtom] || paragraphTags[c.DataAtom]) {
			return false
		}
	}
	return true
}
