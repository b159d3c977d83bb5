package epub

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const ncxNamespace = "http://www.daisy.org/z3986/2005/ncx/"

// ncxTOC builds the NCX document for tree. Targets in tree are relative
// to the NCX location.
func ncxTOC(tree *NavigationTree, uid, title string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", ncxNamespace)
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	for _, kv := range [][2]string{
		{"dtb:uid", uid},
		{"dtb:depth", strconv.Itoa(tree.Depth())},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", kv[0])
		meta.CreateAttr("content", kv[1])
	}
	ncx.CreateElement("docTitle").CreateElement("text").SetText(title)

	navMap := ncx.CreateElement("navMap")
	order := 0
	var add func(parent *etree.Element, points []*NavPoint)
	add = func(parent *etree.Element, points []*NavPoint) {
		for _, p := range points {
			order++
			np := parent.CreateElement("navPoint")
			np.CreateAttr("id", "navPoint-"+strconv.Itoa(order))
			np.CreateAttr("playOrder", strconv.Itoa(order))
			np.CreateElement("navLabel").CreateElement("text").SetText(p.Label)
			np.CreateElement("content").CreateAttr("src", p.Target)
			add(np, p.children)
		}
	}
	add(navMap, tree.points)

	doc.Indent(2)
	return doc
}

// navTOC builds the ePub 3 nav document for tree. Targets in tree are
// relative to the nav document. A point without a label is written as a
// <span> heading carrying the label of its first labelled descendant.
func navTOC(tree *NavigationTree, title string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective("DOCTYPE html")

	root := doc.CreateElement("html")
	root.CreateAttr("xmlns", xhtmlNamespace)
	root.CreateAttr("xmlns:epub", opsNamespace)
	root.CreateElement("head").CreateElement("title").SetText(title)

	nav := root.CreateElement("body").CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateElement("h1").SetText(title)

	var add func(parent *etree.Element, points []*NavPoint)
	add = func(parent *etree.Element, points []*NavPoint) {
		if len(points) == 0 {
			return
		}
		ol := parent.CreateElement("ol")
		for _, p := range points {
			li := ol.CreateElement("li")
			if p.Label != "" {
				a := li.CreateElement("a")
				a.CreateAttr("href", p.Target)
				a.SetText(p.Label)
			} else {
				li.CreateElement("span").SetText(firstLabel(p.children))
			}
			add(li, p.children)
		}
	}
	add(nav, tree.points)

	doc.Indent(2)
	return doc
}

// firstLabel returns the first non-empty label in pre-order.
func firstLabel(points []*NavPoint) string {
	for _, p := range flattenNavPoints(nil, points) {
		if p.Label != "" {
			return p.Label
		}
	}
	return ""
}

// readNCX reads the navMap of an NCX document located at at. Targets
// become archive paths, keeping their fragment.
func readNCX(data []byte, at InternalPath) (*NavigationTree, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return nil, fmt.Errorf("epub: parse %s: %w", at.String(), err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "ncx" {
		return nil, fmt.Errorf("epub: %s is not an NCX document: %w", at.String(), ErrInvalidEPub)
	}
	tree := &NavigationTree{}
	if navMap := root.SelectElement("navMap"); navMap != nil {
		tree.points = ncxPoints(navMap, at)
	}
	return tree, nil
}

func ncxPoints(parent *etree.Element, at InternalPath) []*NavPoint {
	var points []*NavPoint
	for _, el := range parent.SelectElements("navPoint") {
		p := &NavPoint{children: ncxPoints(el, at)}
		if text := el.FindElement("navLabel/text"); text != nil {
			p.Label = elementText(text)
		}
		if content := el.SelectElement("content"); content != nil {
			p.Target = resolveTarget(at, content.SelectAttrValue("src", ""))
		}
		points = append(points, p)
	}
	return points
}

// readNav reads the toc nav of an ePub 3 navigation document located at
// at. An entry whose label is a <span> has no target.
func readNav(data []byte, at InternalPath) (*NavigationTree, error) {
	body, _, err := ParseDocument(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	nav := body.find(func(n *Node) bool {
		return n.tag == "nav" && containsToken(n.AttrValue("epub:type"), "toc")
	})
	if nav == nil {
		return nil, fmt.Errorf("epub: %s has no toc nav: %w", at.String(), ErrInvalidEPub)
	}
	tree := &NavigationTree{}
	if ol := nav.find(func(n *Node) bool { return n.tag == "ol" }); ol != nil {
		tree.points = navPoints(ol, at)
	}
	return tree, nil
}

func navPoints(ol *Node, at InternalPath) []*NavPoint {
	var points []*NavPoint
	for _, li := range ol.children {
		if li.tag != "li" {
			continue
		}
		p := &NavPoint{}
		for _, c := range li.children {
			switch c.tag {
			case "a":
				if p.Target == "" {
					p.Target = resolveTarget(at, c.AttrValue("href"))
					p.Label = nodeLabel(c)
				}
			case "span":
				if p.Label == "" {
					p.Label = nodeLabel(c)
				}
			case "ol":
				p.children = navPoints(c, at)
			}
		}
		points = append(points, p)
	}
	return points
}

func nodeLabel(n *Node) string {
	return strings.Join(strings.Fields(n.TextContent()), " ")
}

// resolveTarget turns a reference made from the document at at into an
// archive path with the fragment kept. Empty, external and escaping
// references yield "".
func resolveTarget(at InternalPath, ref string) string {
	ref = strings.TrimSpace(ref)
	file, frag := splitFragment(ref)
	if file == "" && frag != "" {
		return at.String() + "#" + frag
	}
	p, err := resolveRef(at, ref)
	if err != nil {
		return ""
	}
	if frag != "" {
		return p.String() + "#" + frag
	}
	return p.String()
}

// tocItems converts navigation points read from a package. spine maps
// folded archive paths to spine positions plus one.
func tocItems(points []*NavPoint, spine map[string]int) []TOCItem {
	if len(points) == 0 {
		return nil
	}
	items := make([]TOCItem, len(points))
	for i, p := range points {
		items[i] = TOCItem{
			Title:      p.Label,
			Href:       p.Target,
			SpineIndex: -1,
			Children:   tocItems(p.children, spine),
		}
		if file, _ := splitFragment(p.Target); file != "" {
			if at := spine[foldName(file)]; at > 0 {
				items[i].SpineIndex = at - 1
			}
		}
	}
	return items
}

// walkTOC calls fn for every item in pre-order.
func walkTOC(items []TOCItem, fn func(TOCItem)) {
	for _, it := range items {
		fn(it)
		walkTOC(it.Children, fn)
	}
}
