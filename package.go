package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	opfNamespace = "http://www.idpf.org/2007/opf"
	dcNamespace  = "http://purl.org/dc/elements/1.1/"

	// uniqueIdentifierID is the xml id given to the package identifier.
	uniqueIdentifierID = "bookid"
)

// packageEntry is one manifest item. Href is relative to the package
// document.
type packageEntry struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// hasProperty reports whether the item carries the given property.
func (e packageEntry) hasProperty(prop string) bool {
	return containsToken(e.Properties, prop)
}

// spineRef is one itemref of the spine.
type spineRef struct {
	IDRef     string
	NonLinear bool
}

// guideEntry is one ePub 2 guide reference. Href is relative to the
// package document.
type guideEntry struct {
	Type  string
	Title string
	Href  string
}

// packageData is the content of a package document. Builder fills one in
// and writes it with packageDocument; Book gets one back from
// readPackageDocument.
type packageData struct {
	Version  int
	Metadata Metadata
	Modified string // dcterms:modified, ePub 3 only
	CoverID  string // manifest id named by <meta name="cover">
	TocID    string // manifest id of the NCX
	Entries  []packageEntry
	Spine    []spineRef
	Guide    []guideEntry
}

// entry returns the manifest item with the given id.
func (p *packageData) entry(id string) (packageEntry, bool) {
	if id == "" {
		return packageEntry{}, false
	}
	for _, e := range p.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return packageEntry{}, false
}

// entryWithProperty returns the first manifest item carrying prop.
func (p *packageData) entryWithProperty(prop string) (packageEntry, bool) {
	for _, e := range p.Entries {
		if e.hasProperty(prop) {
			return e, true
		}
	}
	return packageEntry{}, false
}

// packageDocument builds the OPF package document for p.
func packageDocument(p packageData) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", opfNamespace)
	pkg.CreateAttr("unique-identifier", uniqueIdentifierID)
	pkg.CreateAttr("version", fmt.Sprintf("%d.0", p.Version))

	writeMetadata(pkg.CreateElement("metadata"), p)

	manifest := pkg.CreateElement("manifest")
	for _, e := range p.Entries {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", e.ID)
		item.CreateAttr("href", e.Href)
		item.CreateAttr("media-type", e.MediaType)
		if e.Properties != "" && p.Version == 3 {
			item.CreateAttr("properties", e.Properties)
		}
	}

	spine := pkg.CreateElement("spine")
	if p.TocID != "" {
		spine.CreateAttr("toc", p.TocID)
	}
	for _, ref := range p.Spine {
		el := spine.CreateElement("itemref")
		el.CreateAttr("idref", ref.IDRef)
		if ref.NonLinear {
			el.CreateAttr("linear", "no")
		}
	}

	if len(p.Guide) > 0 {
		guide := pkg.CreateElement("guide")
		for _, g := range p.Guide {
			el := guide.CreateElement("reference")
			el.CreateAttr("type", g.Type)
			el.CreateAttr("title", g.Title)
			el.CreateAttr("href", g.Href)
		}
	}

	doc.Indent(2)
	return doc
}

// readPackageDocument parses an OPF package document. A missing version
// attribute reads as 2.0; any version starting with "3" is ePub 3.
func readPackageDocument(data []byte) (packageData, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return packageData{}, fmt.Errorf("epub: parse package document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "package" {
		return packageData{}, fmt.Errorf("epub: package document has no <package> root: %w", ErrInvalidEPub)
	}

	version := strings.TrimSpace(root.SelectAttrValue("version", ""))
	if version == "" {
		version = "2.0"
	}
	p := packageData{Version: 2}
	if strings.HasPrefix(version, "3") {
		p.Version = 3
	}

	if md := root.SelectElement("metadata"); md != nil {
		p.readMetadata(md, root.SelectAttrValue("unique-identifier", ""))
	}
	p.Metadata.Version = version

	for _, el := range root.FindElements("manifest/item") {
		p.Entries = append(p.Entries, packageEntry{
			ID:         el.SelectAttrValue("id", ""),
			Href:       strings.TrimSpace(el.SelectAttrValue("href", "")),
			MediaType:  strings.TrimSpace(el.SelectAttrValue("media-type", "")),
			Properties: el.SelectAttrValue("properties", ""),
		})
	}

	if spine := root.SelectElement("spine"); spine != nil {
		p.TocID = spine.SelectAttrValue("toc", "")
		for _, el := range spine.SelectElements("itemref") {
			p.Spine = append(p.Spine, spineRef{
				IDRef:     el.SelectAttrValue("idref", ""),
				NonLinear: strings.TrimSpace(el.SelectAttrValue("linear", "")) == "no",
			})
		}
	}

	for _, el := range root.FindElements("guide/reference") {
		p.Guide = append(p.Guide, guideEntry{
			Type:  el.SelectAttrValue("type", ""),
			Title: el.SelectAttrValue("title", ""),
			Href:  strings.TrimSpace(el.SelectAttrValue("href", "")),
		})
	}
	return p, nil
}

// containsToken reports whether the space-separated list holds token.
func containsToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}
