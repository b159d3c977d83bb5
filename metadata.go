package epub

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// readMetadata fills p from the <metadata> element md. Dublin Core
// elements are recognised by namespace; ePub 2 attributes (opf:role,
// opf:file-as, opf:scheme) and ePub 3 refinements are both honoured.
// The identifier named by uniqueID is moved to the front.
func (p *packageData) readMetadata(md *etree.Element, uniqueID string) {
	var dc []*etree.Element
	refines := make(map[string][]*etree.Element)
	for _, el := range md.FindElements(".//*") {
		switch {
		case isDublinCore(el):
			dc = append(dc, el)
		case el.Tag != "meta":
		case el.SelectAttrValue("refines", "") != "":
			id := strings.TrimPrefix(el.SelectAttrValue("refines", ""), "#")
			refines[id] = append(refines[id], el)
		case el.SelectAttrValue("property", "") == "dcterms:modified":
			p.Modified = elementText(el)
		case strings.EqualFold(el.SelectAttrValue("name", ""), "cover"):
			p.CoverID = strings.TrimSpace(el.SelectAttrValue("content", ""))
		}
	}

	refined := func(el *etree.Element, attr, property string) string {
		if v := strings.TrimSpace(el.SelectAttrValue(attr, "")); v != "" {
			return v
		}
		id := el.SelectAttrValue("id", "")
		if id == "" {
			return ""
		}
		for _, meta := range refines[id] {
			if meta.SelectAttrValue("property", "") == property {
				if v := elementText(meta); v != "" {
					return v
				}
			}
		}
		return ""
	}

	m := &p.Metadata
	for _, el := range dc {
		value := elementText(el)
		if value == "" {
			continue
		}
		switch el.Tag {
		case "title":
			m.Titles = append(m.Titles, value)
		case "language":
			m.Language = append(m.Language, value)
		case "subject":
			m.Subjects = append(m.Subjects, value)
		case "creator":
			m.Authors = append(m.Authors, Author{
				Name:   value,
				FileAs: refined(el, "file-as", "file-as"),
				Role:   refined(el, "role", "role"),
			})
		case "identifier":
			id := Identifier{
				Value:  value,
				Scheme: refined(el, "scheme", "identifier-type"),
				ID:     el.SelectAttrValue("id", ""),
			}
			if uniqueID != "" && id.ID == uniqueID {
				m.Identifiers = append([]Identifier{id}, m.Identifiers...)
			} else {
				m.Identifiers = append(m.Identifiers, id)
			}
		case "publisher":
			setOnce(&m.Publisher, value)
		case "date":
			setOnce(&m.Date, value)
		case "description":
			setOnce(&m.Description, value)
		case "rights":
			setOnce(&m.Rights, value)
		case "source":
			setOnce(&m.Source, value)
		}
	}
}

// isDublinCore reports whether el is in the Dublin Core namespace. An
// undeclared "dc" prefix is accepted as well.
func isDublinCore(el *etree.Element) bool {
	if uri := el.NamespaceURI(); uri != "" {
		return uri == dcNamespace
	}
	return el.Space == "dc"
}

// elementText returns the character data of el with whitespace runs
// collapsed.
func elementText(el *etree.Element) string {
	return strings.Join(strings.Fields(el.Text()), " ")
}

func setOnce(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// writeMetadata fills the OPF <metadata> element. The first identifier
// becomes the package unique-identifier.
func writeMetadata(m *etree.Element, p packageData) {
	v3 := p.Version == 3
	md := p.Metadata

	m.CreateAttr("xmlns:dc", dcNamespace)
	if !v3 {
		m.CreateAttr("xmlns:opf", opfNamespace)
	}

	for i, id := range md.Identifiers {
		el := dcElement(m, "identifier", id.Value)
		xmlID := id.ID
		if i == 0 {
			xmlID = uniqueIdentifierID
		}
		if xmlID != "" {
			el.CreateAttr("id", xmlID)
		}
		switch {
		case id.Scheme == "":
		case !v3:
			el.CreateAttr("opf:scheme", id.Scheme)
		case xmlID != "":
			refine(m, xmlID, "identifier-type", id.Scheme)
		}
	}

	for _, t := range md.Titles {
		dcElement(m, "title", t)
	}
	for _, l := range md.Language {
		dcElement(m, "language", l)
	}

	for i, a := range md.Authors {
		el := dcElement(m, "creator", a.Name)
		if !v3 {
			if a.Role != "" {
				el.CreateAttr("opf:role", a.Role)
			}
			if a.FileAs != "" {
				el.CreateAttr("opf:file-as", a.FileAs)
			}
			continue
		}
		id := fmt.Sprintf("creator%d", i+1)
		el.CreateAttr("id", id)
		if a.Role != "" {
			refine(m, id, "role", a.Role).CreateAttr("scheme", "marc:relators")
		}
		if a.FileAs != "" {
			refine(m, id, "file-as", a.FileAs)
		}
	}

	for _, kv := range [][2]string{
		{"publisher", md.Publisher},
		{"date", md.Date},
		{"description", md.Description},
		{"rights", md.Rights},
		{"source", md.Source},
	} {
		if kv[1] != "" {
			dcElement(m, kv[0], kv[1])
		}
	}
	for _, s := range md.Subjects {
		dcElement(m, "subject", s)
	}

	if v3 && p.Modified != "" {
		meta := m.CreateElement("meta")
		meta.CreateAttr("property", "dcterms:modified")
		meta.SetText(p.Modified)
	}
	if p.CoverID != "" {
		meta := m.CreateElement("meta")
		meta.CreateAttr("name", "cover")
		meta.CreateAttr("content", p.CoverID)
	}
}

func dcElement(parent *etree.Element, name, value string) *etree.Element {
	el := parent.CreateElement("dc:" + name)
	el.SetText(value)
	return el
}

// refine adds an ePub 3 <meta refines="#id" property="..."> element.
func refine(parent *etree.Element, id, property, value string) *etree.Element {
	meta := parent.CreateElement("meta")
	meta.CreateAttr("refines", "#"+id)
	meta.CreateAttr("property", property)
	meta.SetText(value)
	return meta
}
