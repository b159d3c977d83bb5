package epub

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

const (
	// containerPath is the mandated location of container.xml.
	containerPath = "META-INF/container.xml"

	containerNamespace = "urn:oasis:names:tc:opendocument:xmlns:container"
	opfMediaType       = "application/oebps-package+xml"
)

// containerDocument builds container.xml naming the package document at
// the archive entry opfPath.
func containerDocument(opfPath string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	c := doc.CreateElement("container")
	c.CreateAttr("version", "1.0")
	c.CreateAttr("xmlns", containerNamespace)

	rf := c.CreateElement("rootfiles").CreateElement("rootfile")
	rf.CreateAttr("full-path", opfPath)
	rf.CreateAttr("media-type", opfMediaType)

	doc.Indent(2)
	return doc
}

// readContainer returns the package document named by container.xml.
// A rootfile with the OPF media type wins over the first one listed.
func readContainer(data []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(stripBOM(data)); err != nil {
		return "", fmt.Errorf("epub: parse %s: %w", containerPath, err)
	}

	var first string
	for _, rf := range doc.FindElements("//rootfile") {
		full := strings.TrimSpace(rf.SelectAttrValue("full-path", ""))
		if full == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.SelectAttrValue("media-type", "")), opfMediaType) {
			return full, nil
		}
		if first == "" {
			first = full
		}
	}
	if first == "" {
		return "", fmt.Errorf("epub: %s names no package document: %w", containerPath, ErrInvalidEPub)
	}
	return first, nil
}

// packageDocumentName locates the package document of the archive:
// through container.xml when there is one, otherwise the first entry
// with an .opf extension.
func (x *entryIndex) packageDocumentName() (string, error) {
	if f := x.lookup(containerPath); f != nil {
		data, err := readEntry(f, maxEntrySize)
		if err != nil {
			return "", err
		}
		return readContainer(data)
	}
	for _, f := range x.files {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epub: no %s and no package document: %w", containerPath, ErrInvalidEPub)
}
