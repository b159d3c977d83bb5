package epub

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/atom"
)

// Verify checks that every reference made inside the package reaches a
// file of the archive: manifest items, spine and NCX ids, table of
// contents targets, and the images and stylesheets used by each chapter
// and the fonts and images used by each stylesheet. It returns one line
// per broken reference, or nil.
func (b *Book) Verify() []string {
	v := &verifier{book: b}

	for _, e := range b.pkg.Entries {
		if at := b.locate(e.Href); at == "" || b.files.lookup(at) == nil {
			v.report("manifest item %q: %s is missing", e.ID, e.Href)
		}
	}
	for _, ref := range b.pkg.Spine {
		if _, ok := b.pkg.entry(ref.IDRef); !ok {
			v.report("spine item %q is not in the manifest", ref.IDRef)
		}
	}
	if _, ok := b.pkg.entry(b.pkg.TocID); b.pkg.TocID != "" && !ok {
		v.report("spine toc %q is not in the manifest", b.pkg.TocID)
	}
	walkTOC(b.toc, func(it TOCItem) {
		if file, _ := splitFragment(it.Href); file != "" && b.files.lookup(file) == nil {
			v.report("table of contents entry %q: %s is missing", it.Title, file)
		}
	})

	for _, ch := range b.Chapters() {
		v.page(ch.Href)
	}
	for _, e := range b.pkg.Entries {
		if strings.EqualFold(e.MediaType, "text/css") {
			v.stylesheet(b.locate(e.Href))
		}
	}
	return v.problems
}

type verifier struct {
	book     *Book
	problems []string
}

func (v *verifier) report(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// page checks the images and stylesheet links of the page at name.
func (v *verifier) page(name string) {
	at, err := ParsePath(name)
	if err != nil {
		return
	}
	data, err := v.book.ReadFile(name)
	if err != nil {
		return // reported with the manifest
	}
	doc, err := parsePage(data)
	if err != nil {
		v.report("%s: %v", name, err)
		return
	}
	if body := findElement(doc, atom.Body); body != nil {
		for _, ref := range FromHTML(body).ImageRefs() {
			v.ref(at, ref)
		}
	}
	for _, ref := range stylesheetLinks(doc) {
		v.ref(at, ref)
	}
}

// stylesheet checks the url() references of the stylesheet at name.
func (v *verifier) stylesheet(name string) {
	at, err := ParsePath(name)
	if err != nil {
		return
	}
	data, err := v.book.ReadFile(name)
	if err != nil {
		return
	}
	for _, m := range cssURLPattern.FindAllSubmatch(data, -1) {
		v.ref(at, strings.TrimSpace(string(m[2])))
	}
}

// ref checks one reference made from the file at from. External
// references are not checked.
func (v *verifier) ref(from InternalPath, ref string) {
	if !isLocalRef(ref) {
		return
	}
	p, err := resolveRef(from, ref)
	if err != nil {
		v.report("%s: %q leaves the package", from.String(), ref)
		return
	}
	switch _, listed := v.book.byPath[foldName(p.String())]; {
	case v.book.files.lookup(p.String()) == nil:
		v.report("%s: %s is missing", from.String(), p.String())
	case !listed:
		v.report("%s: %s is not in the manifest", from.String(), p.String())
	}
}
