package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Book is a package read from an archive, written by Builder or by any
// other ePub 2 or 3 producer. Open and NewReader create one.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	files    *entryIndex
	closer   io.Closer // set by Open
	opfPath  InternalPath
	pkg      packageData
	byPath   map[string]packageEntry // folded archive path -> manifest item
	toc      []TOCItem
	chapters []Chapter
	warnings []string
}

// Open reads the package stored in the named file. Close releases it.
func Open(name string) (*Book, error) {
	zrc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", name, err)
	}
	b, err := load(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader reads a package from r, which holds size bytes. The caller
// keeps ownership of r.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	return load(zr, nil)
}

func load(zr *zip.Reader, closer io.Closer) (*Book, error) {
	b := &Book{files: newEntryIndex(zr.File), closer: closer}
	b.checkMimetype()

	name, err := b.files.packageDocumentName()
	if err != nil {
		return nil, err
	}
	b.opfPath, err = ParsePath(name)
	if err != nil {
		return nil, fmt.Errorf("epub: package document %q: %w", name, ErrInvalidEPub)
	}
	data, err := b.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("epub: package document: %w: %w", err, ErrInvalidEPub)
	}
	if b.pkg, err = readPackageDocument(data); err != nil {
		return nil, err
	}

	b.byPath = make(map[string]packageEntry, len(b.pkg.Entries))
	for _, e := range b.pkg.Entries {
		if at := b.locate(e.Href); at != "" {
			b.byPath[foldName(at)] = e
		}
	}
	b.toc = b.readTOC()
	return b, nil
}

func (b *Book) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// checkMimetype warns unless the archive opens with a stored "mimetype"
// entry holding the ePub media type.
func (b *Book) checkMimetype() {
	if len(b.files.files) == 0 {
		b.warn("archive is empty")
		return
	}
	first := b.files.files[0]
	if first.Name != mimetypeName {
		b.warn("first entry is %q, not %q", first.Name, mimetypeName)
		return
	}
	if first.Method != zip.Store {
		b.warn("mimetype entry is compressed")
	}
	data, err := readEntry(first, int64(len(mimetypeContent))+64)
	if err != nil {
		b.warn("mimetype entry: %v", err)
		return
	}
	if got := string(bytes.TrimSpace(data)); got != mimetypeContent {
		b.warn("mimetype is %q, want %q", got, mimetypeContent)
	}
}

// Close releases the file opened by Open. It is a no-op for a Book from
// NewReader, and safe to call twice.
func (b *Book) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// ReadFile returns the content of the archive entry name. Names match
// case-insensitively when there is no exact match.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f := b.files.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("epub: %s: %w", name, ErrFileNotFound)
	}
	return readEntry(f, maxEntrySize)
}

// Files lists the archive entries in archive order.
func (b *Book) Files() []string {
	names := make([]string, len(b.files.files))
	for i, f := range b.files.files {
		names[i] = f.Name
	}
	return names
}

// locate turns an href of the package document into an archive path, or
// "" when it does not name a file inside the archive.
func (b *Book) locate(href string) string {
	p, err := resolveRef(b.opfPath, href)
	if err != nil {
		return ""
	}
	return p.String()
}

// PackagePath returns the archive path of the package document.
func (b *Book) PackagePath() string {
	return b.opfPath.String()
}

// Metadata returns the package metadata.
func (b *Book) Metadata() Metadata {
	return copyMetadata(b.pkg.Metadata)
}

// Warnings returns the problems found while opening the package that did
// not prevent reading it.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// HasTOC reports whether the table of contents has any entry.
func (b *Book) HasTOC() bool {
	return len(b.toc) > 0
}

// TOC returns the table of contents. ePub 3 packages are read from the
// navigation document, falling back to the NCX.
func (b *Book) TOC() []TOCItem {
	return copyTOC(b.toc)
}

// readTOC reads the navigation document of an ePub 3 package, then the
// NCX named by the spine. Problems are recorded as warnings.
func (b *Book) readTOC() []TOCItem {
	var tree *NavigationTree
	if nav, ok := b.pkg.entryWithProperty("nav"); ok && b.pkg.Version == 3 {
		tree = b.readNavigation(nav, readNav)
	}
	if ncx, ok := b.pkg.entry(b.pkg.TocID); ok && tree == nil {
		tree = b.readNavigation(ncx, readNCX)
	}
	if tree == nil {
		return nil
	}

	// Positions count the spine items Chapters returns.
	spine := make(map[string]int, len(b.pkg.Spine))
	n := 0
	for _, ref := range b.pkg.Spine {
		e, ok := b.pkg.entry(ref.IDRef)
		if !ok {
			continue
		}
		if key := foldName(b.locate(e.Href)); spine[key] == 0 {
			spine[key] = n + 1
		}
		n++
	}
	return tocItems(tree.points, spine)
}

func (b *Book) readNavigation(e packageEntry, parse func([]byte, InternalPath) (*NavigationTree, error)) *NavigationTree {
	at, err := resolveRef(b.opfPath, e.Href)
	if err != nil {
		b.warn("table of contents %q: %v", e.Href, err)
		return nil
	}
	data, err := b.ReadFile(at.String())
	if err != nil {
		b.warn("table of contents: %v", err)
		return nil
	}
	tree, err := parse(data, at)
	if err != nil {
		b.warn("table of contents: %v", err)
		return nil
	}
	return tree
}

// Chapters returns the reading order. Titles come from the first table of
// contents entry pointing at each file; spine items missing from the
// manifest are skipped.
func (b *Book) Chapters() []Chapter {
	if b.chapters == nil {
		titles := make(map[string]string)
		walkTOC(b.toc, func(it TOCItem) {
			file, _ := splitFragment(it.Href)
			if _, seen := titles[foldName(file)]; file != "" && !seen {
				titles[foldName(file)] = it.Title
			}
		})
		b.chapters = make([]Chapter, 0, len(b.pkg.Spine))
		for _, ref := range b.pkg.Spine {
			e, ok := b.pkg.entry(ref.IDRef)
			if !ok {
				continue
			}
			href := b.locate(e.Href)
			b.chapters = append(b.chapters, Chapter{
				Title:  titles[foldName(href)],
				Href:   href,
				ID:     e.ID,
				Linear: !ref.NonLinear,
				book:   b,
			})
		}
	}
	return append([]Chapter(nil), b.chapters...)
}

func copyMetadata(in Metadata) Metadata {
	out := in
	out.Titles = append([]string(nil), in.Titles...)
	out.Authors = append([]Author(nil), in.Authors...)
	out.Language = append([]string(nil), in.Language...)
	out.Identifiers = append([]Identifier(nil), in.Identifiers...)
	out.Subjects = append([]string(nil), in.Subjects...)
	return out
}

func copyTOC(in []TOCItem) []TOCItem {
	if in == nil {
		return nil
	}
	out := make([]TOCItem, len(in))
	for i, it := range in {
		out[i] = it
		out[i].Children = copyTOC(it.Children)
	}
	return out
}
