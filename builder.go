package epub

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	defaultContentDir = "OEBPS"
	defaultLanguage   = "en"
	defaultTitle      = "Untitled"

	maxSlugLength = 40
)

// containerEntry is the mandated location of container.xml.
var containerEntry = mustParseFixedPath(containerPath)

// Option configures a Builder.
type Option func(*Builder)

// WithVersion selects ePub 2 or ePub 3 output. Any value other than 2
// means 3.
func WithVersion(v int) Option {
	return func(b *Builder) { b.version = v }
}

// WithFlatLayout stores every artifact except container.xml in the archive
// root, and makes every reference a bare file name.
func WithFlatLayout(flat bool) Option {
	return func(b *Builder) { b.flat = flat }
}

// WithMaxSectionBytes sets the budget of a content document body.
// Zero or negative means DefaultMaxSectionBytes.
func WithMaxSectionBytes(n int64) Option {
	return func(b *Builder) { b.maxBytes = n }
}

// WithContentDir sets the archive folder holding the package document and
// all content. "" or "." puts it in the archive root.
func WithContentDir(dir string) Option {
	return func(b *Builder) { b.contentDir = dir }
}

// WithLogger sets the logger used while writing. A nil logger is ignored.
func WithLogger(log *zap.Logger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Section is a content document added to a Builder.
type Section struct {
	doc    *Document
	path   InternalPath
	parent *Section
	owner  *Builder
	images map[string]InternalPath // image reference -> linked image
}

// Title returns the section title.
func (s *Section) Title() string { return s.doc.Title }

// Path returns the location of the section's first document.
func (s *Section) Path() InternalPath { return s.path }

// Parent returns the section this one nests under, or nil.
func (s *Section) Parent() *Section { return s.parent }

// LinkImage makes the image reference src, as written in the section's
// content, point at image, which must have been added with AddImage.
// When the package is written every such reference is replaced by the
// path from the page holding it to the image. References that were not
// linked are resolved against the section's own location instead.
func (s *Section) LinkImage(src string, image InternalPath) error {
	if s.owner.imageIndex(image) < 0 {
		return fmt.Errorf("epub: section %q: image %s: %w", s.doc.Title, image.String(), ErrFileNotFound)
	}
	if s.images == nil {
		s.images = make(map[string]InternalPath)
	}
	s.images[strings.TrimSpace(src)] = image
	return nil
}

type resource struct {
	path InternalPath
	data []byte
}

// page is one content document placed in the archive.
type page struct {
	doc  *Document
	path InternalPath
	id   string
}

// Builder assembles an ePub package: it places every artifact, splits
// oversized sections, derives the table of contents and writes the archive.
//
// A Builder is not safe for concurrent use by multiple goroutines.
type Builder struct {
	md         Metadata
	version    int
	flat       bool
	maxBytes   int64
	contentDir string
	root       InternalPath
	log        *zap.Logger
	now        func() time.Time

	stylesheets []resource
	fonts       []resource
	images      []resource
	cover       int // index into images, -1 when unset
	sections    []*Section
	warnings    []string
	setupWarns  int // warnings recorded by NewBuilder
}

// NewBuilder returns a Builder for a package described by md. A missing
// identifier gets a random urn:uuid, a missing language "en", a missing
// title "Untitled" and a missing date today's date.
func NewBuilder(md Metadata, opts ...Option) *Builder {
	b := &Builder{
		md:         copyMetadata(md),
		version:    3,
		contentDir: defaultContentDir,
		log:        zap.NewNop(),
		now:        time.Now,
		cover:      -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.version != 2 {
		b.version = 3
	}

	if dir := strings.Trim(b.contentDir, "/"); dir != "" && dir != "." {
		root, err := ParsePath(dir + "/")
		if err != nil || root.Kind() != PathFolder {
			b.warn(fmt.Sprintf("invalid content directory %q, using %s", b.contentDir, defaultContentDir),
				zap.String("dir", b.contentDir), zap.Error(err))
			root, _ = ParsePath(defaultContentDir)
		}
		b.root = root
	}

	if len(b.md.Identifiers) == 0 {
		b.md.Identifiers = []Identifier{{Value: "urn:uuid:" + uuid.NewString(), Scheme: "UUID"}}
	}
	if len(b.md.Language) == 0 {
		b.md.Language = []string{defaultLanguage}
	}
	if len(b.md.Titles) == 0 {
		b.md.Titles = []string{defaultTitle}
	}
	if b.md.Date == "" {
		b.md.Date = b.now().Format(time.DateOnly)
	}
	b.setupWarns = len(b.warnings)
	return b
}

// Metadata returns the metadata that will be written, defaults included.
func (b *Builder) Metadata() Metadata {
	return copyMetadata(b.md)
}

// Warnings returns the non-fatal problems found so far, such as sections
// that could not be split below the budget.
func (b *Builder) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// warn records a warning and logs it with fields.
func (b *Builder) warn(text string, fields ...zap.Field) {
	b.warnings = append(b.warnings, text)
	b.log.Warn(text, fields...)
}

// place resolves name under folder of the content directory. The result
// must name a file.
func (b *Builder) place(folder, name string) (InternalPath, error) {
	p, err := ResolvePath(b.root, folder+"/"+name)
	if err != nil {
		return InternalPath{}, err
	}
	if p.Kind() != PathFile {
		return InternalPath{}, fmt.Errorf("epub: %q is not a file name: %w", name, ErrInvalidPath)
	}
	return p, nil
}

// AddStylesheet adds a stylesheet as css/<name>. Every content document
// links every stylesheet, in the order they were added.
func (b *Builder) AddStylesheet(name string, data []byte) (InternalPath, error) {
	p, err := b.place("css", name)
	if err != nil {
		return InternalPath{}, err
	}
	b.stylesheets = append(b.stylesheets, resource{path: p, data: data})
	return p, nil
}

// AddImage adds an image as images/<name>.
func (b *Builder) AddImage(name string, data []byte) (InternalPath, error) {
	p, err := b.place("images", name)
	if err != nil {
		return InternalPath{}, err
	}
	b.images = append(b.images, resource{path: p, data: data})
	return p, nil
}

// AddFont adds a font in the fonts folder next to stylesheet, so the
// stylesheet can refer to it as url(fonts/<name>). Such references are
// rewritten when the package is written in the flat layout, where the
// font and the stylesheet share the archive root.
func (b *Builder) AddFont(stylesheet InternalPath, name string, data []byte) (InternalPath, error) {
	p, err := ResolvePath(stylesheet, "fonts/"+name)
	if err != nil {
		return InternalPath{}, err
	}
	if p.Kind() != PathFile {
		return InternalPath{}, fmt.Errorf("epub: %q is not a file name: %w", name, ErrInvalidPath)
	}
	b.fonts = append(b.fonts, resource{path: p, data: data})
	return p, nil
}

// SetCover marks an image added with AddImage as the cover. The package
// gets a cover page in front of the first section.
func (b *Builder) SetCover(image InternalPath) error {
	i := b.imageIndex(image)
	if i < 0 {
		return fmt.Errorf("epub: cover %s: %w", image.String(), ErrFileNotFound)
	}
	b.cover = i
	return nil
}

// imageIndex returns the index of the image added at p, or -1.
func (b *Builder) imageIndex(p InternalPath) int {
	for i, img := range b.images {
		if img.path.Equal(p) {
			return i
		}
	}
	return -1
}

// hasResource reports whether a font or an image was added at p.
func (b *Builder) hasResource(p InternalPath) bool {
	if b.imageIndex(p) >= 0 {
		return true
	}
	for _, f := range b.fonts {
		if f.path.Equal(p) {
			return true
		}
	}
	return false
}

// SectionRef returns the reference a section document uses to reach p,
// e.g. "../images/a.png", or "a.png" in the flat layout.
func (b *Builder) SectionRef(p InternalPath) (string, error) {
	at, err := b.place("text", "section.xhtml")
	if err != nil {
		return "", err
	}
	return p.RelativePathTo(at, b.flat)
}

// AddSection adds a content document. body is the <body> element; any
// other node is wrapped in one, and an attached node is copied. A nil
// parent makes the section a top-level table of contents entry, otherwise
// it nests under parent. An empty title keeps the section out of the
// table of contents unless it has titled descendants.
func (b *Builder) AddSection(title string, body *Node, parent *Section) (*Section, error) {
	if parent != nil && parent.owner != b {
		return nil, fmt.Errorf("epub: section %q: parent is not part of this book: %w", title, ErrNoSuchNavigationTarget)
	}

	switch {
	case body == nil:
		body = NewContainer("body")
	case body.Parent() != nil:
		body = body.Clone()
	}
	if body.Kind() != ContainerNode || body.Tag() != "body" {
		wrapper := NewContainer("body")
		wrapper.AppendChild(body)
		body = wrapper
	}

	name := fmt.Sprintf("%04d-%s.xhtml", len(b.sections)+1, sectionSlug(title))
	p, err := b.place("text", name)
	if err != nil {
		return nil, err
	}

	doc := &Document{Content: body, Title: title, Type: b.docType()}
	if parent != nil {
		doc.NavParent = parent.doc
	}
	s := &Section{doc: doc, path: p, parent: parent, owner: b}
	b.sections = append(b.sections, s)
	return s, nil
}

// AddSectionHTML parses an (X)HTML document and adds its body as a
// section. An empty title is taken from the document's <title>.
func (b *Builder) AddSectionHTML(title string, r io.Reader, parent *Section) (*Section, error) {
	body, docTitle, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = docTitle
	}
	return b.AddSection(title, body, parent)
}

func (b *Builder) docType() DocType {
	if b.version == 2 {
		return DocTypeXHTML11
	}
	return DocTypeHTML5
}

// sectionSlug turns a title into a file name stem.
func sectionSlug(title string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "section"
	}
	return s
}

// Write assembles the package and writes it as a ZIP archive to w.
// Sections are split to the size budget, the table of contents is built
// from the sections and consolidated, then the entries are written:
// mimetype, container.xml, the package document, toc.ncx, nav.xhtml
// (ePub 3), stylesheets, fonts, images, the cover page and the content
// documents in reading order.
//
// Write leaves the added sections untouched and may be called again.
// Two artifacts mapping to the same entry fail with ErrDuplicateEntry.
func (b *Builder) Write(w io.Writer) error {
	opfPath, err := b.place("", "content.opf")
	if err != nil {
		return err
	}
	ncxPath, _ := b.place("", "toc.ncx")
	navPath, _ := b.place("", "nav.xhtml")

	// Split warnings are recomputed on every call.
	b.warnings = b.warnings[:b.setupWarns]
	pages, err := b.pages()
	if err != nil {
		return err
	}

	// nav.xhtml and toc.ncx share a folder, so one tree serves both.
	tree, err := b.navigation(pages, ncxPath)
	if err != nil {
		return err
	}

	pkg, err := b.packageData(pages, opfPath, ncxPath, navPath)
	if err != nil {
		return err
	}

	aw := newArchiveWriter(w)
	if err := b.writeEntries(aw, pkg, tree, pages, opfPath, ncxPath, navPath); err != nil {
		return err
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("epub: close archive: %w", err)
	}

	b.log.Info("package written",
		zap.Int("version", b.version),
		zap.Int("documents", len(pages)),
		zap.Int("warnings", len(b.warnings)))
	return nil
}

// pages lays out the content documents in reading order: the cover page,
// then each section followed by the fragments split off it. Sections are
// copied so splitting leaves them untouched.
func (b *Builder) pages() ([]page, error) {
	css := make([]InternalPath, len(b.stylesheets))
	for i, r := range b.stylesheets {
		css[i] = r.path
	}

	var pages []page
	if b.cover >= 0 {
		coverPath, err := b.place("text", "cover.xhtml")
		if err != nil {
			return nil, err
		}
		ref, err := b.SectionRef(b.images[b.cover].path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page{
			doc: &Document{
				Content:         coverPage(ref, b.md.Titles[0]),
				Title:           "Cover",
				Stylesheets:     css,
				Type:            b.docType(),
				NotInNavigation: true,
			},
			path: coverPath,
			id:   "cover-page",
		})
	}

	splitter := NewSplitter(b.maxBytes)
	copies := make(map[*Document]*Document, len(b.sections))
	for i, s := range b.sections {
		doc := &Document{
			Content:     s.doc.Content.Clone(),
			Title:       s.doc.Title,
			Stylesheets: css,
			Type:        s.doc.Type,
			NavParent:   copies[s.doc.NavParent],
		}
		copies[s.doc] = doc
		// Fragments stay in the section's folder, so links made here
		// hold for every page split off it.
		b.linkImages(s, doc.Content)

		id := fmt.Sprintf("s%04d", i+1)
		pages = append(pages, page{doc: doc, path: s.path, id: id})

		frags := splitter.Split(doc)
		if len(frags) > 0 {
			b.log.Debug("section split",
				zap.String("file", s.path.String()),
				zap.Int("documents", len(frags)+1))
		}
		stem := strings.TrimSuffix(s.path.Name(), path.Ext(s.path.Name()))
		for k, f := range frags {
			fp, err := ResolvePath(s.path, fmt.Sprintf("%s-%02d.xhtml", stem, k+1))
			if err != nil {
				return nil, err
			}
			pages = append(pages, page{doc: f, path: fp, id: fmt.Sprintf("%s-%02d", id, k+1)})
		}

		for _, d := range append([]*Document{doc}, frags...) {
			if splitter.NeedsSplit(d) {
				size := EstimateBytes(d.Content)
				b.warn(fmt.Sprintf("section %q: content of %d bytes cannot be split below %d bytes", s.doc.Title, size, splitter.budget()),
					zap.String("file", s.path.String()),
					zap.Int64("bytes", size),
					zap.Int64("limit", splitter.budget()))
			}
		}
	}
	return pages, nil
}

// linkImages points the image references in body, a copy of section s,
// at the package images.
func (b *Builder) linkImages(s *Section, body *Node) {
	rewriteImageRefs(body, func(ref string) (string, bool) {
		img, ok := s.images[ref]
		if !ok {
			p, err := resolveRef(s.path, ref)
			if err != nil || b.imageIndex(p) < 0 {
				b.warn(fmt.Sprintf("section %q: image %q is not part of the package", s.doc.Title, ref),
					zap.String("file", s.path.String()),
					zap.String("src", ref))
				return "", false
			}
			img = p
		}
		out, err := img.RelativePathTo(s.path, b.flat)
		return out, err == nil
	})
}

// cssURLPattern matches a url() token of a stylesheet.
var cssURLPattern = regexp.MustCompile(`url\(\s*(["']?)([^"')]+)["']?\s*\)`)

// stylesheetData returns the bytes written for css: every url() naming a
// font or an image of the package is made relative to where the
// stylesheet ends up. Other references are kept as they are.
func (b *Builder) stylesheetData(css resource) []byte {
	return cssURLPattern.ReplaceAllFunc(css.data, func(m []byte) []byte {
		sub := cssURLPattern.FindSubmatch(m)
		ref := strings.TrimSpace(string(sub[2]))
		p, err := resolveRef(css.path, ref)
		if err != nil || !b.hasResource(p) {
			return m
		}
		out, err := p.RelativePathTo(css.path, b.flat)
		if err != nil {
			return m
		}
		if _, frag := splitFragment(ref); frag != "" {
			out += "#" + frag
		}
		if out == ref {
			return m
		}
		quote := string(sub[1])
		return []byte("url(" + quote + out + quote + ")")
	})
}

// navigation builds the table of contents from the pages that are
// navigation targets. Targets are relative to tocPath.
func (b *Builder) navigation(pages []page, tocPath InternalPath) (*NavigationTree, error) {
	tree := &NavigationTree{}
	targets := make(map[*Document]string, len(pages))
	for _, pg := range pages {
		if pg.doc.NotInNavigation {
			continue
		}
		target, err := pg.path.RelativePathTo(tocPath, b.flat)
		if err != nil {
			return nil, err
		}
		targets[pg.doc] = target

		if pg.doc.NavParent == nil {
			tree.AddPoint(target, pg.doc.Title)
			continue
		}
		if _, err := tree.AddSubPoint(targets[pg.doc.NavParent], target, pg.doc.Title); err != nil {
			return nil, err
		}
	}
	tree.Consolidate()
	return tree, nil
}

// packageData lists every manifest item with hrefs relative to the
// package document.
func (b *Builder) packageData(pages []page, opfPath, ncxPath, navPath InternalPath) (packageData, error) {
	pkg := packageData{
		Version:  b.version,
		Metadata: b.md,
		Modified: b.now().UTC().Format("2006-01-02T15:04:05Z"),
		TocID:    "ncx",
	}

	var firstErr error
	href := func(p InternalPath) string {
		h, err := p.RelativePathTo(opfPath, b.flat)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return h
	}
	add := func(id string, p InternalPath, props string) {
		pkg.Entries = append(pkg.Entries, packageEntry{
			ID:         id,
			Href:       href(p),
			MediaType:  mediaTypeOf(p.Name()),
			Properties: props,
		})
	}

	add("ncx", ncxPath, "")
	if b.version == 3 {
		add("nav", navPath, "nav")
	}
	for i, r := range b.stylesheets {
		add(fmt.Sprintf("css-%d", i+1), r.path, "")
	}
	for i, r := range b.fonts {
		add(fmt.Sprintf("font-%d", i+1), r.path, "")
	}
	for i, r := range b.images {
		id := fmt.Sprintf("img-%d", i+1)
		props := ""
		if i == b.cover {
			pkg.CoverID, props = id, "cover-image"
		}
		add(id, r.path, props)
	}
	for _, pg := range pages {
		add(pg.id, pg.path, "")
		pkg.Spine = append(pkg.Spine, spineRef{IDRef: pg.id})
	}

	for _, pg := range pages {
		if pg.id == "cover-page" {
			pkg.Guide = append(pkg.Guide, guideEntry{Type: "cover", Title: "Cover", Href: href(pg.path)})
			continue
		}
		pkg.Guide = append(pkg.Guide, guideEntry{Type: "text", Title: pg.doc.Title, Href: href(pg.path)})
		break
	}
	return pkg, firstErr
}

func (b *Builder) writeEntries(aw *archiveWriter, pkg packageData, tree *NavigationTree, pages []page, opfPath, ncxPath, navPath InternalPath) error {
	zipName := func(p InternalPath) string {
		// Only the zero path fails, and none is placed.
		name, _ := p.FilePathInZip(b.flat)
		return name
	}

	if err := aw.writeMimetype(); err != nil {
		return err
	}
	if err := aw.writeXML(zipName(containerEntry), containerDocument(zipName(opfPath))); err != nil {
		return err
	}
	if err := aw.writeXML(zipName(opfPath), packageDocument(pkg)); err != nil {
		return err
	}

	uid, title := b.md.Identifiers[0].Value, b.md.Titles[0]
	if err := aw.writeXML(zipName(ncxPath), ncxTOC(tree, uid, title)); err != nil {
		return err
	}
	if b.version == 3 {
		if err := aw.writeXML(zipName(navPath), navTOC(tree, title)); err != nil {
			return err
		}
	}

	for _, r := range b.stylesheets {
		if err := aw.writeFile(zipName(r.path), b.stylesheetData(r)); err != nil {
			return err
		}
	}
	for _, group := range [][]resource{b.fonts, b.images} {
		for _, r := range group {
			if err := aw.writeFile(zipName(r.path), r.data); err != nil {
				return err
			}
		}
	}

	for _, pg := range pages {
		fw, err := aw.create(zipName(pg.path))
		if err != nil {
			return err
		}
		if err := pg.doc.Render(fw, pg.path, b.flat); err != nil {
			return err
		}
	}
	return nil
}
