// Package epub assembles ePub 2 and ePub 3 packages and reads them back.
//
// The writing side places every artifact of a book at an [InternalPath],
// splits content documents that exceed a byte budget, derives the table of
// contents and writes the ZIP archive. The reading side opens any ePub and
// exposes its metadata, table of contents and chapters.
//
// # Building a package
//
// A [Builder] collects stylesheets, fonts, images and sections, then
// writes the archive:
//
//	b := epub.NewBuilder(epub.Metadata{Titles: []string{"Moby Dick"}})
//	css, _ := b.AddStylesheet("style.css", styleData)
//	b.AddFont(css, "serif.ttf", fontData)
//	ch1, _ := b.AddSectionHTML("Loomings", chapter1, nil)
//	b.AddSectionHTML("", part, ch1)
//	err := b.Write(out)
//
// Sections whose body renders to more than [DefaultMaxSectionBytes] (see
// [WithMaxSectionBytes]) are cut into several documents by a [Splitter];
// only the first one appears in the table of contents. Pass
// [WithFlatLayout] to put every file except META-INF/container.xml in the
// archive root.
//
// Image references in a section body are rewritten to wherever the image
// lands in the archive. [Section.LinkImage] maps a source reference to an
// image added with [Builder.AddImage]; other references resolve against
// the section's own path.
//
// # Paths
//
// [ParsePath], [ParseFixedPath] and [ResolvePath] build package paths.
// [InternalPath.RelativePathTo] gives the reference one document uses to
// reach another, and [InternalPath.FilePathInZip] the archive entry name;
// both honour the flat layout.
//
// # Content
//
// Content documents are trees of [Node] values: containers, paragraphs and
// text. [ParseDocument] imports (X)HTML, dropping scripts, styles, event
// handlers and unsafe URIs. [EstimateBytes] reports the serialized size of
// a tree exactly as it will be written.
//
// # Navigation
//
// A [NavigationTree] is the table of contents written to toc.ncx and, for
// ePub 3, nav.xhtml. [NavigationTree.Consolidate] drops untitled entries
// that lead nowhere.
//
// # Reading a package
//
// [Open] reads a file on disk and [NewReader] any [io.ReaderAt]:
//
//	book, err := epub.Open(name)
//	if err != nil {
//	    return err
//	}
//	defer book.Close()
//	for _, ch := range book.Chapters() {
//	    text, err := ch.TextContent()
//	    ...
//	}
//
// [Book.Verify] lists the references inside the package that do not reach
// a file of the archive.
//
// # Error Handling
//
// The package defines sentinel errors, always wrapped with context:
//   - [ErrInvalidPath] – malformed package path or name
//   - [ErrInvalidState] – path operation on a path without segments
//   - [ErrNoSuchNavigationTarget] – navigation parent not registered
//   - [ErrDuplicateEntry] – two artifacts map to one archive entry
//   - [ErrInvalidEPub] – structural validation failed while reading
//   - [ErrInvalidChapter] – a Chapter handle is invalid
//   - [ErrFileNotFound] – a requested file is not in the archive
//   - [ErrNoCover] – no cover image could be detected
package epub
