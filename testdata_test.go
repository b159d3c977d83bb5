package epub

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// testEntry is one file of a hand-made archive.
type testEntry struct {
	name    string
	data    string
	deflate bool
}

// zipEntries writes entries in order. Entries are stored unless deflate
// is set.
func zipEntries(t testing.TB, entries ...testEntry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		method := zip.Store
		if e.deflate {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.data)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// archive lays files out the way a producer would: the mimetype entry
// first and stored, the others deflated in name order.
func archive(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		if name != mimetypeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []testEntry
	if mt, ok := files[mimetypeName]; ok {
		entries = append(entries, testEntry{name: mimetypeName, data: mt})
	}
	for _, name := range names {
		entries = append(entries, testEntry{name: name, data: files[name], deflate: true})
	}
	return zipEntries(t, entries...)
}

// openArchive reads files back as a Book.
func openArchive(t testing.TB, files map[string]string) *Book {
	t.Helper()
	data := archive(t, files)
	book, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return book
}

// saveArchive stores files as an archive on disk for Open.
func saveArchive(t testing.TB, files map[string]string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(name, archive(t, files), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return name
}

// containerFor returns a container.xml naming the package document opf.
func containerFor(opf string) string {
	return `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="` + opf + `" media-type="application/oebps-package+xml"/></rootfiles>
</container>`
}

// harbourFiles is an ePub 2 package as another producer would write it:
// the package document lives in OPS/, its pages in OPS/pages/, and the
// spine names an item the manifest lacks.
func harbourFiles() map[string]string {
	return map[string]string{
		mimetypeName:  mimetypeContent,
		containerPath: containerFor("OPS/book.opf"),
		"OPS/book.opf": `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="isbn">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Harbour Lights</dc:title>
    <dc:creator opf:role="aut" opf:file-as="Keel, Mara">Mara Keel</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="isbn" opf:scheme="ISBN">978-0-00-000000-1</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="one" href="pages/one.xhtml" media-type="application/xhtml+xml"/>
    <item id="two" href="pages/two%20b.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="pages/notes.xhtml" media-type="application/xhtml+xml"/>
    <item id="boat" href="img/boat.png" media-type="image/png"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="one"/>
    <itemref idref="ghost"/>
    <itemref idref="two"/>
    <itemref idref="notes" linear="no"/>
  </spine>
</package>`,
		"OPS/toc.ncx": `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1"><navLabel><text>Departure</text></navLabel><content src="pages/one.xhtml"/>
      <navPoint id="p2"><navLabel><text> At
        sea </text></navLabel><content src="pages/one.xhtml#sea"/></navPoint>
    </navPoint>
    <navPoint id="p3"><navLabel><text>Landfall</text></navLabel><content src="pages/two%20b.xhtml"/></navPoint>
  </navMap>
</ncx>`,
		"OPS/style.css": `body { background: url(img/boat.png) }`,
		"OPS/pages/one.xhtml": `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>One</title>
<link rel="stylesheet" type="text/css" href="../style.css"/><style>p { margin: 0 }</style></head>
<body><h1>Departure</h1><p>The ship   left at dawn.</p><p id="sea">Waves <em>everywhere</em>.</p>
<p><img src="../img/boat.png" alt="boat"/></p><script>alert(1)</script></body></html>`,
		"OPS/pages/two b.xhtml": `<html><body><p>Land.</p></body></html>`,
		"OPS/pages/notes.xhtml": "\ufeff<html><body><p>Notes.</p></body></html>",
		"OPS/img/boat.png":      "PNG",
	}
}

// writeBook writes b and reads the result back.
func writeBook(t testing.TB, b *Builder) (*Book, []byte) {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := b.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	book, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return book, buf.Bytes()
}

// mustParse parses s as a package path.
func mustParse(t testing.TB, s string) InternalPath {
	t.Helper()
	p, err := ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}

// paragraphs returns a body holding n paragraphs of text.
func paragraphs(n int, text string) *Node {
	body := NewContainer("body")
	for range n {
		p := NewParagraph("p")
		p.AppendChild(NewText(text))
		body.AppendChild(p)
	}
	return body
}
