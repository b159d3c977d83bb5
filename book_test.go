package epub

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	book, err := Open(saveArchive(t, harbourFiles()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := book.PackagePath(); got != "OPS/book.opf" {
		t.Errorf("PackagePath() = %q", got)
	}
	if md := book.Metadata(); md.Version != "2.0" || !reflect.DeepEqual(md.Titles, []string{"Harbour Lights"}) {
		t.Errorf("Metadata() = %+v", md)
	}
	if w := book.Warnings(); len(w) != 0 {
		t.Errorf("Warnings() = %q", w)
	}
	if err := book.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := book.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "plain.epub")
	if err := os.WriteFile(notZip, []byte("just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{filepath.Join(dir, "absent.epub"), notZip} {
		if _, err := Open(name); err == nil {
			t.Errorf("Open(%s) succeeded", filepath.Base(name))
		}
	}
	if _, err := NewReader(strings.NewReader("PK no more"), 10); err == nil {
		t.Error("NewReader() of a broken archive succeeded")
	}
}

func TestNewReader_CloseIsNoop(t *testing.T) {
	book := openArchive(t, harbourFiles())
	if err := book.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := book.ReadFile("OPS/book.opf"); err != nil {
		t.Errorf("ReadFile() after Close() error = %v", err)
	}
}

func TestLoad_InvalidPackage(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(files map[string]string)
		isErr bool // errors.Is ErrInvalidEPub
	}{
		{"no package document", func(f map[string]string) {
			delete(f, containerPath)
			delete(f, "OPS/book.opf")
		}, true},
		{"container names a missing file", func(f map[string]string) {
			f[containerPath] = containerFor("OPS/missing.opf")
		}, true},
		{"container without rootfile", func(f map[string]string) {
			f[containerPath] = `<container><rootfiles/></container>`
		}, true},
		{"package document is not xml", func(f map[string]string) {
			f["OPS/book.opf"] = "<package"
		}, false},
		{"package document has another root", func(f map[string]string) {
			f["OPS/book.opf"] = `<html/>`
		}, true},
		{"container climbs out", func(f map[string]string) {
			f[containerPath] = containerFor("../book.opf")
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := harbourFiles()
			tt.edit(files)
			data := archive(t, files)
			_, err := NewReader(bytes.NewReader(data), int64(len(data)))
			if err == nil {
				t.Fatal("NewReader() succeeded")
			}
			if tt.isErr && !errors.Is(err, ErrInvalidEPub) {
				t.Errorf("error = %v, want ErrInvalidEPub", err)
			}
		})
	}
}

func TestLoad_PackageDocumentWithoutContainer(t *testing.T) {
	files := harbourFiles()
	delete(files, containerPath)
	files["OPS/Book.OPF"] = files["OPS/book.opf"]
	delete(files, "OPS/book.opf")

	book := openArchive(t, files)
	if got := book.PackagePath(); got != "OPS/Book.OPF" {
		t.Errorf("PackagePath() = %q", got)
	}
	if len(book.Chapters()) != 3 {
		t.Errorf("got %d chapters, want 3", len(book.Chapters()))
	}
}

func TestBook_MimetypeWarnings(t *testing.T) {
	rest := func() []testEntry {
		return []testEntry{
			{name: containerPath, data: containerFor("p.opf"), deflate: true},
			{name: "p.opf", data: `<package version="3.0"/>`, deflate: true},
		}
	}
	tests := []struct {
		name    string
		entries []testEntry
		want    []string
	}{
		{"stored first", append([]testEntry{{name: "mimetype", data: mimetypeContent}}, rest()...), nil},
		{"trailing newline", append([]testEntry{{name: "mimetype", data: mimetypeContent + "\n"}}, rest()...), nil},
		{"missing", rest(), []string{`first entry is "META-INF/container.xml", not "mimetype"`}},
		{"not first", append(rest(), testEntry{name: "mimetype", data: mimetypeContent}), []string{`first entry is "META-INF/container.xml", not "mimetype"`}},
		{"compressed", append([]testEntry{{name: "mimetype", data: mimetypeContent, deflate: true}}, rest()...), []string{"mimetype entry is compressed"}},
		{"wrong type", append([]testEntry{{name: "mimetype", data: "application/zip"}}, rest()...), []string{`mimetype is "application/zip", want "application/epub+zip"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := zipEntries(t, tt.entries...)
			book, err := NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("NewReader() error = %v", err)
			}
			if got := book.Warnings(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Warnings() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBook_ReadFile(t *testing.T) {
	files := harbourFiles()
	files["OPS/Cafe\u0301.txt"] = "decomposed"
	book := openArchive(t, files)

	tests := []struct {
		name string
		want string
	}{
		{"OPS/img/boat.png", "PNG"},
		{"ops/IMG/Boat.PNG", "PNG"},
		{"OPS/Caf\u00e9.txt", "decomposed"},
		{"OPS/pages/two b.xhtml", "<html><body><p>Land.</p></body></html>"},
	}
	for _, tt := range tests {
		got, err := book.ReadFile(tt.name)
		if err != nil || string(got) != tt.want {
			t.Errorf("ReadFile(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
	if _, err := book.ReadFile("OPS/absent.png"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile(absent) error = %v, want ErrFileNotFound", err)
	}
}

func TestBook_ReadFileUnsafeNames(t *testing.T) {
	data := zipEntries(t,
		testEntry{name: "mimetype", data: mimetypeContent},
		testEntry{name: "p.opf", data: `<package/>`},
		testEntry{name: "/etc/passwd", data: "root"},
		testEntry{name: "a/../../up.txt", data: "up"},
	)
	book, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	for _, name := range []string{"/etc/passwd", "a/../../up.txt"} {
		if _, err := book.ReadFile(name); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ReadFile(%q) error = %v, want ErrInvalidPath", name, err)
		}
	}
}

func TestBook_Files(t *testing.T) {
	book := openArchive(t, harbourFiles())
	want := []string{
		"mimetype",
		"META-INF/container.xml",
		"OPS/book.opf",
		"OPS/img/boat.png",
		"OPS/pages/notes.xhtml",
		"OPS/pages/one.xhtml",
		"OPS/pages/two b.xhtml",
		"OPS/style.css",
		"OPS/toc.ncx",
	}
	if got := book.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files() =\n%q\nwant\n%q", got, want)
	}
}

func TestBook_Chapters(t *testing.T) {
	book := openArchive(t, harbourFiles())

	type row struct {
		Title, Href, ID string
		Linear          bool
	}
	want := []row{
		{"Departure", "OPS/pages/one.xhtml", "one", true},
		{"Landfall", "OPS/pages/two b.xhtml", "two", true},
		{"", "OPS/pages/notes.xhtml", "notes", false},
	}
	var got []row
	for _, ch := range book.Chapters() {
		got = append(got, row{ch.Title, ch.Href, ch.ID, ch.Linear})
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chapters() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestBook_ReturnsCopies(t *testing.T) {
	book := openArchive(t, harbourFiles())

	md := book.Metadata()
	md.Titles[0] = "changed"
	md.Authors[0].Name = "changed"
	toc := book.TOC()
	toc[0].Children[0].Title = "changed"
	chapters := book.Chapters()
	chapters[0].Title = "changed"

	if got := book.Metadata(); got.Titles[0] != "Harbour Lights" || got.Authors[0].Name != "Mara Keel" {
		t.Errorf("Metadata() shares state: %+v", got)
	}
	if got := book.TOC()[0].Children[0].Title; got != "At sea" {
		t.Errorf("TOC() shares state: %q", got)
	}
	if got := book.Chapters()[0].Title; got != "Departure" {
		t.Errorf("Chapters() shares state: %q", got)
	}
}
