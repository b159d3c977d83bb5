package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

func TestEntryIndex_Lookup(t *testing.T) {
	x := entryIndexOf(t,
		testEntry{name: "OEBPS/Text/One.xhtml", data: "first"},
		testEntry{name: "oebps/text/one.xhtml", data: "second"},
		testEntry{name: "OEBPS/Cafe\u0301.css", data: "css"},
	)
	tests := []struct {
		name string
		want string // data of the entry found, "" for none
	}{
		{"OEBPS/Text/One.xhtml", "first"},
		{"oebps/text/one.xhtml", "second"},
		{"OEBPS/TEXT/ONE.XHTML", "first"},
		{"oebps/caf\u00e9.css", "css"},
		{"OEBPS/Text/Two.xhtml", ""},
	}
	for _, tt := range tests {
		f := x.lookup(tt.name)
		var got string
		if f != nil {
			data, err := readEntry(f, 100)
			if err != nil {
				t.Fatalf("readEntry(%s): %v", f.Name, err)
			}
			got = string(data)
		}
		if got != tt.want {
			t.Errorf("lookup(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFoldName(t *testing.T) {
	if a, b := foldName("A/Cafe\u0301.CSS"), foldName("a/caf\u00e9.css"); a != b {
		t.Errorf("foldName() = %q and %q, want equal", a, b)
	}
}

func TestReadEntry_Limit(t *testing.T) {
	x := entryIndexOf(t, testEntry{name: "big.txt", data: strings.Repeat("z", 64), deflate: true})
	f := x.lookup("big.txt")

	if data, err := readEntry(f, 64); err != nil || len(data) != 64 {
		t.Errorf("readEntry(limit 64) = %d bytes, %v", len(data), err)
	}
	if _, err := readEntry(f, 63); err == nil {
		t.Error("readEntry() read past its limit")
	}

	// A header that understates the size fails while reading.
	f.UncompressedSize64 = 1
	if _, err := readEntry(f, 10); err == nil {
		t.Error("readEntry() trusted an understated size")
	}
}

func TestStripBOM(t *testing.T) {
	tests := []struct{ in, want string }{
		{"\ufeff<a/>", "<a/>"},
		{"<a/>", "<a/>"},
		{"\ufeff", ""},
		{"\xef\xbb", "\xef\xbb"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := string(stripBOM([]byte(tt.in))); got != tt.want {
			t.Errorf("stripBOM(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArchiveWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	aw := newArchiveWriter(buf)
	if err := aw.writeMimetype(); err != nil {
		t.Fatalf("writeMimetype: %v", err)
	}
	if err := aw.writeFile("OEBPS/a.txt", []byte("alpha")); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	doc := etree.NewDocument()
	doc.CreateElement("root").SetText("x")
	if err := aw.writeXML("OEBPS/b.xml", doc); err != nil {
		t.Fatalf("writeXML: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("got %d entries, want 3", len(zr.File))
	}
	mt := zr.File[0]
	if mt.Name != mimetypeName || mt.Method != zip.Store || mt.Flags&0x8 != 0 {
		t.Errorf("mimetype entry = %s, method %d, flags %#x", mt.Name, mt.Method, mt.Flags)
	}
	// The media type must sit at offset 38 for magic-number sniffing.
	if got := buf.String()[38 : 38+len(mimetypeContent)]; got != mimetypeContent {
		t.Errorf("bytes at offset 38 = %q", got)
	}
	for _, f := range zr.File[1:] {
		if f.Method != zip.Deflate {
			t.Errorf("%s is not deflated", f.Name)
		}
	}
	if data, _ := readEntry(zr.File[2], 100); string(data) != "<root>x</root>" {
		t.Errorf("xml entry = %q", data)
	}
}

func TestArchiveWriter_DuplicateEntry(t *testing.T) {
	aw := newArchiveWriter(new(bytes.Buffer))
	if err := aw.writeFile("Text/A.xhtml", nil); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	for _, name := range []string{"Text/A.xhtml", "text/a.XHTML"} {
		if err := aw.writeFile(name, nil); !errors.Is(err, ErrDuplicateEntry) {
			t.Errorf("writeFile(%s) error = %v, want ErrDuplicateEntry", name, err)
		}
	}
}
