package epub

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestReadPackageDocument(t *testing.T) {
	p, err := readPackageDocument([]byte(harbourFiles()["OPS/book.opf"]))
	if err != nil {
		t.Fatalf("readPackageDocument() error = %v", err)
	}
	if p.Version != 2 || p.Metadata.Version != "2.0" || p.TocID != "ncx" {
		t.Errorf("version %d (%q), toc %q", p.Version, p.Metadata.Version, p.TocID)
	}
	if len(p.Entries) != 6 {
		t.Fatalf("got %d manifest items, want 6", len(p.Entries))
	}
	if e, ok := p.entry("two"); !ok || e.Href != "pages/two%20b.xhtml" || e.MediaType != "application/xhtml+xml" {
		t.Errorf("entry(two) = %+v, %v", e, ok)
	}
	if _, ok := p.entry(""); ok {
		t.Error("entry(\"\") found an item")
	}
	want := []spineRef{{IDRef: "one"}, {IDRef: "ghost"}, {IDRef: "two"}, {IDRef: "notes", NonLinear: true}}
	if !reflect.DeepEqual(p.Spine, want) {
		t.Errorf("Spine = %+v, want %+v", p.Spine, want)
	}
}

func TestReadPackageDocument_Versions(t *testing.T) {
	tests := []struct {
		attr    string
		version int
		raw     string
	}{
		{``, 2, "2.0"},
		{`version="2.0.1"`, 2, "2.0.1"},
		{`version="3.0"`, 3, "3.0"},
		{`version=" 3.1 "`, 3, "3.1"},
	}
	for _, tt := range tests {
		p, err := readPackageDocument([]byte(`<package ` + tt.attr + `/>`))
		if err != nil {
			t.Fatalf("%s: %v", tt.attr, err)
		}
		if p.Version != tt.version || p.Metadata.Version != tt.raw {
			t.Errorf("%s: version = %d %q, want %d %q", tt.attr, p.Version, p.Metadata.Version, tt.version, tt.raw)
		}
	}
}

func TestReadPackageDocument_GuideAndProperties(t *testing.T) {
	p, err := readPackageDocument([]byte(`<?xml version="1.0"?>
<opf:package xmlns:opf="http://www.idpf.org/2007/opf" version="3.0">
  <opf:manifest>
    <opf:item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="scripted nav"/>
    <opf:item id="pic" href=" art/front.jpg " media-type="image/jpeg" properties="cover-image"/>
  </opf:manifest>
  <opf:guide>
    <opf:reference type="cover" title="Front" href="front.xhtml"/>
    <opf:reference type="toc" title="Contents" href="nav.xhtml#toc"/>
  </opf:guide>
</opf:package>`))
	if err != nil {
		t.Fatalf("readPackageDocument() error = %v", err)
	}
	if e, ok := p.entryWithProperty("nav"); !ok || e.ID != "nav" {
		t.Errorf("entryWithProperty(nav) = %+v, %v", e, ok)
	}
	if e, ok := p.entryWithProperty("cover-image"); !ok || e.Href != "art/front.jpg" {
		t.Errorf("entryWithProperty(cover-image) = %+v, %v", e, ok)
	}
	if _, ok := p.entryWithProperty("scripted nav"); ok {
		t.Error("a property list matched as one token")
	}
	want := []guideEntry{
		{Type: "cover", Title: "Front", Href: "front.xhtml"},
		{Type: "toc", Title: "Contents", Href: "nav.xhtml#toc"},
	}
	if !reflect.DeepEqual(p.Guide, want) {
		t.Errorf("Guide = %+v, want %+v", p.Guide, want)
	}
}

func TestReadPackageDocument_Invalid(t *testing.T) {
	if _, err := readPackageDocument([]byte(`<package><metadata></package>`)); err == nil {
		t.Error("malformed XML was accepted")
	}
	for _, doc := range []string{``, `<ncx/>`} {
		if _, err := readPackageDocument([]byte(doc)); !errors.Is(err, ErrInvalidEPub) {
			t.Errorf("readPackageDocument(%q) error = %v, want ErrInvalidEPub", doc, err)
		}
	}
}

func writtenPackage(version int) packageData {
	return packageData{
		Version: version,
		Metadata: Metadata{
			Titles:      []string{"Salt Roads"},
			Language:    []string{"pt"},
			Identifiers: []Identifier{{Value: "urn:isbn:9780000000002", Scheme: "ISBN"}},
		},
		Modified: "2024-05-01T10:00:00Z",
		CoverID:  "img-1",
		TocID:    "ncx",
		Entries: []packageEntry{
			{ID: "ncx", Href: "toc.ncx", MediaType: "application/x-dtbncx+xml"},
			{ID: "nav", Href: "nav.xhtml", MediaType: "application/xhtml+xml", Properties: "nav"},
			{ID: "img-1", Href: "images/cover.jpg", MediaType: "image/jpeg", Properties: "cover-image"},
			{ID: "s0001", Href: "text/0001-roads.xhtml", MediaType: "application/xhtml+xml"},
			{ID: "s0002", Href: "text/0002-notes.xhtml", MediaType: "application/xhtml+xml"},
		},
		Spine: []spineRef{{IDRef: "s0001"}, {IDRef: "s0002", NonLinear: true}},
		Guide: []guideEntry{{Type: "text", Title: "Roads", Href: "text/0001-roads.xhtml"}},
	}
}

func TestPackageDocument_RoundTrip(t *testing.T) {
	for _, version := range []int{2, 3} {
		out, err := packageDocument(writtenPackage(version)).WriteToString()
		if err != nil {
			t.Fatalf("v%d: WriteToString: %v", version, err)
		}
		got, err := readPackageDocument([]byte(out))
		if err != nil {
			t.Fatalf("v%d: readPackageDocument: %v\n%s", version, err, out)
		}

		want := writtenPackage(version)
		want.Metadata.Version = map[int]string{2: "2.0", 3: "3.0"}[version]
		want.Metadata.Identifiers[0].ID = uniqueIdentifierID
		if version == 2 {
			want.Modified = ""
			for i := range want.Entries {
				want.Entries[i].Properties = ""
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("v%d: read back\n%+v\nwant\n%+v", version, got, want)
		}
	}
}

func TestPackageDocument_VersionSpecifics(t *testing.T) {
	v2, _ := packageDocument(writtenPackage(2)).WriteToString()
	v3, _ := packageDocument(writtenPackage(3)).WriteToString()

	for _, unwanted := range []string{`properties=`, "dcterms:modified"} {
		if strings.Contains(v2, unwanted) {
			t.Errorf("ePub 2 package document carries %s", unwanted)
		}
	}
	for _, want := range []string{`properties="nav"`, `properties="cover-image"`, "2024-05-01T10:00:00Z", `version="3.0"`} {
		if !strings.Contains(v3, want) {
			t.Errorf("ePub 3 package document missing %s", want)
		}
	}
	for _, out := range []string{v2, v3} {
		for _, want := range []string{
			`<meta name="cover" content="img-1"/>`,
			`<spine toc="ncx">`,
			`<itemref idref="s0002" linear="no"/>`,
			`unique-identifier="bookid"`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("package document missing %s:\n%s", want, out)
			}
		}
	}
}

func TestContainsToken(t *testing.T) {
	tests := []struct {
		list, token string
		want        bool
	}{
		{"nav", "nav", true},
		{" scripted\tnav ", "nav", true},
		{"navigation", "nav", false},
		{"", "nav", false},
		{"Nav", "nav", false},
	}
	for _, tt := range tests {
		if got := containsToken(tt.list, tt.token); got != tt.want {
			t.Errorf("containsToken(%q, %q) = %v, want %v", tt.list, tt.token, got, tt.want)
		}
	}
}
