package epub

// Metadata is the Dublin Core description of a package. Builder writes it
// to the package document and Book reads it back.
type Metadata struct {
	// Version is the version attribute of a package that was read, such
	// as "2.0" or "3.0". Builder ignores it; see WithVersion.
	Version string

	Titles   []string // first one is the main title
	Authors  []Author
	Language []string // BCP 47 tags

	// Identifiers lists dc:identifier values. The first one is the
	// package unique-identifier.
	Identifiers []Identifier

	Publisher   string
	Date        string // as written, e.g. "2024-03-05"
	Description string
	Subjects    []string
	Rights      string
	Source      string
}

// Author is a dc:creator.
type Author struct {
	Name   string
	FileAs string // sort key, e.g. "Writer, Ada"
	Role   string // MARC relator code such as "aut" or "trl"
}

// Identifier is a dc:identifier.
type Identifier struct {
	Value  string
	Scheme string // e.g. "ISBN" or "UUID"
	ID     string // xml id of the element
}

// TOCItem is an entry of the table of contents of a package that was read.
type TOCItem struct {
	Title string

	// Href is the archive path of the target, with its fragment if any.
	// It is empty for a heading that points nowhere.
	Href string

	Children []TOCItem

	// SpineIndex is the position of the target in the reading order,
	// or -1.
	SpineIndex int
}

// Chapter is one item of the reading order of a package that was read.
// Its content is loaded on demand.
type Chapter struct {
	Title  string // label of the first table of contents entry for Href
	Href   string // archive path
	ID     string // manifest id
	Linear bool

	book *Book
}

// CoverImage is the cover of a package.
type CoverImage struct {
	Path      string // archive path
	MediaType string
	Data      []byte
}
