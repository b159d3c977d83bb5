package epub

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PathKind classifies a single element of an InternalPath.
type PathKind uint8

const (
	// PathRoot is the synthetic first element of every path.
	PathRoot PathKind = iota
	// PathFolder is a directory segment.
	PathFolder
	// PathFile is a file segment; it can only be the last element.
	PathFile
)

// String returns the lowercase name of the kind.
func (k PathKind) String() string {
	switch k {
	case PathRoot:
		return "root"
	case PathFolder:
		return "folder"
	case PathFile:
		return "file"
	default:
		return fmt.Sprintf("PathKind(%d)", uint8(k))
	}
}

// PathElement is one segment of an InternalPath.
type PathElement struct {
	// Name is the segment name, NFC-normalised. Empty for the root.
	Name string

	// Kind tells whether the segment is the root, a folder or a file.
	Kind PathKind
}

// InternalPath is the location of an artifact inside the package archive,
// before any bytes are written. Values are immutable; copying one is cheap
// and never aliases mutable state.
//
// The zero value is the bare root. It has no usable segments, so
// RelativePathTo and FilePathInZip fail on it with ErrInvalidState.
type InternalPath struct {
	elems []PathElement // elems[0] is the root when the path is non-empty
	fixed bool          // never collapsed by the flat layout
}

// ParsePath parses a slash-delimited package path such as
// "OEBPS/text/ch1.xhtml". Back-slashes are treated as slashes, empty and "."
// segments are dropped and ".." removes the preceding folder. The last
// segment is a file when its name contains a dot, a folder otherwise.
//
// An input with no segments, or one whose ".." segments climb above the
// root, fails with ErrInvalidPath.
func ParsePath(s string) (InternalPath, error) {
	names, err := splitPathNames(nil, s)
	if err != nil {
		return InternalPath{}, fmt.Errorf("epub: parse path %q: %w", s, err)
	}
	if len(names) == 0 {
		return InternalPath{}, fmt.Errorf("epub: parse path %q: empty path: %w", s, ErrInvalidPath)
	}
	return InternalPath{elems: buildElements(names)}, nil
}

// ParseFixedPath is like ParsePath but marks the result as never moved by
// the flat layout. It is used for artifacts whose location is mandated,
// such as META-INF/container.xml.
func ParseFixedPath(s string) (InternalPath, error) {
	p, err := ParsePath(s)
	if err != nil {
		return InternalPath{}, err
	}
	p.fixed = true
	return p, nil
}

// ResolvePath resolves rel against the folder portion of base (base minus
// its trailing file segment) and parses the result. It is used to place an
// artifact next to another one, e.g. ResolvePath(css, "fonts/a.ttf").
func ResolvePath(base InternalPath, rel string) (InternalPath, error) {
	dir := base.dirNames()
	names, err := splitPathNames(dir, rel)
	if err != nil {
		return InternalPath{}, fmt.Errorf("epub: resolve %q against %q: %w", rel, base.String(), err)
	}
	if !namesEntry(rel) {
		return InternalPath{}, fmt.Errorf("epub: resolve %q against %q: empty name: %w", rel, base.String(), ErrInvalidPath)
	}
	return InternalPath{elems: buildElements(names)}, nil
}

// namesEntry reports whether the last segment of rel is a name rather
// than empty, "." or "..".
func namesEntry(rel string) bool {
	rel = strings.TrimRight(strings.ReplaceAll(rel, `\`, "/"), "/")
	switch rel[strings.LastIndex(rel, "/")+1:] {
	case "", ".", "..":
		return false
	}
	return true
}

// splitPathNames appends the usable segments of s to prefix, applying ".."
// segments as it goes.
func splitPathNames(prefix []string, s string) ([]string, error) {
	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.TrimRight(s, "/")

	names := append([]string(nil), prefix...)
	for _, seg := range strings.Split(s, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(names) == 0 {
				return nil, fmt.Errorf("path climbs above the root: %w", ErrInvalidPath)
			}
			names = names[:len(names)-1]
		default:
			names = append(names, norm.NFC.String(seg))
		}
	}
	return names, nil
}

// buildElements turns segment names into elements, classifying the last
// one by the presence of a dot in its name.
func buildElements(names []string) []PathElement {
	elems := make([]PathElement, 0, len(names)+1)
	elems = append(elems, PathElement{Kind: PathRoot})
	for i, name := range names {
		kind := PathFolder
		if i == len(names)-1 && strings.Contains(name, ".") {
			kind = PathFile
		}
		elems = append(elems, PathElement{Name: name, Kind: kind})
	}
	return elems
}

// dirNames returns the folder names of p, without the trailing file.
func (p InternalPath) dirNames() []string {
	var names []string
	for _, e := range p.segments() {
		if e.Kind == PathFolder {
			names = append(names, e.Name)
		}
	}
	return names
}

// segments returns the elements after the root.
func (p InternalPath) segments() []PathElement {
	if len(p.elems) <= 1 {
		return nil
	}
	return p.elems[1:]
}

// Kind reports PathRoot for a path with no segments, PathFile when the last
// segment is a file and PathFolder otherwise.
func (p InternalPath) Kind() PathKind {
	if len(p.elems) <= 1 {
		return PathRoot
	}
	if p.elems[len(p.elems)-1].Kind == PathFile {
		return PathFile
	}
	return PathFolder
}

// Name returns the last segment name, or "" for the root.
func (p InternalPath) Name() string {
	if len(p.elems) <= 1 {
		return ""
	}
	return p.elems[len(p.elems)-1].Name
}

// Elements returns a copy of the path elements, root first.
func (p InternalPath) Elements() []PathElement {
	if len(p.elems) == 0 {
		return []PathElement{{Kind: PathRoot}}
	}
	return append([]PathElement(nil), p.elems...)
}

// SupportsFlatLayout reports whether the flat layout may move this path.
func (p InternalPath) SupportsFlatLayout() bool {
	return !p.fixed
}

// IsZero reports whether p has no usable segments.
func (p InternalPath) IsZero() bool {
	return len(p.elems) <= 1
}

// Equal reports whether p and other name the same location. Names are
// compared case-insensitively, the way archive lookups are.
func (p InternalPath) Equal(other InternalPath) bool {
	a, b := p.segments(), other.segments()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || !strings.EqualFold(a[i].Name, b[i].Name) {
			return false
		}
	}
	return true
}

// String returns the hierarchical form of the path, e.g. "OEBPS/css/a.css".
func (p InternalPath) String() string {
	segs := p.segments()
	names := make([]string, len(segs))
	for i, e := range segs {
		names[i] = e.Name
	}
	return strings.Join(names, "/")
}

// RelativePathTo returns the reference a document located at other uses to
// reach p.
//
// With flat set and p allowing the flat layout, every artifact lives in one
// directory and the result is p's last segment name. Otherwise the common
// folder prefix of p and other is skipped (names compared
// case-insensitively), one "../" is emitted per remaining folder of other,
// and the rest of p follows with folders suffixed by "/".
func (p InternalPath) RelativePathTo(other InternalPath, flat bool) (string, error) {
	if p.IsZero() {
		return "", fmt.Errorf("epub: relative path from %q: %w", other.String(), ErrInvalidState)
	}
	if flat && !p.fixed {
		return p.Name(), nil
	}

	from, to := p.segments(), other.segments()
	n := 0
	for n < len(from) && n < len(to) &&
		from[n].Kind == PathFolder && to[n].Kind == PathFolder &&
		strings.EqualFold(from[n].Name, to[n].Name) {
		n++
	}

	var sb strings.Builder
	for _, e := range to[n:] {
		if e.Kind == PathFile {
			break
		}
		sb.WriteString("../")
	}
	for _, e := range from[n:] {
		sb.WriteString(e.Name)
		if e.Kind == PathFolder {
			sb.WriteByte('/')
		}
	}
	return sb.String(), nil
}

// FilePathInZip returns the archive entry name for p. With flat set and p
// allowing the flat layout, that is the last segment name alone.
func (p InternalPath) FilePathInZip(flat bool) (string, error) {
	if p.IsZero() {
		return "", fmt.Errorf("epub: zip path: %w", ErrInvalidState)
	}
	if flat && !p.fixed {
		return p.Name(), nil
	}
	return p.String(), nil
}

// mustParseFixedPath is ParseFixedPath for constant paths.
func mustParseFixedPath(s string) InternalPath {
	p, err := ParseFixedPath(s)
	if err != nil {
		panic(err)
	}
	return p
}
