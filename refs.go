package epub

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ImageRefs returns the image references found under n, in document order:
// the src of every <img> and the href (or xlink:href) of every SVG <image>.
// Empty values are skipped.
func (n *Node) ImageRefs() []string {
	var refs []string
	n.eachImageAttr(func(a *html.Attribute) {
		if v := strings.TrimSpace(a.Val); v != "" {
			refs = append(refs, v)
		}
	})
	return refs
}

// rewriteImageRefs replaces every local image reference under n with the
// value returned by fn. A reference is left as is when fn reports false.
// External, data: and fragment-only references never reach fn.
func rewriteImageRefs(n *Node, fn func(ref string) (string, bool)) {
	n.eachImageAttr(func(a *html.Attribute) {
		ref := strings.TrimSpace(a.Val)
		if !isLocalRef(ref) {
			return
		}
		if out, ok := fn(ref); ok {
			a.Val = out
		}
	})
}

// eachImageAttr calls fn with a pointer to every attribute holding an
// image reference.
func (n *Node) eachImageAttr(fn func(a *html.Attribute)) {
	if n.kind == TextNode {
		return
	}
	for i := range n.attr {
		if isImageAttr(n.tag, n.attr[i]) {
			fn(&n.attr[i])
		}
	}
	for _, c := range n.children {
		c.eachImageAttr(fn)
	}
}

func isImageAttr(tag string, a html.Attribute) bool {
	switch tag {
	case "img":
		return a.Namespace == "" && a.Key == "src"
	case "image":
		return a.Key == "href" && (a.Namespace == "" || a.Namespace == "xlink") || a.Key == "xlink:href"
	}
	return false
}

// isLocalRef reports whether ref points at a file of the package: it is
// neither empty, a bare fragment, rooted, nor a URI with a scheme.
func isLocalRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "/") {
		return false
	}
	return !hasURIScheme(ref)
}

// hasURIScheme reports whether s starts with an RFC 3986 scheme followed
// by a colon, such as "http:" or "data:".
func hasURIScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}

// resolveRef resolves the local reference ref, as written in the document
// at base, to a package path. The query and fragment are dropped and
// percent-escapes decoded. References that are not local, or that climb
// above the package root, fail with ErrInvalidPath.
func resolveRef(base InternalPath, ref string) (InternalPath, error) {
	ref = strings.TrimSpace(ref)
	if !isLocalRef(ref) {
		return InternalPath{}, fmt.Errorf("epub: %q is not a package reference: %w", ref, ErrInvalidPath)
	}
	ref, _, _ = strings.Cut(ref, "#")
	ref, _, _ = strings.Cut(ref, "?")
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = decoded
	}
	return ResolvePath(base, ref)
}

// splitFragment cuts ref at its first "#".
func splitFragment(ref string) (file, fragment string) {
	file, fragment, _ = strings.Cut(ref, "#")
	return file, fragment
}
