package epub

import (
	"path"
	"strings"
)

// mediaTypeOf infers the manifest media type of a package file from its
// extension. Unknown extensions yield application/octet-stream.
func mediaTypeOf(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return "application/xhtml+xml"
	case ".css":
		return "text/css"
	case ".ncx":
		return "application/x-dtbncx+xml"
	case ".opf":
		return opfMediaType
	case ".jpeg", ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".ttf":
		return "font/ttf"
	case ".otf":
		return "font/otf"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	case ".js":
		return "application/javascript"
	default:
		return "application/octet-stream"
	}
}
