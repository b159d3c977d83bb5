package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Cover returns the cover image. It is the manifest item with the
// cover-image property, else the item named by <meta name="cover"> (or
// the first image of that item when it is a page), else the first image
// of the guide's cover page. ErrNoCover is returned when all of them
// fail.
func (b *Book) Cover() (CoverImage, error) {
	if e, ok := b.pkg.entryWithProperty("cover-image"); ok {
		return b.loadImage(e)
	}
	if e, ok := b.pkg.entry(b.pkg.CoverID); ok {
		if isImageMediaType(e.MediaType) {
			return b.loadImage(e)
		}
		if img, ok := b.firstImageOn(b.locate(e.Href)); ok {
			return b.loadImage(img)
		}
	}
	for _, g := range b.pkg.Guide {
		if !strings.EqualFold(g.Type, "cover") {
			continue
		}
		if img, ok := b.firstImageOn(b.locate(g.Href)); ok {
			return b.loadImage(img)
		}
	}
	return CoverImage{}, ErrNoCover
}

// firstImageOn returns the manifest item of the first image shown by the
// page at the archive path page.
func (b *Book) firstImageOn(page string) (packageEntry, bool) {
	at, err := ParsePath(page)
	if err != nil {
		return packageEntry{}, false
	}
	data, err := b.ReadFile(page)
	if err != nil {
		return packageEntry{}, false
	}
	body, _, err := ParseDocument(bytes.NewReader(data))
	if err != nil {
		return packageEntry{}, false
	}
	for _, ref := range body.ImageRefs() {
		p, err := resolveRef(at, ref)
		if err != nil {
			continue
		}
		if e, ok := b.byPath[foldName(p.String())]; ok && isImageMediaType(e.MediaType) {
			return e, true
		}
	}
	return packageEntry{}, false
}

func (b *Book) loadImage(e packageEntry) (CoverImage, error) {
	at := b.locate(e.Href)
	data, err := b.ReadFile(at)
	if err != nil {
		return CoverImage{}, err
	}
	return CoverImage{Path: at, MediaType: e.MediaType, Data: data}, nil
}

func isImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// coverPage builds the body of the cover page. imageHref is relative to
// the page.
func coverPage(imageHref, title string) *Node {
	body := NewContainer("body")
	div := NewContainer("div", html.Attribute{Key: "class", Val: "cover"})
	div.AppendChild(NewContainer("img",
		html.Attribute{Key: "src", Val: imageHref},
		html.Attribute{Key: "alt", Val: title},
	))
	body.AppendChild(div)
	return body
}
