package epub

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Splitter cuts content documents whose serialized <body> exceeds a byte
// budget into a sequence of smaller documents.
//
// Splitting works by priority: the top-level children of the body are
// packed greedily into fragments; a fragment holding a single over-budget
// element is split again inside that element, each piece re-wrapped in a
// copy of it (this is how a paragraph is cut between its inline
// children); a single over-budget text run is cut between words. A
// childless element or a single word larger than the budget cannot be
// divided and is emitted as is.
type Splitter struct {
	// MaxBytes is the budget for EstimateBytes(doc.Content).
	// Zero or negative means DefaultMaxSectionBytes.
	MaxBytes int64
}

// NewSplitter returns a Splitter with the given budget.
func NewSplitter(maxBytes int64) *Splitter {
	return &Splitter{MaxBytes: maxBytes}
}

func (s *Splitter) budget() int64 {
	if s == nil || s.MaxBytes <= 0 {
		return DefaultMaxSectionBytes
	}
	return s.MaxBytes
}

// NeedsSplit reports whether the body of d is over budget.
func (s *Splitter) NeedsSplit(d *Document) bool {
	return d.Content != nil && EstimateBytes(d.Content) > s.budget()
}

// Split cuts d so that it holds only the content that fits, and returns
// the documents holding the rest, in reading order. d itself is never part
// of the result, and it remains the only navigation target: every returned
// fragment has NotInNavigation set and shares d's title, stylesheets,
// doctype and navigation parent.
//
// Split returns nil when d is within budget. A returned fragment may still
// be over budget when it holds a single indivisible unit; see NeedsSplit.
func (s *Splitter) Split(d *Document) []*Document {
	if !s.NeedsSplit(d) {
		return nil
	}
	return s.splitInPlace(d, s.budget())
}

// splitInPlace keeps the first part of d's body in d and returns the
// fragments holding the remainder.
func (s *Splitter) splitInPlace(d *Document, budget int64) []*Document {
	if EstimateBytes(d.Content) <= budget {
		return nil
	}

	kids := d.Content.Children()
	switch {
	case len(kids) > 1:
		return s.splitChildren(d, budget)
	case len(kids) == 1 && kids[0].Kind() == TextNode:
		return s.splitWords(d, kids[0], budget)
	case len(kids) == 1 && kids[0].ChildCount() > 0:
		return s.splitInside(d, kids[0], budget)
	default:
		return nil
	}
}

// splitChildren packs the body children of d into fragments in document
// order. A fragment is closed when the next child would take it over
// budget; each fragment gets at least one child. Fragments left with a
// single over-budget child are split further.
func (s *Splitter) splitChildren(d *Document, budget int64) []*Document {
	overhead := EstimateBytes(d.Content.CloneEmpty())
	kids := d.Content.detachChildren()

	var rest []*Document
	current, used := d, overhead
	for _, k := range kids {
		size := EstimateBytes(k)
		if current.Content.ChildCount() > 0 && used+size > budget {
			current = d.sibling()
			rest = append(rest, current)
			used = overhead
		}
		current.Content.AppendChild(k)
		used += size
	}

	out := s.splitInPlace(d, budget)
	for _, f := range rest {
		out = append(out, f)
		out = append(out, s.splitInPlace(f, budget)...)
	}
	return out
}

// splitInside splits the single body child wrapper of d between its own
// children. The children are lifted into the body, split with the budget
// reduced by the wrapper's markup, and each resulting fragment is wrapped
// again: d keeps wrapper itself, the others get a shallow copy.
func (s *Splitter) splitInside(d *Document, wrapper *Node, budget int64) []*Document {
	inner := budget - EstimateBytes(wrapper.CloneEmpty())
	if inner <= EstimateBytes(d.Content.CloneEmpty()) {
		return nil
	}

	d.Content.RemoveChild(wrapper)
	for _, c := range wrapper.detachChildren() {
		d.Content.AppendChild(c)
	}

	out := s.splitInPlace(d, inner)

	wrapBody(d, wrapper)
	for _, f := range out {
		wrapBody(f, wrapper.CloneEmpty())
	}
	return out
}

// wrapBody moves every body child of d into wrapper and makes wrapper the
// only child of the body.
func wrapBody(d *Document, wrapper *Node) {
	for _, c := range d.Content.detachChildren() {
		wrapper.AppendChild(c)
	}
	d.Content.AppendChild(wrapper)
}

// splitWords cuts the single text run of d's body between words. d keeps
// the first run; each further run gets its own fragment.
func (s *Splitter) splitWords(d *Document, text *Node, budget int64) []*Document {
	limit := budget - EstimateBytes(d.Content.CloneEmpty())
	chunks := chunkWords(text.Text(), limit)
	if len(chunks) < 2 {
		return nil
	}

	text.SetText(chunks[0])
	out := make([]*Document, 0, len(chunks)-1)
	for _, c := range chunks[1:] {
		f := d.sibling()
		f.Content.AppendChild(NewText(c))
		out = append(out, f)
	}
	return out
}

// chunkWords cuts s into consecutive runs whose escaped size stays below
// limit. Runs only end after the whitespace that follows a word, so the
// runs concatenate back to s. A word that alone reaches limit forms a run
// of its own.
func chunkWords(s string, limit int64) []string {
	var chunks []string
	start, used := 0, int64(0)
	for _, w := range wordSpans(s) {
		size := int64(len(html.EscapeString(s[w[0]:w[1]])))
		if used > 0 && used+size >= limit {
			chunks = append(chunks, s[start:w[0]])
			start, used = w[0], 0
		}
		used += size
	}
	return append(chunks, s[start:])
}

// wordSpans returns the byte ranges of the words of s, each extended over
// the whitespace that follows it. Leading whitespace forms its own span.
// The spans cover s without gaps.
func wordSpans(s string) [][2]int {
	var spans [][2]int
	start, inSpace := 0, false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		space := unicode.IsSpace(r)
		if inSpace && !space {
			spans = append(spans, [2]int{start, i})
			start = i
		}
		inSpace = space
		i += size
	}
	if start < len(s) {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}
