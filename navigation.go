package epub

import "fmt"

// NavPoint is one entry of a NavigationTree.
type NavPoint struct {
	// Label is the text shown in the table of contents. An empty label
	// makes the point a structural grouping node.
	Label string

	// Target is the reference to the content document, relative to the
	// table of contents document.
	Target string

	children []*NavPoint
}

// Children returns a copy of the child list.
func (p *NavPoint) Children() []*NavPoint {
	return append([]*NavPoint(nil), p.children...)
}

// AddChild appends a child point and returns it.
func (p *NavPoint) AddChild(target, label string) *NavPoint {
	c := &NavPoint{Label: label, Target: target}
	p.children = append(p.children, c)
	return c
}

// Depth returns 1 for a point without children, otherwise one more than
// the deepest child.
func (p *NavPoint) Depth() int {
	depth := 0
	for _, c := range p.children {
		depth = max(depth, c.Depth())
	}
	return depth + 1
}

// isDeadEnd reports a point that neither labels nor groups anything.
func (p *NavPoint) isDeadEnd() bool {
	return len(p.children) == 0 && p.Label == ""
}

// consolidate removes dead-end descendants, deepest first.
func (p *NavPoint) consolidate() {
	for _, c := range p.children {
		c.consolidate()
	}
	p.children = pruneDeadEnds(p.children)
}

// NavigationTree is an ordered, multi-level table of contents.
type NavigationTree struct {
	points []*NavPoint
}

// Points returns a copy of the top-level points.
func (t *NavigationTree) Points() []*NavPoint {
	return append([]*NavPoint(nil), t.points...)
}

// Len returns the number of top-level points.
func (t *NavigationTree) Len() int {
	return len(t.points)
}

// AddPoint appends a top-level point and returns it.
func (t *NavigationTree) AddPoint(target, label string) *NavPoint {
	p := &NavPoint{Label: label, Target: target}
	t.points = append(t.points, p)
	return p
}

// AddSubPoint appends a point under the first existing point whose Target
// equals parentTarget. Top-level points are searched first, then the
// descendants of each top-level point in pre-order. It fails with
// ErrNoSuchNavigationTarget when no point matches: parents must be
// registered before their children.
func (t *NavigationTree) AddSubPoint(parentTarget, target, label string) (*NavPoint, error) {
	parent := t.Find(parentTarget)
	if parent == nil {
		return nil, fmt.Errorf("epub: add %q under %q: %w", target, parentTarget, ErrNoSuchNavigationTarget)
	}
	return parent.AddChild(target, label), nil
}

// Find returns the first point whose Target equals target, using the
// search order of AddSubPoint, or nil.
func (t *NavigationTree) Find(target string) *NavPoint {
	for _, p := range t.points {
		if p.Target == target {
			return p
		}
	}
	for _, top := range t.points {
		for _, p := range flattenNavPoints(nil, top.children) {
			if p.Target == target {
				return p
			}
		}
	}
	return nil
}

// Walk calls fn for every point in pre-order with its nesting level,
// starting at 1 for top-level points.
func (t *NavigationTree) Walk(fn func(p *NavPoint, level int)) {
	var walk func(points []*NavPoint, level int)
	walk = func(points []*NavPoint, level int) {
		for _, p := range points {
			fn(p, level)
			walk(p.children, level+1)
		}
	}
	walk(t.points, 1)
}

// Consolidate prunes structural points that lead nowhere. Children are
// consolidated first, dropping every point with neither label nor
// children; then top-level points with an empty label and no remaining
// children are dropped. An unlabelled point that still groups labelled
// descendants is kept. Consolidate is idempotent.
func (t *NavigationTree) Consolidate() {
	for _, p := range t.points {
		p.consolidate()
	}
	t.points = pruneDeadEnds(t.points)
}

// Depth returns the depth of the deepest top-level point, and 1 for an
// empty tree (ncx dtb:depth must be positive).
func (t *NavigationTree) Depth() int {
	depth := 1
	for _, p := range t.points {
		depth = max(depth, p.Depth())
	}
	return depth
}

func pruneDeadEnds(points []*NavPoint) []*NavPoint {
	kept := points[:0]
	for _, p := range points {
		if !p.isDeadEnd() {
			kept = append(kept, p)
		}
	}
	clear(points[len(kept):])
	return kept
}

// flattenNavPoints appends points and all their descendants in pre-order.
func flattenNavPoints(flat []*NavPoint, points []*NavPoint) []*NavPoint {
	for _, p := range points {
		flat = append(flat, p)
		flat = flattenNavPoints(flat, p.children)
	}
	return flat
}
