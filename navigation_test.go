package epub

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// navShape lists the points of tree as "label -> target", indented two
// spaces per level.
func navShape(tree *NavigationTree) []string {
	var out []string
	tree.Walk(func(p *NavPoint, level int) {
		out = append(out, fmt.Sprintf("%s%s -> %s", strings.Repeat("  ", level-1), p.Label, p.Target))
	})
	return out
}

func TestNavigationTree_AddSubPoint(t *testing.T) {
	tree := &NavigationTree{}
	tree.AddPoint("a.xhtml", "A")
	tree.AddPoint("b.xhtml", "B")
	if _, err := tree.AddSubPoint("a.xhtml", "a1.xhtml", "A1"); err != nil {
		t.Fatalf("AddSubPoint(a) error = %v", err)
	}
	if _, err := tree.AddSubPoint("a1.xhtml", "a1x.xhtml", "A1x"); err != nil {
		t.Fatalf("AddSubPoint(a1) error = %v", err)
	}
	if _, err := tree.AddSubPoint("b.xhtml", "b1.xhtml", "B1"); err != nil {
		t.Fatalf("AddSubPoint(b) error = %v", err)
	}

	want := []string{
		"A -> a.xhtml",
		"  A1 -> a1.xhtml",
		"    A1x -> a1x.xhtml",
		"B -> b.xhtml",
		"  B1 -> b1.xhtml",
	}
	if got := navShape(tree); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("tree =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if tree.Len() != 2 || tree.Depth() != 3 {
		t.Errorf("Len() = %d, Depth() = %d, want 2 and 3", tree.Len(), tree.Depth())
	}

	_, err := tree.AddSubPoint("missing.xhtml", "c.xhtml", "C")
	if !errors.Is(err, ErrNoSuchNavigationTarget) {
		t.Errorf("AddSubPoint(missing) error = %v, want ErrNoSuchNavigationTarget", err)
	}
}

func TestNavigationTree_Find(t *testing.T) {
	tree := &NavigationTree{}
	a := tree.AddPoint("a.xhtml", "A")
	nested := a.AddChild("dup.xhtml", "nested")
	top := tree.AddPoint("dup.xhtml", "top")
	deep := nested.AddChild("deep.xhtml", "deep")
	later := tree.AddPoint("c.xhtml", "C").AddChild("deep.xhtml", "later")

	if got := tree.Find("dup.xhtml"); got != top {
		t.Errorf("Find(dup) = %v, want the top-level point", got)
	}
	if got := tree.Find("deep.xhtml"); got != deep || got == later {
		t.Errorf("Find(deep) = %v, want the first in pre-order", got)
	}
	if got := tree.Find("none.xhtml"); got != nil {
		t.Errorf("Find(none) = %v, want nil", got)
	}
}

func TestNavigationTree_Consolidate(t *testing.T) {
	tree := &NavigationTree{}
	tree.AddPoint("empty.xhtml", "")
	tree.AddPoint("ch1.xhtml", "Ch1")
	part := tree.AddPoint("part.xhtml", "")
	part.AddChild("p1.xhtml", "Part one")
	part.AddChild("blank.xhtml", "")
	group := tree.AddPoint("group.xhtml", "")
	group.AddChild("g1.xhtml", "").AddChild("g2.xhtml", "")
	ch2 := tree.AddPoint("ch2.xhtml", "Ch2")
	ch2.AddChild("x.xhtml", "")

	tree.Consolidate()
	want := []string{
		"Ch1 -> ch1.xhtml",
		" -> part.xhtml",
		"  Part one -> p1.xhtml",
		"Ch2 -> ch2.xhtml",
	}
	got := navShape(tree)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("Consolidate() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}

	tree.Consolidate()
	if again := navShape(tree); strings.Join(again, "\n") != strings.Join(got, "\n") {
		t.Errorf("Consolidate() is not idempotent:\n%s", strings.Join(again, "\n"))
	}
}

func TestNavigationTree_ConsolidateDropsUnlabelled(t *testing.T) {
	tree := &NavigationTree{}
	tree.AddPoint("a.xhtml", "")
	tree.AddPoint("b.xhtml", "Ch1")
	tree.Consolidate()

	points := tree.Points()
	if len(points) != 1 || points[0].Label != "Ch1" {
		t.Errorf("Points() = %+v, want only Ch1", points)
	}
}

func TestNavigationTree_Empty(t *testing.T) {
	tree := &NavigationTree{}
	tree.Consolidate()
	if tree.Len() != 0 || tree.Depth() != 1 {
		t.Errorf("empty tree Len() = %d, Depth() = %d, want 0 and 1", tree.Len(), tree.Depth())
	}
	calls := 0
	tree.Walk(func(*NavPoint, int) { calls++ })
	if calls != 0 {
		t.Errorf("Walk() visited %d points", calls)
	}
}

func TestNavPoint_Children(t *testing.T) {
	p := &NavPoint{Label: "P", Target: "p.xhtml"}
	p.AddChild("c.xhtml", "C")
	kids := p.Children()
	kids[0] = nil
	if p.Children()[0] == nil {
		t.Error("Children() shares the child list")
	}
	if p.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", p.Depth())
	}
}
