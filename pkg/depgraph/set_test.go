package depgraph

import (
	"reflect"
	"testing"

	"github.com/cargograph/cargograph/pkg/errors"
)

func TestResolveForward(t *testing.T) {
	g := mustBuild(t, diamondDoc())

	tests := []struct {
		root string
		want []string
	}{
		{"a", []string{"a", "b", "c", "d"}},
		{"b", []string{"b", "d"}},
		{"d", []string{"d"}},
	}
	for _, tt := range tests {
		q, err := g.QueryForward(tt.root)
		set := mustResolve(t, q, err)
		got := set.PackageIDs()
		if len(got) != len(tt.want) {
			t.Errorf("forward(%q) = %v, want members %v", tt.root, got, tt.want)
			continue
		}
		for _, id := range tt.want {
			if ok, _ := set.Contains(id); !ok {
				t.Errorf("forward(%q) missing %q", tt.root, id)
			}
		}
	}
}

func TestResolveReverse(t *testing.T) {
	g := mustBuild(t, diamondDoc())
	q, err := g.QueryReverse("d")
	set := mustResolve(t, q, err)

	if got := set.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
	ids := set.PackageIDs()
	if ids[0] != "d" {
		t.Errorf("first = %q, want d (reverse iteration starts at the roots)", ids[0])
	}
	if ids[len(ids)-1] != "a" {
		t.Errorf("last = %q, want a", ids[len(ids)-1])
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	g := mustBuild(t, diamondDoc())
	q, err := g.QueryForward()
	set := mustResolve(t, q, err)

	if got := set.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
	if got := set.Packages(); len(got) != 0 {
		t.Errorf("Packages() = %v, want empty", names(got))
	}
}

func TestQueryUnknownRoot(t *testing.T) {
	g := mustBuild(t, diamondDoc())
	_, err := g.QueryForward("a", "ghost")
	if err == nil {
		t.Fatal("QueryForward() error = nil, want unknown id error")
	}
	if !errors.Is(err, errors.ErrCodeUnknownID) {
		t.Errorf("error code = %q, want %q", errors.GetCode(err), errors.ErrCodeUnknownID)
	}
}

func TestResolveWithFilter(t *testing.T) {
	g := mustBuild(t, diamondDoc())
	q, err := g.QueryForward("a")
	if err != nil {
		t.Fatal(err)
	}

	set, err := q.ResolveWith(LinkFilterFunc(func(l PackageLink) bool {
		return l.To().ID() != "c"
	}))
	if err != nil {
		t.Fatalf("ResolveWith() error = %v", err)
	}

	want := []string{"a", "b", "d"}
	if got := set.PackageIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("filtered PackageIDs() = %v, want %v", got, want)
	}

	// Filtered resolution is always a subset of the unfiltered one.
	fullQ, fullErr := g.QueryForward("a")
	full := mustResolve(t, fullQ, fullErr)
	for _, id := range set.PackageIDs() {
		if ok, _ := full.Contains(id); !ok {
			t.Errorf("filtered member %q not in unfiltered set", id)
		}
	}
}

func TestResolveWithDevFilter(t *testing.T) {
	g := mustBuild(t, devCycleDoc())
	noDev := LinkFilterFunc(func(l PackageLink) bool { return !l.DevOnly() })

	q, _ := g.QueryForward("b")
	set, err := q.ResolveWith(noDev)
	if err != nil {
		t.Fatal(err)
	}
	if got := set.PackageIDs(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("forward(b) without dev edges = %v, want [b]", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	g := mustBuild(t, diamondDoc())

	q1, err1 := g.QueryForward("a")
	first := mustResolve(t, q1, err1).PackageIDs()
	q2, err2 := g.QueryForward("a")
	second := mustResolve(t, q2, err2).PackageIDs()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated resolution changed order: %v vs %v", first, second)
	}
}

func TestSetAlgebra(t *testing.T) {
	g := mustBuild(t, diamondDoc())
	qB, errB := g.QueryForward("b")
	fromB := mustResolve(t, qB, errB) // {b, d}
	qC, errC := g.QueryForward("c")
	fromC := mustResolve(t, qC, errC) // {c, d}

	union, err := fromB.Union(fromC)
	if err != nil {
		t.Fatal(err)
	}
	if got := union.Len(); got != 3 {
		t.Errorf("Union().Len() = %d, want 3", got)
	}
	for _, id := range []string{"b", "c", "d"} {
		if ok, _ := union.Contains(id); !ok {
			t.Errorf("Union() missing %q", id)
		}
	}

	inter, err := fromB.Intersect(fromC)
	if err != nil {
		t.Fatal(err)
	}
	if got := inter.PackageIDs(); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("Intersect() = %v, want [d]", got)
	}

	diff, err := fromB.Difference(fromC)
	if err != nil {
		t.Fatal(err)
	}
	if got := diff.PackageIDs(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Difference() = %v, want [b]", got)
	}

	// Operands are untouched.
	if got := fromB.Len(); got != 2 {
		t.Errorf("operand mutated: fromB.Len() = %d, want 2", got)
	}
}

func TestSetAlgebraGraphMismatch(t *testing.T) {
	q1, err1 := mustBuild(t, diamondDoc()).QueryForward("a")
	s1 := mustResolve(t, q1, err1)
	q2, err2 := mustBuild(t, diamondDoc()).QueryForward("a")
	s2 := mustResolve(t, q2, err2)

	if _, err := s1.Union(s2); !errors.Is(err, errors.ErrCodeGraphMismatch) {
		t.Errorf("Union across graphs: code = %q, want %q", errors.GetCode(err), errors.ErrCodeGraphMismatch)
	}
}

func TestSetLinks(t *testing.T) {
	g := mustBuild(t, diamondDoc())

	fullQ, fullErr := g.QueryForward("a")
	full := mustResolve(t, fullQ, fullErr)
	if got := len(full.Links()); got != 4 {
		t.Errorf("full set has %d links, want 4", got)
	}

	// Only links with both endpoints inside count.
	subQ, subErr := g.QueryForward("b")
	sub := mustResolve(t, subQ, subErr)
	links := sub.Links()
	if len(links) != 1 {
		t.Fatalf("subset has %d links, want 1", len(links))
	}
	if links[0].From().ID() != "b" || links[0].To().ID() != "d" {
		t.Errorf("subset link = %s -> %s, want b -> d", links[0].From().ID(), links[0].To().ID())
	}
}

func TestSetContainsUnknown(t *testing.T) {
	q, err := mustBuild(t, diamondDoc()).QueryForward("a")
	set := mustResolve(t, q, err)
	if _, err := set.Contains("ghost"); !errors.Is(err, errors.ErrCodeUnknownID) {
		t.Errorf("Contains(ghost): code = %q, want %q", errors.GetCode(err), errors.ErrCodeUnknownID)
	}
}

func TestRetainEdges(t *testing.T) {
	g := mustBuild(t, diamondDoc())

	// Force the SCC index so the rebuild below has something to invalidate.
	sccQ, sccErr := g.QueryForward("a")
	_ = mustResolve(t, sccQ, sccErr).PackageIDs()

	g.RetainEdges(func(l PackageLink) bool {
		return !(l.From().ID() == "a" && l.To().ID() == "c")
	})

	if got := g.LinkCount(); got != 3 {
		t.Errorf("LinkCount() = %d, want 3", got)
	}
	q, err := g.QueryForward("a")
	set := mustResolve(t, q, err)
	want := []string{"a", "b", "d"}
	if got := set.PackageIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("after RetainEdges, forward(a) = %v, want %v", got, want)
	}
	if ok, _ := set.Contains("c"); ok {
		t.Error("c still reachable after its incoming edge was dropped")
	}
}
