package model

import (
	"errors"
	"strings"
	"testing"
)

const (
	simpleType TypeName = "Test.Simple"
	parentType TypeName = "Test.Parent"
)

func testRegistry(t *testing.T) *TypeRegistry {
	t.Helper()
	r := NewTypeRegistry()
	if err := r.Register(TypeDescription{Name: simpleType}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(TypeDescription{
		Name: parentType,
		Hooks: []*Hook{
			{Name: "Child", Cardinality: Single},
			{Name: "Optional", Cardinality: SingleOptional},
			{Name: "Children", Cardinality: AnyNumber},
			{Name: "Workers", Cardinality: AtLeastOne},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func describe(t *testing.T, r *TypeRegistry, name TypeName) *TypeDescription {
	t.Helper()
	d, err := r.DescribeType(name)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestAddBoundaryUniqueIgnoringCase(t *testing.T) {
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()

	if _, err := global.AddBoundary("Network"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := global.AddBoundary("NETWORK"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if _, err := global.AddBoundary("  "); !errors.Is(err, ErrBlankName) {
		t.Errorf("expected ErrBlankName, got %v", err)
	}
	if got := len(global.Boundaries()); got != 1 {
		t.Errorf("expected 1 child boundary, got %d", got)
	}
}

func TestSetBoundaryNameChecksSiblings(t *testing.T) {
	ms := NewModelSystem(Header{Name: "Test"})
	a, _ := ms.GlobalBoundary().AddBoundary("A")
	b, _ := ms.GlobalBoundary().AddBoundary("B")

	if err := b.SetName("a"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := a.SetName("a"); err != nil {
		t.Errorf("renaming to own name with new case should work: %v", err)
	}
}

func TestAddStartRejectsDuplicate(t *testing.T) {
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()

	start, err := global.AddStart("Start")
	if err != nil {
		t.Fatal(err)
	}
	if !start.IsStart() || len(start.Hooks()) != 1 {
		t.Errorf("start should carry the single start hook, got %v", start.Hooks())
	}
	if _, err := global.AddStart("start"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if len(global.Starts()) != 1 {
		t.Errorf("expected 1 start, got %d", len(global.Starts()))
	}
}

func TestSingleLinkMoveSemantics(t *testing.T) {
	r := testRegistry(t)
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()

	parent, _ := global.AddNode("Parent", describe(t, r, parentType))
	first, _ := global.AddNode("First", describe(t, r, simpleType))
	second, _ := global.AddNode("Second", describe(t, r, simpleType))
	hook := parent.Hook("Child")

	l1, err := global.AddLink(parent, hook, first)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := global.AddLink(parent, hook, second)
	if err != nil {
		t.Fatal(err)
	}

	if l1 != l2 {
		t.Error("second AddLink on a single hook should reuse the link")
	}
	if len(global.Links()) != 1 {
		t.Fatalf("expected 1 link, got %d", len(global.Links()))
	}
	if got := l2.(*SingleLink).Destination(); got != second {
		t.Errorf("expected destination Second, got %v", got)
	}
}

func TestMultiLinkAggregation(t *testing.T) {
	r := testRegistry(t)
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()

	parent, _ := global.AddNode("Parent", describe(t, r, parentType))
	hook := parent.Hook("Children")

	var links []Link
	var want []*Node
	for _, name := range []string{"A", "B", "C"} {
		n, _ := global.AddNode(name, describe(t, r, simpleType))
		want = append(want, n)
		l, err := global.AddLink(parent, hook, n)
		if err != nil {
			t.Fatal(err)
		}
		links = append(links, l)
	}

	if links[0] != links[1] || links[1] != links[2] {
		t.Error("all AddLink calls should return the same multi-link")
	}
	if len(global.Links()) != 1 {
		t.Fatalf("expected 1 link, got %d", len(global.Links()))
	}
	got := links[0].Destinations()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("destination %d: expected %s, got %s", i, want[i].Name(), got[i].Name())
		}
	}
}

func TestAddLinkValidation(t *testing.T) {
	r := testRegistry(t)
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()
	sub, _ := global.AddBoundary("Sub")

	parent, _ := global.AddNode("Parent", describe(t, r, parentType))
	child, _ := sub.AddNode("Child", describe(t, r, simpleType))
	start, _ := global.AddStart("Start")

	if _, err := global.AddLink(parent, start.Hooks()[0], child); !errors.Is(err, ErrForeignHook) {
		t.Errorf("expected ErrForeignHook, got %v", err)
	}
	if _, err := global.AddLink(parent, parent.Hook("Child"), start); !errors.Is(err, ErrStartDestination) {
		t.Errorf("expected ErrStartDestination, got %v", err)
	}
	if _, err := sub.AddLink(parent, parent.Hook("Child"), child); !errors.Is(err, ErrNotFound) {
		t.Errorf("link must live in the origin's boundary, got %v", err)
	}
	if _, err := global.AddLink(parent, parent.Hook("Child"), child); err != nil {
		t.Errorf("cross-boundary destination should be allowed: %v", err)
	}
}

func TestMultiLinkDestinationEdits(t *testing.T) {
	r := testRegistry(t)
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()
	parent, _ := global.AddNode("Parent", describe(t, r, parentType))
	a, _ := global.AddNode("A", describe(t, r, simpleType))
	b, _ := global.AddNode("B", describe(t, r, simpleType))

	l, err := NewMultiLink(parent, parent.Hook("Children"), a)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.InsertDestination(0, b); err != nil {
		t.Fatal(err)
	}
	if d, _ := l.Destination(0); d != b {
		t.Errorf("expected B first, got %s", d.Name())
	}
	if _, err := l.RemoveDestination(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	for l.Len() > 0 {
		if _, err := l.RemoveDestination(0); err != nil {
			t.Fatal(err)
		}
	}
	if l.Len() != 0 {
		t.Error("link should be empty")
	}
	if _, err := NewMultiLink(parent, parent.Hook("Child"), a); !errors.Is(err, ErrNotMultiLink) {
		t.Errorf("expected ErrNotMultiLink for a single hook, got %v", err)
	}
}

func TestGetLinksGoingToBoundary(t *testing.T) {
	r := testRegistry(t)
	ms := NewModelSystem(Header{Name: "Test"})
	global := ms.GlobalBoundary()
	target, _ := global.AddBoundary("Target")
	sibling, _ := global.AddBoundary("Sibling")
	nested, _ := sibling.AddBoundary("Nested")

	inside, _ := target.AddNode("Inside", describe(t, r, simpleType))
	insideParent, _ := target.AddNode("InsideParent", describe(t, r, parentType))
	outside, _ := global.AddNode("Outside", describe(t, r, simpleType))

	fromGlobal, _ := global.AddNode("FromGlobal", describe(t, r, parentType))
	fromNested, _ := nested.AddNode("FromNested", describe(t, r, parentType))

	l1, _ := global.AddLink(fromGlobal, fromGlobal.Hook("Child"), inside)
	l2, _ := nested.AddLink(fromNested, fromNested.Hook("Children"), outside)
	_, _ = nested.AddLink(fromNested, fromNested.Hook("Children"), inside)
	_, _ = target.AddLink(insideParent, insideParent.Hook("Child"), inside)
	_, _ = global.AddLink(fromGlobal, fromGlobal.Hook("Optional"), outside)

	found := global.GetLinksGoingToBoundary(target)
	if len(found) != 2 {
		t.Fatalf("expected 2 links into Target, got %d", len(found))
	}
	if found[0] != l1 || found[1] != l2 {
		t.Errorf("unexpected links %v", found)
	}
}

func TestPathAndFindStart(t *testing.T) {
	ms := NewModelSystem(Header{Name: "Test"})
	a, _ := ms.GlobalBoundary().AddBoundary("A")
	b, _ := a.AddBoundary("B")
	start, _ := b.AddStart("Go")

	if got := strings.Join(b.Path(), "."); got != "A.B" {
		t.Errorf("expected path A.B, got %s", got)
	}
	found, err := ms.FindStart([]string{"A", "B"}, "Go")
	if err != nil || found != start {
		t.Errorf("expected to find start, got %v, %v", found, err)
	}
	if _, err := ms.FindStart([]string{"A", "X"}, "Go"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if ms.FindNode(start.ID()) != start {
		t.Error("FindNode should locate starts")
	}
	if !ms.GlobalBoundary().Contains(b) || b.Contains(a) {
		t.Error("Contains should follow the parent chain")
	}
}

func TestNewLinkFollowsCardinality(t *testing.T) {
	r := testRegistry(t)
	parent, _ := NewNode("Parent", describe(t, r, parentType))
	child, _ := NewNode("Child", describe(t, r, simpleType))

	tests := []struct {
		hook  string
		multi bool
	}{
		{"Child", false},
		{"Optional", false},
		{"Children", true},
		{"Workers", true},
	}
	for _, tt := range tests {
		l, err := NewLink(parent, parent.Hook(tt.hook), child)
		if err != nil {
			t.Fatalf("%s: %v", tt.hook, err)
		}
		if _, multi := l.(*MultiLink); multi != tt.multi {
			t.Errorf("%s: got %T", tt.hook, l)
		}
		if d := l.Destinations(); len(d) != 1 || d[0] != child || l.Boundary() != nil {
			t.Errorf("%s: expected a detached link to Child, got %v", tt.hook, d)
		}
	}
	if _, err := NewLink(parent, nil, child); err == nil {
		t.Error("expected an error for a missing hook")
	}
}
