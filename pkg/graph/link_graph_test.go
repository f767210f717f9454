package graph

import (
	"testing"

	"github.com/ritzau/msedit/pkg/model"
)

type fixture struct {
	ms                     *model.ModelSystem
	start                  *model.Node
	pipeline, a, b, orphan *model.Node
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := model.NewTypeRegistry()
	if err := r.Register(model.TypeDescription{Name: "Worker"}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(model.TypeDescription{Name: "Pipeline", Hooks: []*model.Hook{
		{Name: "Steps", Cardinality: model.AnyNumber},
	}})
	if err != nil {
		t.Fatal(err)
	}
	worker, _ := r.DescribeType("Worker")
	pipeline, _ := r.DescribeType("Pipeline")

	ms := model.NewModelSystem(model.Header{Name: "Test"})
	global := ms.GlobalBoundary()
	sub, _ := global.AddBoundary("Sub")

	f := fixture{ms: ms}
	f.start, _ = global.AddStart("Start")
	f.pipeline, _ = global.AddNode("Pipeline", pipeline)
	f.a, _ = sub.AddNode("A", worker)
	f.b, _ = sub.AddNode("B", worker)
	f.orphan, _ = global.AddNode("Orphan", worker)

	if _, err := global.AddLink(f.start, f.start.Hooks()[0], f.pipeline); err != nil {
		t.Fatal(err)
	}
	for _, d := range []*model.Node{f.a, f.b} {
		if _, err := global.AddLink(f.pipeline, f.pipeline.Hook("Steps"), d); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestBuildAddsNodesAndEdges(t *testing.T) {
	f := newFixture(t)
	lg := Build(f.ms, Options{})

	if len(lg.Nodes()) != 5 {
		t.Fatalf("expected 5 vertices, got %d", len(lg.Nodes()))
	}
	deps := lg.Dependencies(f.pipeline)
	if len(deps) != 2 {
		t.Errorf("expected pipeline to reach A and B, got %v", deps)
	}
	if dependents := lg.Dependents(f.a); len(dependents) != 1 || dependents[0] != f.pipeline {
		t.Errorf("expected A to be linked from pipeline, got %v", dependents)
	}
}

func TestUnreachable(t *testing.T) {
	f := newFixture(t)

	unreachable := Build(f.ms, Options{}).Unreachable()
	if len(unreachable) != 1 || unreachable[0] != f.orphan {
		t.Errorf("expected only Orphan unreachable, got %v", unreachable)
	}

	f.ms.GlobalBoundary().Links()[1].SetDisabled(true)
	unreachable = Build(f.ms, Options{}).Unreachable()
	if len(unreachable) != 3 {
		t.Errorf("disabling the steps link should strand A and B too, got %v", unreachable)
	}
	if got := Build(f.ms, Options{IncludeDisabled: true}).Unreachable(); len(got) != 1 {
		t.Errorf("disabled links count when included, got %v", got)
	}
}

func TestSelfLinksAreTrackedSeparately(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ms.GlobalBoundary().AddLink(f.pipeline, f.pipeline.Hook("Steps"), f.pipeline); err != nil {
		t.Fatal(err)
	}
	lg := Build(f.ms, Options{})
	if self := lg.SelfLinks(); len(self) != 1 || self[0] != f.pipeline {
		t.Errorf("expected pipeline self link, got %v", self)
	}
	if len(lg.Dependencies(f.pipeline)) != 2 {
		t.Error("self links are not graph edges")
	}
}

func TestNeighborhood(t *testing.T) {
	f := newFixture(t)
	lg := Build(f.ms, Options{})

	near := lg.Neighborhood(f.a, 1)
	if len(near) != 2 || near[f.a] != 0 || near[f.pipeline] != 1 {
		t.Errorf("expected A and its pipeline, got %v", near)
	}
	wide := lg.Neighborhood(f.a, 2)
	if len(wide) != 4 || wide[f.start] != 2 || wide[f.b] != 2 {
		t.Errorf("expected start and B at distance 2, got %v", wide)
	}
	if _, ok := wide[f.orphan]; ok {
		t.Error("orphan is not connected to A")
	}
	if lg.Neighborhood(&model.Node{}, 3) != nil {
		t.Error("unknown focus should have no neighborhood")
	}
}
