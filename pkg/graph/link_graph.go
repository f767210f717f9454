// Package graph projects a model system's links onto a gonum directed
// graph for reachability and structure queries.
package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/ritzau/msedit/pkg/model"
)

// LinkGraph has one vertex per node or start and an edge from each link
// origin to each of its destinations
type LinkGraph struct {
	graph     *simple.DirectedGraph
	nodes     []*model.Node // indexed by graph ID
	ids       map[*model.Node]int64
	selfLinks []*model.Node
}

// Options selects which parts of the model system become edges
type Options struct {
	// IncludeDisabled keeps disabled links and edges into disabled nodes
	IncludeDisabled bool
}

// Build creates the link graph of ms
func Build(ms *model.ModelSystem, opts Options) *LinkGraph {
	lg := &LinkGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[*model.Node]int64),
	}
	ms.GlobalBoundary().Walk(func(b *model.Boundary) bool {
		for _, n := range b.Starts() {
			lg.addNode(n)
		}
		for _, n := range b.Nodes() {
			lg.addNode(n)
		}
		return true
	})

	for _, l := range ms.AllLinks() {
		if l.Disabled() && !opts.IncludeDisabled {
			continue
		}
		for _, d := range l.Destinations() {
			if d.Disabled() && !opts.IncludeDisabled {
				continue
			}
			lg.addEdge(l.Origin(), d)
		}
	}
	return lg
}

func (lg *LinkGraph) addNode(n *model.Node) {
	if _, exists := lg.ids[n]; exists {
		return
	}
	id := int64(len(lg.nodes))
	lg.ids[n] = id
	lg.nodes = append(lg.nodes, n)
	lg.graph.AddNode(simple.Node(id))
}

func (lg *LinkGraph) addEdge(from, to *model.Node) {
	fid, ok := lg.ids[from]
	if !ok {
		return
	}
	tid, ok := lg.ids[to]
	if !ok {
		return
	}
	// simple graphs reject self edges, so they are tracked on the side
	if fid == tid {
		if !slices.Contains(lg.selfLinks, from) {
			lg.selfLinks = append(lg.selfLinks, from)
		}
		return
	}
	if !lg.graph.HasEdgeFromTo(fid, tid) {
		lg.graph.SetEdge(lg.graph.NewEdge(lg.graph.Node(fid), lg.graph.Node(tid)))
	}
}

// Graph returns the underlying directed graph
func (lg *LinkGraph) Graph() graph.Directed {
	return lg.graph
}

// Node maps a graph vertex back to the model node
func (lg *LinkGraph) Node(v graph.Node) *model.Node {
	id := v.ID()
	if id < 0 || id >= int64(len(lg.nodes)) {
		return nil
	}
	return lg.nodes[id]
}

// Nodes returns every node in graph-ID order
func (lg *LinkGraph) Nodes() []*model.Node {
	return append([]*model.Node(nil), lg.nodes...)
}

// SelfLinks lists nodes that link to themselves
func (lg *LinkGraph) SelfLinks() []*model.Node {
	return append([]*model.Node(nil), lg.selfLinks...)
}

// Dependencies returns the nodes n links to directly
func (lg *LinkGraph) Dependencies(n *model.Node) []*model.Node {
	id, ok := lg.ids[n]
	if !ok {
		return nil
	}
	return lg.collect(lg.graph.From(id))
}

// Dependents returns the nodes linking directly to n
func (lg *LinkGraph) Dependents(n *model.Node) []*model.Node {
	id, ok := lg.ids[n]
	if !ok {
		return nil
	}
	return lg.collect(lg.graph.To(id))
}

func (lg *LinkGraph) collect(it graph.Nodes) []*model.Node {
	var out []*model.Node
	for it.Next() {
		if n := lg.Node(it.Node()); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Reachable returns every node reachable from the given roots, roots
// included
func (lg *LinkGraph) Reachable(roots ...*model.Node) map[*model.Node]bool {
	seen := make(map[*model.Node]bool)
	bf := traverse.BreadthFirst{
		Visit: func(v graph.Node) {
			if n := lg.Node(v); n != nil {
				seen[n] = true
			}
		},
	}
	for _, r := range roots {
		id, ok := lg.ids[r]
		if !ok {
			continue
		}
		bf.Walk(lg.graph, lg.graph.Node(id), nil)
	}
	return seen
}

// Neighborhood returns the nodes within depth links of focus, ignoring
// link direction, mapped to their distance from focus
func (lg *LinkGraph) Neighborhood(focus *model.Node, depth int) map[*model.Node]int {
	id, ok := lg.ids[focus]
	if !ok {
		return nil
	}
	dist := make(map[*model.Node]int)
	var bf traverse.BreadthFirst
	bf.Walk(graph.Undirect{G: lg.graph}, lg.graph.Node(id), func(v graph.Node, d int) bool {
		if d > depth {
			return true
		}
		if n := lg.Node(v); n != nil {
			dist[n] = d
		}
		return false
	})
	return dist
}

// Unreachable lists enabled modules that no start reaches
func (lg *LinkGraph) Unreachable() []*model.Node {
	var starts []*model.Node
	for _, n := range lg.nodes {
		if n.IsStart() && !n.Disabled() {
			starts = append(starts, n)
		}
	}
	seen := lg.Reachable(starts...)
	var out []*model.Node
	for _, n := range lg.nodes {
		if !n.IsStart() && !n.Disabled() && !seen[n] {
			out = append(out, n)
		}
	}
	return out
}
