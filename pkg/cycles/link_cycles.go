// Package cycles finds circular link chains in a model system
package cycles

import (
	"gonum.org/v1/gonum/graph/topo"

	"github.com/ritzau/msedit/pkg/graph"
	"github.com/ritzau/msedit/pkg/model"
)

// Cycle is a set of nodes that reach each other through links
type Cycle struct {
	Nodes []*model.Node
}

// Names returns the node names of the cycle
func (c Cycle) Names() []string {
	names := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		names[i] = n.Name()
	}
	return names
}

// FindLinkCycles returns the strongly connected components of the link
// graph with more than one node, followed by single-node self links
func FindLinkCycles(lg *graph.LinkGraph) []Cycle {
	cycles := make([]Cycle, 0)
	for _, scc := range topo.TarjanSCC(lg.Graph()) {
		if len(scc) < 2 {
			continue
		}
		nodes := make([]*model.Node, 0, len(scc))
		for _, v := range scc {
			if n := lg.Node(v); n != nil {
				nodes = append(nodes, n)
			}
		}
		cycles = append(cycles, Cycle{Nodes: nodes})
	}
	for _, n := range lg.SelfLinks() {
		cycles = append(cycles, Cycle{Nodes: []*model.Node{n}})
	}
	return cycles
}
