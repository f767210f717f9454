package web

import (
	"github.com/ritzau/msedit/pkg/cycles"
	"github.com/ritzau/msedit/pkg/graph"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/startpath"
)

// ModelSystemView is the editable model system as served to clients
type ModelSystemView struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Path        string       `json:"path,omitempty"`
	Dirty       bool         `json:"dirty"`
	UndoOps     []string     `json:"undo"`
	RedoOps     []string     `json:"redo"`
	Global      BoundaryView `json:"global"`
}

// BoundaryView is a boundary and everything it owns
type BoundaryView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Starts        []NodeView     `json:"starts"`
	Nodes         []NodeView     `json:"nodes"`
	Links         []LinkView     `json:"links"`
	Comments      []BlockView    `json:"comments"`
	Documentation []BlockView    `json:"documentation"`
	Boundaries    []BoundaryView `json:"boundaries"`
}

// NodeView is a node or start
type NodeView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Location    model.Rectangle `json:"location"`
	Disabled    bool            `json:"disabled"`
	Parameter   *string         `json:"parameter,omitempty"`
	StartPath   string          `json:"start_path,omitempty"` // set for starts only
	Hooks       []HookView      `json:"hooks"`
}

// HookView describes one hook of a node's type
type HookView struct {
	Name          string `json:"name"`
	Cardinality   string `json:"cardinality"`
	Type          string `json:"type,omitempty"`
	ParameterType string `json:"parameter_type,omitempty"`
}

// LinkView is a link with its destinations in order
type LinkView struct {
	ID           string   `json:"id"`
	Origin       string   `json:"origin"`
	Hook         string   `json:"hook"`
	Multi        bool     `json:"multi"`
	Destinations []string `json:"destinations"`
	Disabled     bool     `json:"disabled"`
}

// BlockView is a comment or documentation block
type BlockView struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Location model.Rectangle `json:"location"`
}

func viewModelSystem(ms *model.ModelSystem) ModelSystemView {
	h := ms.Header()
	return ModelSystemView{
		Name:        h.Name,
		Description: h.Description,
		Path:        h.Path,
		Global:      viewBoundary(ms.GlobalBoundary()),
	}
}

func viewBoundary(b *model.Boundary) BoundaryView {
	v := BoundaryView{
		ID:            b.ID().String(),
		Name:          b.Name(),
		Description:   b.Description(),
		Starts:        []NodeView{},
		Nodes:         []NodeView{},
		Links:         []LinkView{},
		Comments:      []BlockView{},
		Documentation: []BlockView{},
		Boundaries:    []BoundaryView{},
	}
	for _, n := range b.Starts() {
		v.Starts = append(v.Starts, viewNode(n))
	}
	for _, n := range b.Nodes() {
		v.Nodes = append(v.Nodes, viewNode(n))
	}
	for _, l := range b.Links() {
		v.Links = append(v.Links, viewLink(l))
	}
	for _, c := range b.CommentBlocks() {
		v.Comments = append(v.Comments, BlockView{ID: c.ID().String(), Text: c.Text(), Location: c.Location()})
	}
	for _, d := range b.DocumentationBlocks() {
		v.Documentation = append(v.Documentation, BlockView{ID: d.ID().String(), Text: d.Text(), Location: d.Location()})
	}
	for _, child := range b.Boundaries() {
		v.Boundaries = append(v.Boundaries, viewBoundary(child))
	}
	return v
}

func viewNode(n *model.Node) NodeView {
	v := NodeView{
		ID:          n.ID().String(),
		Name:        n.Name(),
		Type:        string(n.Type()),
		Description: n.Description(),
		Location:    n.Location(),
		Disabled:    n.Disabled(),
		Hooks:       make([]HookView, 0, len(n.Hooks())),
	}
	if value, ok := n.ParameterValue(); ok {
		v.Parameter = &value
	}
	if n.IsStart() {
		v.StartPath = startpath.Of(n)
	}
	for _, h := range n.Hooks() {
		v.Hooks = append(v.Hooks, HookView{
			Name:          h.Name,
			Cardinality:   h.Cardinality.String(),
			Type:          string(h.Type),
			ParameterType: string(h.ParameterType),
		})
	}
	return v
}

func viewLink(l model.Link) LinkView {
	v := LinkView{
		ID:           l.ID().String(),
		Origin:       l.Origin().ID().String(),
		Hook:         l.OriginHook().Name,
		Multi:        l.OriginHook().Cardinality.IsMulti(),
		Destinations: []string{},
		Disabled:     l.Disabled(),
	}
	for _, d := range l.Destinations() {
		v.Destinations = append(v.Destinations, d.ID().String())
	}
	return v
}

// GraphNode is a vertex of the canvas graph: a boundary, start or node
type GraphNode struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Type     string `json:"type"`   // "boundary", "start" or the module type
	Parent   string `json:"parent"` // owning boundary, empty for the global boundary
	Disabled bool   `json:"disabled,omitempty"`
	Distance *int   `json:"distance,omitempty"` // links from the focus node, focused views only
}

// GraphEdge is one origin-to-destination pair of a link
type GraphEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Link     string `json:"link"`
	Hook     string `json:"hook"`
	Index    int    `json:"index"` // position in the link's destination list
	Disabled bool   `json:"disabled,omitempty"`
}

// GraphData is the flattened model system for canvas rendering
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

func buildGraphData(ms *model.ModelSystem) *GraphData {
	data := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	ms.GlobalBoundary().Walk(func(b *model.Boundary) bool {
		parent := ""
		if b.Parent() != nil {
			parent = b.Parent().ID().String()
		}
		data.Nodes = append(data.Nodes, GraphNode{
			ID:     b.ID().String(),
			Label:  b.Name(),
			Type:   "boundary",
			Parent: parent,
		})
		for _, n := range b.Starts() {
			data.Nodes = append(data.Nodes, GraphNode{
				ID:       n.ID().String(),
				Label:    n.Name(),
				Type:     "start",
				Parent:   b.ID().String(),
				Disabled: n.Disabled(),
			})
		}
		for _, n := range b.Nodes() {
			data.Nodes = append(data.Nodes, GraphNode{
				ID:       n.ID().String(),
				Label:    n.Name(),
				Type:     string(n.Type()),
				Parent:   b.ID().String(),
				Disabled: n.Disabled(),
			})
		}
		for _, l := range b.Links() {
			for i, d := range l.Destinations() {
				data.Edges = append(data.Edges, GraphEdge{
					Source:   l.Origin().ID().String(),
					Target:   d.ID().String(),
					Link:     l.ID().String(),
					Hook:     l.OriginHook().Name,
					Index:    i,
					Disabled: l.Disabled(),
				})
			}
		}
		return true
	})
	return data
}

// focusGraph keeps the part of data within depth links of focus, plus
// the boundaries enclosing it
func focusGraph(data *GraphData, ms *model.ModelSystem, focus *model.Node, depth int) *GraphData {
	near := graph.Build(ms, graph.Options{IncludeDisabled: true}).Neighborhood(focus, depth)
	dist := make(map[string]int, len(near))
	keep := make(map[string]bool)
	for n, d := range near {
		dist[n.ID().String()] = d
		for b := n.Boundary(); b != nil; b = b.Parent() {
			keep[b.ID().String()] = true
		}
	}

	focused := &GraphData{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	for _, gn := range data.Nodes {
		if d, ok := dist[gn.ID]; ok {
			gn.Distance = &d
			focused.Nodes = append(focused.Nodes, gn)
		} else if keep[gn.ID] {
			focused.Nodes = append(focused.Nodes, gn)
		}
	}
	for _, e := range data.Edges {
		_, from := dist[e.Source]
		_, to := dist[e.Target]
		if from && to {
			focused.Edges = append(focused.Edges, e)
		}
	}
	return focused
}

// AnalysisView reports structural problems of the enabled graph
type AnalysisView struct {
	Valid       bool       `json:"valid"`
	Problem     string     `json:"problem,omitempty"`
	Unreachable []string   `json:"unreachable"`
	Cycles      [][]string `json:"cycles"`
}

func buildAnalysis(ms *model.ModelSystem) AnalysisView {
	lg := graph.Build(ms, graph.Options{})
	v := AnalysisView{Valid: true, Unreachable: []string{}, Cycles: [][]string{}}
	for _, n := range lg.Unreachable() {
		v.Unreachable = append(v.Unreachable, n.ID().String())
	}
	for _, c := range cycles.FindLinkCycles(lg) {
		ids := make([]string, len(c.Nodes))
		for i, n := range c.Nodes {
			ids[i] = n.ID().String()
		}
		v.Cycles = append(v.Cycles, ids)
	}
	if _, err := ms.Construct(nil); err != nil {
		v.Valid = false
		v.Problem = err.Error()
	}
	return v
}
