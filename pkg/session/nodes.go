package session

import (
	"strings"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// AddModelSystemStart adds a start named name to boundary
func (s *EditingSession) AddModelSystemStart(user User, boundary *model.Boundary, name string, location model.Rectangle) (*model.Node, error) {
	const op = "add-start"
	if boundary == nil {
		return nil, invalidf(op, "boundary must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid(op, model.ErrBlankName)
	}

	var start *model.Node
	err := s.edit(op, user, func() (command.Command, error) {
		if !s.owns(boundary) {
			return nil, model.ErrNotFound
		}
		if boundary.HasStart(name, nil) {
			return nil, invalidf(op, "start %s already exists in boundary %s", name, boundary.Name())
		}
		n, err := model.NewNode(name, model.StartDescription())
		if err != nil {
			return nil, err
		}
		n.SetLocation(location)
		start = n
		return apply(added(op, nodeSlot{boundary, n, len(boundary.Starts())}))
	})
	if err != nil {
		return nil, err
	}
	return start, nil
}

// RemoveStart removes a start together with the links it originates
func (s *EditingSession) RemoveStart(user User, start *model.Node) error {
	const op = "remove-start"
	if start == nil || !start.IsStart() {
		return invalidf(op, "node is not a start")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(start) {
			return nil, model.ErrNotFound
		}
		rec := newRecorder(op)
		if err := s.removeNodeCascade(rec, op, start); err != nil {
			rec.abort()
			return nil, err
		}
		return rec.batch, nil
	})
}

// AddNode creates a node of type typeName in boundary
func (s *EditingSession) AddNode(user User, boundary *model.Boundary, name string, typeName model.TypeName, location model.Rectangle) (*model.Node, error) {
	const op = "add-node"
	if err := checkNodeArgs(op, boundary, name, typeName); err != nil {
		return nil, err
	}

	var node *model.Node
	err := s.edit(op, user, func() (command.Command, error) {
		n, err := s.newNode(boundary, name, typeName, location)
		if err != nil {
			return nil, err
		}
		node = n
		return apply(added(op, nodeSlot{boundary, n, len(boundary.Nodes())}))
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// RemoveNode removes a node with every link it originates. Links from
// elsewhere lose the node as a destination; single links are removed.
func (s *EditingSession) RemoveNode(user User, node *model.Node) error {
	const op = "remove-node"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		rec := newRecorder(op)
		if err := s.removeNodeCascade(rec, op, node); err != nil {
			rec.abort()
			return nil, err
		}
		return rec.batch, nil
	})
}

func (s *EditingSession) removeNodeCascade(rec *recorder, op string, n *model.Node) error {
	b := n.Boundary()
	for _, l := range b.LinksFrom(n) {
		idx, err := indexOf(b.Links(), l)
		if err != nil {
			return err
		}
		if err := rec.do(removed("remove-link", linkSlot{b, l, idx})); err != nil {
			return err
		}
	}
	for _, l := range s.ms.LinksTo(n) {
		if err := detachLink(rec, l, func(d *model.Node) bool { return d == n }); err != nil {
			return err
		}
	}

	var idx int
	var err error
	if n.IsStart() {
		idx, err = indexOf(b.Starts(), n)
	} else {
		idx, err = indexOf(b.Nodes(), n)
	}
	if err != nil {
		return err
	}
	return rec.do(removed(op, nodeSlot{b, n, idx}))
}

// detachLink removes the destinations of l matching drop. A single link is
// removed whole; a multi link keeps its remaining destinations.
func detachLink(rec *recorder, l model.Link, drop func(*model.Node) bool) error {
	owner := l.Boundary()
	switch link := l.(type) {
	case *model.SingleLink:
		if !drop(link.Destination()) {
			return nil
		}
		idx, err := indexOf(owner.Links(), l)
		if err != nil {
			return err
		}
		return rec.do(removed("remove-link", linkSlot{owner, l, idx}))
	case *model.MultiLink:
		dests := link.Destinations()
		for i := len(dests) - 1; i >= 0; i-- {
			if !drop(dests[i]) {
				continue
			}
			if err := rec.do(removed("remove-link-destination", destinationSlot{link, dests[i], i})); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetNodeName renames a node or start. Start names stay unique within
// their boundary.
func (s *EditingSession) SetNodeName(user User, node *model.Node, name string) error {
	const op = "set-node-name"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return invalid(op, model.ErrBlankName)
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		if node.IsStart() && node.Boundary().HasStart(name, node) {
			return nil, invalidf(op, "start %s already exists in boundary %s", name, node.Boundary().Name())
		}
		return applyNew(change(op, node.SetName, node.Name(), name))
	})
}

// SetNodeDescription changes a node's description
func (s *EditingSession) SetNodeDescription(user User, node *model.Node, description string) error {
	const op = "set-node-description"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		set := func(v string) error { node.SetDescription(v); return nil }
		return applyNew(change(op, set, node.Description(), description))
	})
}

// SetNodeLocation moves a node on the canvas
func (s *EditingSession) SetNodeLocation(user User, node *model.Node, location model.Rectangle) error {
	const op = "set-node-location"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		set := func(v model.Rectangle) error { node.SetLocation(v); return nil }
		return applyNew(change(op, set, node.Location(), location))
	})
}

// SetNodeDisabled enables or disables a node
func (s *EditingSession) SetNodeDisabled(user User, node *model.Node, disabled bool) error {
	const op = "set-node-disabled"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		set := func(v bool) error { node.SetDisabled(v); return nil }
		return applyNew(change(op, set, node.Disabled(), disabled))
	})
}

// SetParameterValue changes the value carried by a parameter node
func (s *EditingSession) SetParameterValue(user User, node *model.Node, value string) error {
	const op = "set-parameter-value"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	if !node.IsParameter() {
		return invalid(op, model.ErrNotParameter)
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		before, _ := node.ParameterValue()
		return applyNew(change(op, node.SetParameterValue, before, value))
	})
}

func checkNodeArgs(op string, boundary *model.Boundary, name string, typeName model.TypeName) error {
	if boundary == nil {
		return invalidf(op, "boundary must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return invalid(op, model.ErrBlankName)
	}
	if typeName == "" {
		return invalidf(op, "type must not be blank")
	}
	return nil
}

func (s *EditingSession) newNode(boundary *model.Boundary, name string, typeName model.TypeName, location model.Rectangle) (*model.Node, error) {
	if !s.owns(boundary) {
		return nil, model.ErrNotFound
	}
	desc, err := s.types.DescribeType(typeName)
	if err != nil {
		return nil, err
	}
	n, err := model.NewNode(name, desc)
	if err != nil {
		return nil, err
	}
	n.SetLocation(location)
	return n, nil
}
