package session

import (
	"strings"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// AddBoundary creates a child boundary under parent
func (s *EditingSession) AddBoundary(user User, parent *model.Boundary, name string) (*model.Boundary, error) {
	const op = "add-boundary"
	if parent == nil {
		return nil, invalidf(op, "parent boundary must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return nil, invalid(op, model.ErrBlankName)
	}

	var child *model.Boundary
	err := s.edit(op, user, func() (command.Command, error) {
		if !s.owns(parent) {
			return nil, model.ErrNotFound
		}
		if parent.Boundary(name) != nil {
			return nil, invalidf(op, "boundary %s already exists in %s", name, parent.Name())
		}
		b, err := model.NewBoundary(name)
		if err != nil {
			return nil, err
		}
		child = b
		return apply(added(op, boundarySlot{parent, b, len(parent.Boundaries())}))
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// RemoveBoundary removes a boundary and its subtree. Links from outside
// the subtree lose their destinations inside it first; single links are
// removed whole. The global boundary cannot be removed.
func (s *EditingSession) RemoveBoundary(user User, boundary *model.Boundary) error {
	const op = "remove-boundary"
	if boundary == nil {
		return invalidf(op, "boundary must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		parent := boundary.Parent()
		if parent == nil {
			if boundary == s.ms.GlobalBoundary() {
				return nil, invalidf(op, "the global boundary cannot be removed")
			}
			return nil, model.ErrNotFound
		}
		if !s.owns(parent) {
			return nil, model.ErrNotFound
		}

		rec := newRecorder(op)
		inside := func(n *model.Node) bool { return n != nil && boundary.Contains(n.Boundary()) }
		for _, l := range s.linksInto(boundary) {
			if err := detachLink(rec, l, inside); err != nil {
				rec.abort()
				return nil, err
			}
		}
		idx, err := indexOf(parent.Boundaries(), boundary)
		if err == nil {
			err = rec.do(removed(op, boundarySlot{parent, boundary, idx}))
		}
		if err != nil {
			rec.abort()
			return nil, err
		}
		return rec.batch, nil
	})
}

// linksInto collects links owned outside root with a destination somewhere
// in root's subtree
func (s *EditingSession) linksInto(root *model.Boundary) []model.Link {
	global := s.ms.GlobalBoundary()
	seen := make(map[model.Link]bool)
	var out []model.Link
	root.Walk(func(target *model.Boundary) bool {
		for _, l := range global.GetLinksGoingToBoundary(target) {
			if seen[l] || root.Contains(l.Boundary()) {
				continue
			}
			seen[l] = true
			out = append(out, l)
		}
		return true
	})
	return out
}

// SetBoundaryName renames a boundary; names stay unique among siblings
func (s *EditingSession) SetBoundaryName(user User, boundary *model.Boundary, name string) error {
	const op = "set-boundary-name"
	if boundary == nil {
		return invalidf(op, "boundary must not be nil")
	}
	if strings.TrimSpace(name) == "" {
		return invalid(op, model.ErrBlankName)
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.owns(boundary) {
			return nil, model.ErrNotFound
		}
		return applyNew(change(op, boundary.SetName, boundary.Name(), name))
	})
}

// SetBoundaryDescription changes a boundary's description
func (s *EditingSession) SetBoundaryDescription(user User, boundary *model.Boundary, description string) error {
	const op = "set-boundary-description"
	if boundary == nil {
		return invalidf(op, "boundary must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.owns(boundary) {
			return nil, model.ErrNotFound
		}
		set := func(v string) error { boundary.SetDescription(v); return nil }
		return applyNew(change(op, set, boundary.Description(), description))
	})
}
