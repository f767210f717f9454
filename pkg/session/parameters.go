package session

import (
	"slices"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// layout of generated parameter nodes relative to their owner
const (
	parameterSpacing = 120
	parameterOffsetY = 80
)

// AddNodeGenerateParameters adds a node and, for each of its parameter
// hooks, a parameter node holding the hook's default value linked to it.
// The whole group is one undo entry.
func (s *EditingSession) AddNodeGenerateParameters(user User, boundary *model.Boundary, name string, typeName model.TypeName, location model.Rectangle) (*model.Node, []*model.Node, error) {
	const op = "add-node-generate-parameters"
	if err := checkNodeArgs(op, boundary, name, typeName); err != nil {
		return nil, nil, err
	}

	var node *model.Node
	var params []*model.Node
	err := s.edit(op, user, func() (command.Command, error) {
		n, err := s.newNode(boundary, name, typeName, location)
		if err != nil {
			return nil, err
		}
		rec := newRecorder(op)
		if err := rec.do(added("add-node", nodeSlot{boundary, n, len(boundary.Nodes())})); err != nil {
			return nil, err
		}

		var created []*model.Node
		for _, hook := range n.Hooks() {
			if !hook.IsParameter || hook.ParameterType == "" {
				continue
			}
			p, err := s.generateParameter(rec, boundary, n, hook, len(created))
			if err != nil {
				rec.abort()
				return nil, err
			}
			created = append(created, p)
		}
		node, params = n, created
		return rec.batch, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return node, params, nil
}

func (s *EditingSession) generateParameter(rec *recorder, boundary *model.Boundary, owner *model.Node, hook *model.Hook, i int) (*model.Node, error) {
	desc, err := s.types.DescribeType(model.BasicParameterType(hook.ParameterType))
	if err != nil {
		return nil, err
	}
	p, err := model.NewNode(hook.Name, desc)
	if err != nil {
		return nil, err
	}
	if err := p.SetParameterValue(hook.DefaultValue); err != nil {
		return nil, err
	}
	loc := owner.Location()
	p.SetLocation(model.Rectangle{
		X:      loc.X + float32(i*parameterSpacing),
		Y:      loc.Y + parameterOffsetY,
		Width:  loc.Width,
		Height: loc.Height,
	})
	if err := rec.do(added("add-node", nodeSlot{boundary, p, len(boundary.Nodes())})); err != nil {
		return nil, err
	}

	link, err := model.NewLink(owner, hook, p)
	if err != nil {
		return nil, err
	}
	if err := rec.do(added("add-link", linkSlot{boundary, link, len(boundary.Links())})); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveNodeGenerateParameters removes a node together with the parameter
// nodes only its single parameter links reference. Parameters shared with
// other links, or reached through multi links, stay.
func (s *EditingSession) RemoveNodeGenerateParameters(user User, node *model.Node) error {
	const op = "remove-node-generate-parameters"
	if node == nil {
		return invalidf(op, "node must not be nil")
	}
	return s.edit(op, user, func() (command.Command, error) {
		if !s.ownsNode(node) {
			return nil, model.ErrNotFound
		}
		exclusive := s.exclusiveParameters(node)

		rec := newRecorder(op)
		if err := s.removeNodeCascade(rec, "remove-node", node); err != nil {
			rec.abort()
			return nil, err
		}
		for _, p := range exclusive {
			if err := s.removeNodeCascade(rec, "remove-node", p); err != nil {
				rec.abort()
				return nil, err
			}
		}
		return rec.batch, nil
	})
}

// exclusiveParameters lists the simple parameters of n: destinations of
// its parameter hooks' single links that no other link references.
// Parameters fed through multi links stay.
func (s *EditingSession) exclusiveParameters(n *model.Node) []*model.Node {
	var out []*model.Node
	for _, l := range n.Boundary().LinksFrom(n) {
		single, ok := l.(*model.SingleLink)
		if !ok || !single.OriginHook().IsParameter {
			continue
		}
		d := single.Destination()
		if d == nil || !d.IsParameter() || d == n || !s.ownsNode(d) {
			continue
		}
		if len(s.ms.LinksTo(d)) == 1 && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
