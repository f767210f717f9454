package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Rectangle is a 2-D placement on the editing canvas
type Rectangle struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Node is a named, typed vertex of the model system graph.
// A Start is a Node whose type is StartType.
type Node struct {
	id          uuid.UUID
	name        string
	desc        *TypeDescription
	description string
	location    Rectangle
	disabled    bool
	parameter   *string
	boundary    *Boundary
}

// NewNode creates a detached node. Parameter-typed nodes start with an
// empty parameter value.
func NewNode(name string, desc *TypeDescription) (*Node, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankName
	}
	if desc == nil {
		return nil, fmt.Errorf("node %s: %w", name, ErrUnknownType)
	}
	n := &Node{
		id:   uuid.New(),
		name: name,
		desc: desc,
	}
	if desc.IsParameter {
		empty := ""
		n.parameter = &empty
	}
	return n, nil
}

func (n *Node) ID() uuid.UUID { return n.id }

func (n *Node) Name() string { return n.name }

// SetName renames the node. Start name uniqueness is checked by the boundary.
func (n *Node) SetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrBlankName
	}
	n.name = name
	return nil
}

func (n *Node) Type() TypeName { return n.desc.Name }

func (n *Node) TypeDescription() *TypeDescription { return n.desc }

// Hooks is exactly the type's declared hook set
func (n *Node) Hooks() []*Hook { return n.desc.Hooks }

// Hook returns the named hook, or nil
func (n *Node) Hook(name string) *Hook { return n.desc.Hook(name) }

// OwnsHook reports whether h is one of this node's hooks
func (n *Node) OwnsHook(h *Hook) bool {
	for _, own := range n.desc.Hooks {
		if own == h {
			return true
		}
	}
	return false
}

func (n *Node) IsStart() bool { return n.desc.Name == StartType }

func (n *Node) IsParameter() bool { return n.desc.IsParameter }

func (n *Node) Description() string { return n.description }

func (n *Node) SetDescription(description string) { n.description = description }

func (n *Node) Location() Rectangle { return n.location }

func (n *Node) SetLocation(r Rectangle) { n.location = r }

func (n *Node) Disabled() bool { return n.disabled }

func (n *Node) SetDisabled(disabled bool) { n.disabled = disabled }

// ParameterValue returns the value of a parameter node
func (n *Node) ParameterValue() (string, bool) {
	if n.parameter == nil {
		return "", false
	}
	return *n.parameter, true
}

// SetParameterValue fails for nodes whose type is not a parameter
func (n *Node) SetParameterValue(value string) error {
	if n.parameter == nil {
		return fmt.Errorf("node %s: %w", n.name, ErrNotParameter)
	}
	n.parameter = &value
	return nil
}

// Boundary is the owning boundary, or nil while the node is detached
func (n *Node) Boundary() *Boundary { return n.boundary }

func (n *Node) String() string {
	return fmt.Sprintf("%s (%s)", n.name, n.desc.Name)
}
