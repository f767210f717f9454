package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GlobalBoundaryName is the name of every model system's root boundary
const GlobalBoundaryName = "global"

// Header is the descriptive metadata of a model system
type Header struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"-"`
	// Digest identifies the file content last read or written at Path
	Digest      string `json:"-"`
}

// ModelSystem wraps exactly one root boundary plus its header
type ModelSystem struct {
	header Header
	global *Boundary
}

// NewModelSystem creates a model system with an empty global boundary
func NewModelSystem(header Header) *ModelSystem {
	global, _ := NewBoundary(GlobalBoundaryName)
	return &ModelSystem{header: header, global: global}
}

func (ms *ModelSystem) Header() Header { return ms.header }

func (ms *ModelSystem) SetHeader(h Header) { ms.header = h }

func (ms *ModelSystem) GlobalBoundary() *Boundary { return ms.global }

// FindBoundary looks up a boundary by ID anywhere in the tree
func (ms *ModelSystem) FindBoundary(id uuid.UUID) *Boundary {
	var found *Boundary
	ms.global.Walk(func(b *Boundary) bool {
		if b.ID() == id {
			found = b
			return false
		}
		return true
	})
	return found
}

// FindNode looks up a node or start by ID
func (ms *ModelSystem) FindNode(id uuid.UUID) *Node {
	var found *Node
	ms.global.Walk(func(b *Boundary) bool {
		for _, n := range append(b.Starts(), b.Nodes()...) {
			if n.ID() == id {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// FindLink looks up a link by ID
func (ms *ModelSystem) FindLink(id uuid.UUID) Link {
	var found Link
	ms.global.Walk(func(b *Boundary) bool {
		for _, l := range b.Links() {
			if l.ID() == id {
				found = l
				return false
			}
		}
		return true
	})
	return found
}

// FindCommentBlock returns the comment and the boundary holding it
func (ms *ModelSystem) FindCommentBlock(id uuid.UUID) (*CommentBlock, *Boundary) {
	var (
		found *CommentBlock
		owner *Boundary
	)
	ms.global.Walk(func(b *Boundary) bool {
		for _, c := range b.CommentBlocks() {
			if c.ID() == id {
				found, owner = c, b
				return false
			}
		}
		return true
	})
	return found, owner
}

// FindDocumentationBlock returns the documentation block and its boundary
func (ms *ModelSystem) FindDocumentationBlock(id uuid.UUID) (*DocumentationBlock, *Boundary) {
	var (
		found *DocumentationBlock
		owner *Boundary
	)
	ms.global.Walk(func(b *Boundary) bool {
		for _, d := range b.DocumentationBlocks() {
			if d.ID() == id {
				found, owner = d, b
				return false
			}
		}
		return true
	})
	return found, owner
}

// AllLinks returns every link in the model system, in pre-order
func (ms *ModelSystem) AllLinks() []Link {
	var links []Link
	ms.global.Walk(func(b *Boundary) bool {
		links = append(links, b.Links()...)
		return true
	})
	return links
}

// LinksTo returns every link with n among its destinations
func (ms *ModelSystem) LinksTo(n *Node) []Link {
	var links []Link
	for _, l := range ms.AllLinks() {
		for _, d := range l.Destinations() {
			if d == n {
				links = append(links, l)
				break
			}
		}
	}
	return links
}

// FindStart resolves boundary names below the root followed by a start name
func (ms *ModelSystem) FindStart(boundaries []string, start string) (*Node, error) {
	current := ms.global
	for _, name := range boundaries {
		next := current.Boundary(name)
		if next == nil {
			return nil, fmt.Errorf("boundary %s under %s: %w", name, current.Name(), ErrNotFound)
		}
		current = next
	}
	s := current.Start(start)
	if s == nil {
		return nil, fmt.Errorf("start %s in %s: %w", start, current.Name(), ErrNotFound)
	}
	return s, nil
}

// Construction is the result of preparing a model system for execution
type Construction struct {
	Instances map[*Node]any
}

// Construct checks that every enabled node has its required hooks
// satisfied by enabled links to enabled modules, then asks ctor (when not
// nil) for an instance of each enabled node. Starts are entry points and
// are not checked. All problems are reported.
func (ms *ModelSystem) Construct(ctor ModuleConstructor) (*Construction, error) {
	var problems []error
	linksByOrigin := make(map[*Node][]Link)
	for _, l := range ms.AllLinks() {
		linksByOrigin[l.Origin()] = append(linksByOrigin[l.Origin()], l)
	}

	var nodes []*Node
	ms.global.Walk(func(b *Boundary) bool {
		nodes = append(nodes, b.Starts()...)
		nodes = append(nodes, b.Nodes()...)
		return true
	})

	for _, n := range nodes {
		if n.Disabled() || n.IsStart() {
			continue
		}
		for _, h := range n.Hooks() {
			if err := checkHook(n, h, linksByOrigin[n]); err != nil {
				problems = append(problems, err)
			}
		}
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	c := &Construction{Instances: make(map[*Node]any)}
	if ctor == nil {
		return c, nil
	}
	for _, n := range nodes {
		if n.Disabled() || n.IsStart() {
			continue
		}
		inst, err := ctor.ConstructInstance(n.Type(), n)
		if err != nil {
			problems = append(problems, fmt.Errorf("construct %s: %w", qualifiedName(n), err))
			continue
		}
		c.Instances[n] = inst
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return c, nil
}

func checkHook(n *Node, h *Hook, links []Link) error {
	var link Link
	for _, l := range links {
		if l.OriginHook() == h {
			link = l
			break
		}
	}

	switch l := link.(type) {
	case *SingleLink:
		if h.Cardinality == Single && (l.Disabled() || l.Destination().Disabled()) {
			return fmt.Errorf("%s.%s: a required link must be enabled and point to an enabled module", qualifiedName(n), h.Name)
		}
		return nil
	case *MultiLink:
		if h.Cardinality != AtLeastOne {
			return nil
		}
		if !l.Disabled() {
			for _, d := range l.Destinations() {
				if !d.Disabled() {
					return nil
				}
			}
		}
		return fmt.Errorf("%s.%s: requires at least one enabled module", qualifiedName(n), h.Name)
	}

	if h.Cardinality.IsRequired() {
		return fmt.Errorf("%s.%s: required hook is not linked", qualifiedName(n), h.Name)
	}
	return nil
}

func qualifiedName(n *Node) string {
	if b := n.Boundary(); b != nil {
		if path := b.Path(); len(path) > 0 {
			return strings.Join(path, ".") + "." + n.Name()
		}
	}
	return n.Name()
}
