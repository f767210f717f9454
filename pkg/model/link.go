package model

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Link is a directed edge from (origin node, origin hook) to one or more
// destination nodes. It is implemented by *SingleLink and *MultiLink.
type Link interface {
	ID() uuid.UUID
	Origin() *Node
	OriginHook() *Hook
	Disabled() bool
	SetDisabled(disabled bool)
	// Destinations returns a copy of the destination list
	Destinations() []*Node
	// Boundary is the boundary that owns the link, nil while detached
	Boundary() *Boundary

	link() *linkBase
}

type linkBase struct {
	id       uuid.UUID
	origin   *Node
	hook     *Hook
	disabled bool
	boundary *Boundary
}

func (l *linkBase) ID() uuid.UUID { return l.id }
func (l *linkBase) Origin() *Node { return l.origin }
func (l *linkBase) OriginHook() *Hook { return l.hook }
func (l *linkBase) Disabled() bool { return l.disabled }
func (l *linkBase) SetDisabled(disabled bool) { l.disabled = disabled }
func (l *linkBase) Boundary() *Boundary { return l.boundary }
func (l *linkBase) link() *linkBase { return l }

func newLinkBase(origin *Node, hook *Hook) (linkBase, error) {
	if origin == nil || hook == nil {
		return linkBase{}, fmt.Errorf("link: %w", ErrNotFound)
	}
	if !origin.OwnsHook(hook) {
		return linkBase{}, fmt.Errorf("link from %s.%s: %w", origin.Name(), hook.Name, ErrForeignHook)
	}
	return linkBase{id: uuid.New(), origin: origin, hook: hook}, nil
}

func checkDestination(n *Node) error {
	if n == nil {
		return fmt.Errorf("destination: %w", ErrNotFound)
	}
	if n.IsStart() {
		return ErrStartDestination
	}
	return nil
}

// SingleLink points at exactly one destination
type SingleLink struct {
	linkBase
	destination *Node
}

// NewSingleLink creates a detached link for a Single or SingleOptional hook
func NewSingleLink(origin *Node, hook *Hook, destination *Node) (*SingleLink, error) {
	base, err := newLinkBase(origin, hook)
	if err != nil {
		return nil, err
	}
	if hook.Cardinality.IsMulti() {
		return nil, fmt.Errorf("hook %s is %s: %w", hook.Name, hook.Cardinality, ErrNotSingleLink)
	}
	if err := checkDestination(destination); err != nil {
		return nil, err
	}
	return &SingleLink{linkBase: base, destination: destination}, nil
}

func (l *SingleLink) Destination() *Node { return l.destination }

// SetDestination overwrites the single slot in place
func (l *SingleLink) SetDestination(n *Node) error {
	if err := checkDestination(n); err != nil {
		return err
	}
	l.destination = n
	return nil
}

func (l *SingleLink) Destinations() []*Node {
	return []*Node{l.destination}
}

// MultiLink holds an ordered destination list. Removing the last
// destination does not remove the link.
type MultiLink struct {
	linkBase
	destinations []*Node
}

// NewMultiLink creates a detached link for an AtLeastOne or AnyNumber hook
func NewMultiLink(origin *Node, hook *Hook, destinations ...*Node) (*MultiLink, error) {
	base, err := newLinkBase(origin, hook)
	if err != nil {
		return nil, err
	}
	if !hook.Cardinality.IsMulti() {
		return nil, fmt.Errorf("hook %s is %s: %w", hook.Name, hook.Cardinality, ErrNotMultiLink)
	}
	for _, d := range destinations {
		if err := checkDestination(d); err != nil {
			return nil, err
		}
	}
	return &MultiLink{linkBase: base, destinations: slices.Clone(destinations)}, nil
}

// NewLink creates a detached link of the kind hook's cardinality calls for,
// with destination as its first destination
func NewLink(origin *Node, hook *Hook, destination *Node) (Link, error) {
	if hook != nil && hook.Cardinality.IsMulti() {
		l, err := NewMultiLink(origin, hook, destination)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	l, err := NewSingleLink(origin, hook, destination)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *MultiLink) Destinations() []*Node {
	return slices.Clone(l.destinations)
}

func (l *MultiLink) Len() int { return len(l.destinations) }

// Destination returns the destination at index
func (l *MultiLink) Destination(index int) (*Node, error) {
	if index < 0 || index >= len(l.destinations) {
		return nil, fmt.Errorf("destination %d of %d: %w", index, len(l.destinations), ErrIndexOutOfRange)
	}
	return l.destinations[index], nil
}

// AddDestination appends n
func (l *MultiLink) AddDestination(n *Node) error {
	return l.InsertDestination(len(l.destinations), n)
}

// InsertDestination puts n at index, shifting later destinations
func (l *MultiLink) InsertDestination(index int, n *Node) error {
	if err := checkDestination(n); err != nil {
		return err
	}
	if index < 0 || index > len(l.destinations) {
		return fmt.Errorf("insert at %d of %d: %w", index, len(l.destinations), ErrIndexOutOfRange)
	}
	l.destinations = slices.Insert(l.destinations, index, n)
	return nil
}

// RemoveDestination removes and returns the destination at index
func (l *MultiLink) RemoveDestination(index int) (*Node, error) {
	if index < 0 || index >= len(l.destinations) {
		return nil, fmt.Errorf("remove at %d of %d: %w", index, len(l.destinations), ErrIndexOutOfRange)
	}
	n := l.destinations[index]
	l.destinations = slices.Delete(l.destinations, index, index+1)
	return n, nil
}

// PointsInto reports whether any destination of l is owned by one of the
// given boundaries.
func PointsInto(l Link, in func(*Boundary) bool) bool {
	for _, d := range l.Destinations() {
		if d != nil && d.Boundary() != nil && in(d.Boundary()) {
			return true
		}
	}
	return false
}
