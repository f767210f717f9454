package model

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Boundary is a named scope holding nodes, starts, links, child boundaries
// and annotation blocks. Boundaries form a tree rooted at the model
// system's global boundary. Each boundary guards its own collections;
// locks are always taken parent before child.
type Boundary struct {
	mu          sync.RWMutex
	id          uuid.UUID
	name        string
	description string
	parent      *Boundary

	boundaries []*Boundary
	nodes      []*Node
	starts     []*Node
	links      []Link
	comments   []*CommentBlock
	docs       []*DocumentationBlock
}

// NewBoundary creates a detached boundary
func NewBoundary(name string) (*Boundary, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrBlankName
	}
	return &Boundary{id: uuid.New(), name: name}, nil
}

func (b *Boundary) ID() uuid.UUID { return b.id }

func (b *Boundary) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// SetName renames the boundary, keeping names unique among its siblings
func (b *Boundary) SetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrBlankName
	}
	if p := b.Parent(); p != nil {
		p.mu.RLock()
		taken := p.childNamed(name, b) != nil
		p.mu.RUnlock()
		if taken {
			return fmt.Errorf("boundary %s: %w in parent", name, ErrDuplicateName)
		}
	}
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
	return nil
}

func (b *Boundary) Description() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.description
}

func (b *Boundary) SetDescription(description string) {
	b.mu.Lock()
	b.description = description
	b.mu.Unlock()
}

// Parent is nil for the global boundary and for detached boundaries
func (b *Boundary) Parent() *Boundary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parent
}

func (b *Boundary) Boundaries() []*Boundary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.boundaries)
}

func (b *Boundary) Nodes() []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.nodes)
}

func (b *Boundary) Starts() []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.starts)
}

func (b *Boundary) Links() []Link {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.links)
}

func (b *Boundary) CommentBlocks() []*CommentBlock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.comments)
}

func (b *Boundary) DocumentationBlocks() []*DocumentationBlock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.docs)
}

// childNamed finds a child boundary by case-insensitive name, ignoring
// except. Caller holds b.mu.
func (b *Boundary) childNamed(name string, except *Boundary) *Boundary {
	for _, c := range b.boundaries {
		if c != except && strings.EqualFold(c.Name(), name) {
			return c
		}
	}
	return nil
}

// Boundary returns the child boundary with the given name, or nil
func (b *Boundary) Boundary(name string) *Boundary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.childNamed(name, nil)
}

// AddBoundary creates a child boundary
func (b *Boundary) AddBoundary(name string) (*Boundary, error) {
	child, err := NewBoundary(name)
	if err != nil {
		return nil, err
	}
	if err := b.InsertBoundary(len(b.Boundaries()), child); err != nil {
		return nil, err
	}
	return child, nil
}

// InsertBoundary attaches a detached boundary at index
func (b *Boundary) InsertBoundary(index int, child *Boundary) error {
	if child == nil || child == b {
		return fmt.Errorf("insert boundary: %w", ErrNotFound)
	}
	if child.Parent() != nil {
		return fmt.Errorf("boundary %s: %w", child.Name(), ErrAttached)
	}
	if child.Contains(b) {
		return fmt.Errorf("boundary %s would contain itself", child.Name())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	name := child.Name()
	if b.childNamed(name, nil) != nil {
		return fmt.Errorf("boundary %s: %w in parent", name, ErrDuplicateName)
	}
	next, err := insertAt(b.boundaries, index, child)
	if err != nil {
		return err
	}
	b.boundaries = next
	child.mu.Lock()
	child.parent = b
	child.mu.Unlock()
	return nil
}

// RemoveBoundary detaches a child boundary and returns the index it held.
// Links crossing into the child are left alone.
func (b *Boundary) RemoveBoundary(child *Boundary) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.boundaries, child)
	if err != nil {
		return -1, fmt.Errorf("boundary: %w", err)
	}
	b.boundaries = next
	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()
	return index, nil
}

// HasStart reports whether a start named name exists, ignoring except
func (b *Boundary) HasStart(name string, except *Node) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startNamed(name, except) != nil
}

func (b *Boundary) startNamed(name string, except *Node) *Node {
	for _, s := range b.starts {
		if s != except && strings.EqualFold(s.Name(), name) {
			return s
		}
	}
	return nil
}

// Start returns the start with the given name, or nil
func (b *Boundary) Start(name string) *Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startNamed(name, nil)
}

// AddStart creates an entry point
func (b *Boundary) AddStart(name string) (*Node, error) {
	start, err := NewNode(name, StartDescription())
	if err != nil {
		return nil, err
	}
	if err := b.InsertStart(len(b.Starts()), start); err != nil {
		return nil, err
	}
	return start, nil
}

// InsertStart attaches a detached start at index
func (b *Boundary) InsertStart(index int, start *Node) error {
	if start == nil || !start.IsStart() {
		return fmt.Errorf("insert start: %w", ErrNotFound)
	}
	if start.Boundary() != nil {
		return fmt.Errorf("start %s: %w", start.Name(), ErrAttached)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startNamed(start.Name(), nil) != nil {
		return fmt.Errorf("start %s: %w", start.Name(), ErrDuplicateName)
	}
	next, err := insertAt(b.starts, index, start)
	if err != nil {
		return err
	}
	b.starts = next
	start.boundary = b
	return nil
}

// RemoveStart detaches a start and returns the index it held
func (b *Boundary) RemoveStart(start *Node) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.starts, start)
	if err != nil {
		return -1, fmt.Errorf("start: %w", err)
	}
	b.starts = next
	start.boundary = nil
	return index, nil
}

// AddNode creates a node of the described type
func (b *Boundary) AddNode(name string, desc *TypeDescription) (*Node, error) {
	n, err := NewNode(name, desc)
	if err != nil {
		return nil, err
	}
	if err := b.InsertNode(len(b.Nodes()), n); err != nil {
		return nil, err
	}
	return n, nil
}

// InsertNode attaches a detached node at index
func (b *Boundary) InsertNode(index int, n *Node) error {
	if n == nil || n.IsStart() {
		return fmt.Errorf("insert node: %w", ErrNotFound)
	}
	if n.Boundary() != nil {
		return fmt.Errorf("node %s: %w", n.Name(), ErrAttached)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := insertAt(b.nodes, index, n)
	if err != nil {
		return err
	}
	b.nodes = next
	n.boundary = b
	return nil
}

// RemoveNode detaches a node and returns the index it held. Links that
// reference the node are not touched.
func (b *Boundary) RemoveNode(n *Node) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.nodes, n)
	if err != nil {
		return -1, fmt.Errorf("node: %w", err)
	}
	b.nodes = next
	n.boundary = nil
	return index, nil
}

// FindLink returns the first link owned by b for (origin, hook), or nil
func (b *Boundary) FindLink(origin *Node, hook *Hook) Link {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.findLink(origin, hook)
}

func (b *Boundary) findLink(origin *Node, hook *Hook) Link {
	for _, l := range b.links {
		if l.Origin() == origin && l.OriginHook() == hook {
			return l
		}
	}
	return nil
}

// LinksFrom returns the links owned by b whose origin is n
func (b *Boundary) LinksFrom(n *Node) []Link {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Link
	for _, l := range b.links {
		if l.Origin() == n {
			out = append(out, l)
		}
	}
	return out
}

// AddLink connects origin's hook to destination. Single-cardinality hooks
// keep one link whose destination is swapped in place; multi-cardinality
// hooks append to the first existing link for (origin, hook).
func (b *Boundary) AddLink(origin *Node, hook *Hook, destination *Node) (Link, error) {
	if origin == nil || origin.Boundary() != b {
		return nil, fmt.Errorf("link origin: %w", ErrNotFound)
	}
	if hook == nil || !origin.OwnsHook(hook) {
		return nil, ErrForeignHook
	}
	if err := checkDestination(destination); err != nil {
		return nil, err
	}

	b.mu.Lock()
	existing := b.findLink(origin, hook)
	b.mu.Unlock()

	switch l := existing.(type) {
	case *SingleLink:
		if err := l.SetDestination(destination); err != nil {
			return nil, err
		}
		return l, nil
	case *MultiLink:
		if err := l.AddDestination(destination); err != nil {
			return nil, err
		}
		return l, nil
	}

	created, err := NewLink(origin, hook, destination)
	if err != nil {
		return nil, err
	}
	if err := b.InsertLink(len(b.Links()), created); err != nil {
		return nil, err
	}
	return created, nil
}

// InsertLink attaches a detached link at index. The origin must live in b
// and at most one link may exist per (origin, hook).
func (b *Boundary) InsertLink(index int, l Link) error {
	if l == nil {
		return fmt.Errorf("insert link: %w", ErrNotFound)
	}
	base := l.link()
	if base.boundary != nil {
		return fmt.Errorf("link %s: %w", base.id, ErrAttached)
	}
	if base.origin.Boundary() != b {
		return fmt.Errorf("link origin %s: %w in boundary %s", base.origin.Name(), ErrNotFound, b.Name())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.findLink(base.origin, base.hook) != nil {
		return fmt.Errorf("%s.%s: %w", base.origin.Name(), base.hook.Name, ErrHookLinked)
	}
	next, err := insertAt(b.links, index, l)
	if err != nil {
		return err
	}
	b.links = next
	base.boundary = b
	return nil
}

// RemoveLink detaches a link and returns the index it held
func (b *Boundary) RemoveLink(l Link) (int, error) {
	if l == nil {
		return -1, fmt.Errorf("link: %w", ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.links, l)
	if err != nil {
		return -1, fmt.Errorf("link: %w", err)
	}
	b.links = next
	l.link().boundary = nil
	return index, nil
}

// GetLinksGoingToBoundary searches b and its descendants for links with at
// least one destination owned by target. Links owned by target itself are
// excluded.
func (b *Boundary) GetLinksGoingToBoundary(target *Boundary) []Link {
	var found []Link
	stack := []*Boundary{b}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		current.mu.RLock()
		links := slices.Clone(current.links)
		children := slices.Clone(current.boundaries)
		current.mu.RUnlock()

		if current != target {
			for _, l := range links {
				if PointsInto(l, func(owner *Boundary) bool { return owner == target }) {
					found = append(found, l)
				}
			}
		}
		// push in reverse so children are visited in declaration order
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return found
}

// AddCommentBlock appends a comment
func (b *Boundary) AddCommentBlock(text string, location Rectangle) *CommentBlock {
	c := NewCommentBlock(text, location)
	b.mu.Lock()
	b.comments = append(b.comments, c)
	b.mu.Unlock()
	return c
}

func (b *Boundary) InsertCommentBlock(index int, c *CommentBlock) error {
	if c == nil {
		return fmt.Errorf("comment block: %w", ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := insertAt(b.comments, index, c)
	if err != nil {
		return err
	}
	b.comments = next
	return nil
}

func (b *Boundary) RemoveCommentBlock(c *CommentBlock) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.comments, c)
	if err != nil {
		return -1, fmt.Errorf("comment block: %w", err)
	}
	b.comments = next
	return index, nil
}

// AddDocumentationBlock appends a documentation block
func (b *Boundary) AddDocumentationBlock(text string, location Rectangle) *DocumentationBlock {
	d := NewDocumentationBlock(text, location)
	b.mu.Lock()
	b.docs = append(b.docs, d)
	b.mu.Unlock()
	return d
}

func (b *Boundary) InsertDocumentationBlock(index int, d *DocumentationBlock) error {
	if d == nil {
		return fmt.Errorf("documentation block: %w", ErrNotFound)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := insertAt(b.docs, index, d)
	if err != nil {
		return err
	}
	b.docs = next
	return nil
}

func (b *Boundary) RemoveDocumentationBlock(d *DocumentationBlock) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, index, err := removeItem(b.docs, d)
	if err != nil {
		return -1, fmt.Errorf("documentation block: %w", err)
	}
	b.docs = next
	return index, nil
}

// Walk visits b and its descendants in pre-order until fn returns false
func (b *Boundary) Walk(fn func(*Boundary) bool) bool {
	if !fn(b) {
		return false
	}
	for _, child := range b.Boundaries() {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Contains reports whether other is b or one of its descendants
func (b *Boundary) Contains(other *Boundary) bool {
	for cur := other; cur != nil; cur = cur.Parent() {
		if cur == b {
			return true
		}
	}
	return false
}

// Path lists the boundary names from below the root down to b
func (b *Boundary) Path() []string {
	var names []string
	for cur := b; cur.Parent() != nil; cur = cur.Parent() {
		names = append(names, cur.Name())
	}
	slices.Reverse(names)
	return names
}

func insertAt[T any](s []T, index int, v T) ([]T, error) {
	if index < 0 || index > len(s) {
		return s, fmt.Errorf("insert at %d of %d: %w", index, len(s), ErrIndexOutOfRange)
	}
	return slices.Insert(s, index, v), nil
}

func removeItem[T comparable](s []T, v T) ([]T, int, error) {
	index := slices.Index(s, v)
	if index < 0 {
		return s, -1, ErrNotFound
	}
	return slices.Delete(s, index, index+1), index, nil
}
