package session

import (
	"fmt"
	"slices"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/model"
)

// slot is one reversible placement of an entity in its container. A slot
// remembers the index it occupies so that detaching and re-attaching
// restores the original ordering.
type slot interface {
	attach() error
	detach() error
}

// placement adds or removes the entity held by a slot
type placement struct {
	op     string
	slot   slot
	adding bool
}

func added(op string, s slot) *placement { return &placement{op: op, slot: s, adding: true} }
func removed(op string, s slot) *placement { return &placement{op: op, slot: s} }

func (p *placement) Op() string { return p.op }

func (p *placement) Redo() error {
	if p.adding {
		return p.slot.attach()
	}
	return p.slot.detach()
}

func (p *placement) Undo() error {
	if p.adding {
		return p.slot.detach()
	}
	return p.slot.attach()
}

type nodeSlot struct {
	boundary *model.Boundary
	node     *model.Node
	index    int
}

func (s nodeSlot) attach() error {
	if s.node.IsStart() {
		return s.boundary.InsertStart(s.index, s.node)
	}
	return s.boundary.InsertNode(s.index, s.node)
}

func (s nodeSlot) detach() error {
	var err error
	if s.node.IsStart() {
		_, err = s.boundary.RemoveStart(s.node)
	} else {
		_, err = s.boundary.RemoveNode(s.node)
	}
	return err
}

type boundarySlot struct {
	parent *model.Boundary
	child  *model.Boundary
	index  int
}

func (s boundarySlot) attach() error { return s.parent.InsertBoundary(s.index, s.child) }

func (s boundarySlot) detach() error {
	_, err := s.parent.RemoveBoundary(s.child)
	return err
}

type linkSlot struct {
	boundary *model.Boundary
	link     model.Link
	index    int
}

func (s linkSlot) attach() error { return s.boundary.InsertLink(s.index, s.link) }

func (s linkSlot) detach() error {
	_, err := s.boundary.RemoveLink(s.link)
	return err
}

// destinationSlot is one entry of a multi-link's destination list
type destinationSlot struct {
	link  *model.MultiLink
	node  *model.Node
	index int
}

func (s destinationSlot) attach() error { return s.link.InsertDestination(s.index, s.node) }

func (s destinationSlot) detach() error {
	got, err := s.link.RemoveDestination(s.index)
	if err != nil {
		return err
	}
	if got != s.node {
		// the list changed underneath us; put it back and refuse
		_ = s.link.InsertDestination(s.index, got)
		return fmt.Errorf("destination %d of %s is %s, expected %s",
			s.index, s.link.OriginHook().Name, got.Name(), s.node.Name())
	}
	return nil
}

type commentSlot struct {
	boundary *model.Boundary
	block    *model.CommentBlock
	index    int
}

func (s commentSlot) attach() error { return s.boundary.InsertCommentBlock(s.index, s.block) }

func (s commentSlot) detach() error {
	_, err := s.boundary.RemoveCommentBlock(s.block)
	return err
}

type documentationSlot struct {
	boundary *model.Boundary
	block    *model.DocumentationBlock
	index    int
}

func (s documentationSlot) attach() error {
	return s.boundary.InsertDocumentationBlock(s.index, s.block)
}

func (s documentationSlot) detach() error {
	_, err := s.boundary.RemoveDocumentationBlock(s.block)
	return err
}

// moveDestination swaps the destination of a single link
func moveDestination(l *model.SingleLink, after *model.Node) (*command.Func, error) {
	before := l.Destination()
	return command.New("move-link",
		func() error { return l.SetDestination(before) },
		func() error { return l.SetDestination(after) })
}

// change records a property change as its before and after values
func change[T any](op string, set func(T) error, before, after T) (*command.Func, error) {
	return command.New(op,
		func() error { return set(before) },
		func() error { return set(after) })
}

// recorder applies commands one by one and collects them into a batch so a
// compound edit can be rolled back if a later step fails
type recorder struct {
	batch *command.Batch
}

func newRecorder(op string) *recorder {
	return &recorder{batch: command.NewBatch(op)}
}

func (r *recorder) do(c command.Command) error {
	if err := c.Redo(); err != nil {
		return err
	}
	r.batch.Add(c)
	return nil
}

// abort reverts every step applied so far
func (r *recorder) abort() {
	_ = r.batch.Undo()
}

// apply runs a single command for the edit template
func apply(c command.Command) (command.Command, error) {
	if err := c.Redo(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyNew runs a command that was just built from thunks
func applyNew(c *command.Func, err error) (command.Command, error) {
	if err != nil {
		return nil, err
	}
	return apply(c)
}

func indexOf[T comparable](items []T, v T) (int, error) {
	i := slices.Index(items, v)
	if i < 0 {
		return -1, model.ErrNotFound
	}
	return i, nil
}
