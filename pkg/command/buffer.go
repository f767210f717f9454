package command

// DefaultCapacity is the number of batches each stack keeps
const DefaultCapacity = 20

// Buffer holds the undo and redo stacks of one editing session. It is not
// safe for concurrent use; the owner serializes access with the same lock
// that guards mutation.
type Buffer struct {
	capacity int
	undo     []*Batch
	redo     []*Batch
}

// NewBuffer creates a buffer. A non-positive capacity selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

func (b *Buffer) Capacity() int { return b.capacity }

// AddUndo records a successful edit. A command that is not already a batch
// is wrapped in a one-command batch. Recording a new edit discards the
// redo stack, and the oldest entry is evicted once the stack is full.
func (b *Buffer) AddUndo(c Command) {
	batch, ok := c.(*Batch)
	if !ok {
		batch = NewBatch(c.Op(), c)
	}
	b.undo = pushBounded(b.undo, batch, b.capacity)
	b.redo = nil
}

// UndoCommands reverts the most recent batch and moves it to the redo
// stack. A batch whose undo fails is dropped from both stacks.
func (b *Buffer) UndoCommands() (*Batch, error) {
	if len(b.undo) == 0 {
		return nil, ErrNothingToUndo
	}
	batch := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	if err := batch.Undo(); err != nil {
		return batch, err
	}
	b.redo = pushBounded(b.redo, batch, b.capacity)
	return batch, nil
}

// RedoCommands reapplies the most recently undone batch
func (b *Buffer) RedoCommands() (*Batch, error) {
	if len(b.redo) == 0 {
		return nil, ErrNothingToRedo
	}
	batch := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	if err := batch.Redo(); err != nil {
		return batch, err
	}
	b.undo = pushBounded(b.undo, batch, b.capacity)
	return batch, nil
}

func (b *Buffer) CanUndo() bool { return len(b.undo) > 0 }

func (b *Buffer) CanRedo() bool { return len(b.redo) > 0 }

// UndoOps lists the op names on the undo stack, most recent first
func (b *Buffer) UndoOps() []string { return opsOf(b.undo) }

// RedoOps lists the op names on the redo stack, most recent first
func (b *Buffer) RedoOps() []string { return opsOf(b.redo) }

// Clear drops both stacks
func (b *Buffer) Clear() {
	b.undo = nil
	b.redo = nil
}

func pushBounded(stack []*Batch, batch *Batch, capacity int) []*Batch {
	stack = append(stack, batch)
	if over := len(stack) - capacity; over > 0 {
		// evict from the bottom
		for i := 0; i < over; i++ {
			stack[i] = nil
		}
		stack = append(stack[:0], stack[over:]...)
	}
	return stack
}

func opsOf(stack []*Batch) []string {
	ops := make([]string, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		ops = append(ops, stack[i].Op())
	}
	return ops
}
