package command

import (
	"errors"
	"fmt"
	"testing"
)

// counter is a tiny reversible state used to exercise the buffer
type counter struct {
	value int
}

func (c *counter) add(n int) Command {
	cmd, err := New(fmt.Sprintf("add-%d", n),
		func() error { c.value -= n; return nil },
		func() error { c.value += n; return nil },
	)
	if err != nil {
		panic(err)
	}
	return cmd
}

func failing(op string) Command {
	cmd, _ := New(op,
		func() error { return errors.New("undo refused") },
		func() error { return errors.New("redo refused") },
	)
	return cmd
}

func TestNewRequiresBothThunks(t *testing.T) {
	noop := func() error { return nil }
	if _, err := New("x", nil, noop); !errors.Is(err, ErrMissingThunk) {
		t.Errorf("expected ErrMissingThunk without undo, got %v", err)
	}
	if _, err := New("x", noop, nil); !errors.Is(err, ErrMissingThunk) {
		t.Errorf("expected ErrMissingThunk without redo, got %v", err)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	c := &counter{}
	buf := NewBuffer(0)

	for _, n := range []int{1, 2, 3} {
		cmd := c.add(n)
		if err := cmd.Redo(); err != nil {
			t.Fatal(err)
		}
		buf.AddUndo(cmd)
	}
	if c.value != 6 {
		t.Fatalf("expected 6, got %d", c.value)
	}

	for i := 0; i < 3; i++ {
		if _, err := buf.UndoCommands(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if c.value != 0 {
		t.Errorf("expected 0 after undoing everything, got %d", c.value)
	}
	if _, err := buf.UndoCommands(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := buf.RedoCommands(); err != nil {
			t.Fatalf("redo %d: %v", i, err)
		}
	}
	if c.value != 6 {
		t.Errorf("expected 6 after redoing everything, got %d", c.value)
	}
	if _, err := buf.RedoCommands(); !errors.Is(err, ErrNothingToRedo) {
		t.Errorf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestNewCommandClearsRedo(t *testing.T) {
	c := &counter{}
	buf := NewBuffer(0)

	first := c.add(1)
	_ = first.Redo()
	buf.AddUndo(first)
	if _, err := buf.UndoCommands(); err != nil {
		t.Fatal(err)
	}
	if !buf.CanRedo() {
		t.Fatal("expected a redo entry after undo")
	}

	second := c.add(5)
	_ = second.Redo()
	buf.AddUndo(second)
	if buf.CanRedo() {
		t.Error("recording a new command should clear the redo stack")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := &counter{}
	buf := NewBuffer(3)
	for n := 1; n <= 5; n++ {
		cmd := c.add(n)
		_ = cmd.Redo()
		buf.AddUndo(cmd)
	}

	ops := buf.UndoOps()
	want := []string{"add-5", "add-4", "add-3"}
	if len(ops) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], ops[i])
		}
	}
}

func TestBatchUndoOrderAndRollback(t *testing.T) {
	var trace []string
	step := func(name string) Command {
		cmd, _ := New(name,
			func() error { trace = append(trace, "undo "+name); return nil },
			func() error { trace = append(trace, "redo "+name); return nil },
		)
		return cmd
	}

	batch := NewBatch("compound", step("a"), step("b"))
	if err := batch.Undo(); err != nil {
		t.Fatal(err)
	}
	if len(trace) != 2 || trace[0] != "undo b" || trace[1] != "undo a" {
		t.Errorf("undo should run last-first, got %v", trace)
	}

	trace = nil
	broken := NewBatch("broken", failing("x"), step("b"))
	if err := broken.Undo(); err == nil {
		t.Fatal("expected failure")
	}
	// b was undone, x failed, so b is redone
	if len(trace) != 2 || trace[0] != "undo b" || trace[1] != "redo b" {
		t.Errorf("expected rollback of b, got %v", trace)
	}
}

func TestFailedUndoDropsBatch(t *testing.T) {
	buf := NewBuffer(0)
	buf.AddUndo(failing("bad"))

	if _, err := buf.UndoCommands(); err == nil {
		t.Fatal("expected undo failure")
	}
	if buf.CanUndo() || buf.CanRedo() {
		t.Error("a batch that fails to undo should leave both stacks")
	}
}
