// Package command implements the undo engine: reversible commands, atomic
// batches and a pair of bounded undo/redo stacks.
package command

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToUndo = errors.New("no command to undo")
	ErrNothingToRedo = errors.New("no command to redo")
	ErrMissingThunk  = errors.New("command requires both undo and redo")
)

// Command is one reversible edit. Op names it without running it.
type Command interface {
	// Op names the edit, e.g. "add-node"
	Op() string
	Undo() error
	Redo() error
}

// Func is a Command built from a pair of thunks
type Func struct {
	name string
	undo func() error
	redo func() error
}

// New builds a Func. Both thunks are mandatory.
func New(op string, undo, redo func() error) (*Func, error) {
	if undo == nil || redo == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingThunk)
	}
	return &Func{name: op, undo: undo, redo: redo}, nil
}

func (f *Func) Op() string { return f.name }
func (f *Func) Undo() error { return f.undo() }
func (f *Func) Redo() error { return f.redo() }
func (f *Func) String() string { return f.name }
