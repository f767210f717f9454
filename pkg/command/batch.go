package command

import (
	"fmt"
	"strings"
)

// Batch is an ordered group of commands applied and reverted as one unit.
// Redo runs the commands in list order and Undo runs them in reverse.
// When a step fails, the steps already taken in that pass are reverted so
// the batch is either fully applied or fully reverted.
type Batch struct {
	name     string
	commands []Command
}

// NewBatch groups commands under one op name
func NewBatch(op string, commands ...Command) *Batch {
	return &Batch{name: op, commands: commands}
}

func (b *Batch) Op() string { return b.name }

// Commands returns the grouped commands in application order
func (b *Batch) Commands() []Command {
	out := make([]Command, len(b.commands))
	copy(out, b.commands)
	return out
}

func (b *Batch) Len() int { return len(b.commands) }

// Add appends a command to the batch
func (b *Batch) Add(c Command) {
	b.commands = append(b.commands, c)
}

// Undo reverts every command, last first
func (b *Batch) Undo() error {
	for i := len(b.commands) - 1; i >= 0; i-- {
		if err := b.commands[i].Undo(); err != nil {
			failure := fmt.Errorf("undo %s: %w", b.commands[i].Op(), err)
			for j := i + 1; j < len(b.commands); j++ {
				if rerr := b.commands[j].Redo(); rerr != nil {
					return fmt.Errorf("%w (rollback of %s failed: %v)", failure, b.commands[j].Op(), rerr)
				}
			}
			return failure
		}
	}
	return nil
}

// Redo reapplies every command in order
func (b *Batch) Redo() error {
	for i, c := range b.commands {
		if err := c.Redo(); err != nil {
			failure := fmt.Errorf("redo %s: %w", c.Op(), err)
			for j := i - 1; j >= 0; j-- {
				if rerr := b.commands[j].Undo(); rerr != nil {
					return fmt.Errorf("%w (rollback of %s failed: %v)", failure, b.commands[j].Op(), rerr)
				}
			}
			return failure
		}
	}
	return nil
}

func (b *Batch) String() string {
	ops := make([]string, len(b.commands))
	for i, c := range b.commands {
		ops[i] = c.Op()
	}
	return b.name + "[" + strings.Join(ops, ", ") + "]"
}
