// Package session is the editing facade over a model system. Every
// mutation is validated, checked against the access-control collaborator,
// applied, and recorded as an undoable command under one session lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ritzau/msedit/pkg/command"
	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/persist"
	"github.com/ritzau/msedit/pkg/run"
	"github.com/ritzau/msedit/pkg/startpath"
)

// ErrNoDispatcher is returned by Run when the session has no run dispatcher
var ErrNoDispatcher = errors.New("no run dispatcher configured")

// Change describes an applied edit, undo, redo or reload
type Change struct {
	Op          string
	User        User
	ModelSystem string
}

// Options configures an EditingSession
type Options struct {
	// Types resolves type names for new nodes and parameters. Required.
	Types model.TypeDescriber
	// Access is consulted before every mutation. Required.
	Access AccessChecker
	// Resource is the name passed to Access; defaults to the header path,
	// then the header name.
	Resource     string
	UndoCapacity int
	Dispatcher   run.Dispatcher
	// OnChange is called after each successful mutation, outside the lock.
	OnChange func(Change)
}

// EditingSession owns a model system and its undo history
type EditingSession struct {
	mu       sync.Mutex
	ms       *model.ModelSystem
	types    model.TypeDescriber
	access   AccessChecker
	resource string
	buffer   *command.Buffer
	dispatch run.Dispatcher
	onChange func(Change)
	dirty    bool
}

// New creates a session for ms
func New(ms *model.ModelSystem, opts Options) *EditingSession {
	if ms == nil || opts.Types == nil || opts.Access == nil {
		panic("session: model system, types and access checker are required")
	}
	resource := opts.Resource
	if resource == "" {
		resource = ms.Header().Path
	}
	if resource == "" {
		resource = ms.Header().Name
	}
	return &EditingSession{
		ms:       ms,
		types:    opts.Types,
		access:   opts.Access,
		resource: resource,
		buffer:   command.NewBuffer(opts.UndoCapacity),
		dispatch: opts.Dispatcher,
		onChange: opts.OnChange,
	}
}

// ModelSystem returns the edited model system. Reads made outside View may
// race with concurrent edits.
func (s *EditingSession) ModelSystem() *model.ModelSystem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ms
}

// View runs fn with the session locked so it sees a consistent graph
func (s *EditingSession) View(fn func(ms *model.ModelSystem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ms)
}

// Resource is the access-control name of the session
func (s *EditingSession) Resource() string { return s.resource }

// Dirty reports whether there are edits since the last save or reload
func (s *EditingSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// UndoOps lists the undo history, most recent first
func (s *EditingSession) UndoOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.UndoOps()
}

// RedoOps lists the redo history, most recent first
func (s *EditingSession) RedoOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.RedoOps()
}

func (s *EditingSession) authorize(op string, user User) error {
	if user == "" {
		return invalid(op, ErrBlankUser)
	}
	if !s.access.HasWriteAccess(user, s.resource) {
		logging.Warn("edit refused", "op", op, "user", user, "resource", s.resource)
		return unauthorized(op, user, s.resource)
	}
	return nil
}

// edit runs the mutation template. build applies the change with the
// session locked and returns the command to record; a build error must
// leave the graph unmodified.
func (s *EditingSession) edit(op string, user User, build func() (command.Command, error)) error {
	if err := s.authorize(op, user); err != nil {
		return err
	}

	s.mu.Lock()
	cmd, err := build()
	if err != nil {
		s.mu.Unlock()
		var se *Error
		if errors.As(err, &se) {
			return err
		}
		return invalid(op, err)
	}
	s.buffer.AddUndo(cmd)
	s.dirty = true
	name := s.ms.Header().Name
	s.mu.Unlock()

	logging.Debug("edit applied", "op", cmd.Op(), "user", user, "modelSystem", name)
	s.notify(Change{Op: cmd.Op(), User: user, ModelSystem: name})
	return nil
}

func (s *EditingSession) notify(c Change) {
	if s.onChange != nil {
		s.onChange(c)
	}
}

// Undo reverts the most recent edit
func (s *EditingSession) Undo(user User) error {
	return s.history("undo", user, s.buffer.UndoCommands)
}

// Redo re-applies the most recently undone edit
func (s *EditingSession) Redo(user User) error {
	return s.history("redo", user, s.buffer.RedoCommands)
}

func (s *EditingSession) history(op string, user User, step func() (*command.Batch, error)) error {
	if err := s.authorize(op, user); err != nil {
		return err
	}
	s.mu.Lock()
	batch, err := step()
	if err != nil {
		s.mu.Unlock()
		return invalid(op, err)
	}
	s.dirty = true
	name := s.ms.Header().Name
	s.mu.Unlock()

	logging.Debug("history step", "op", op, "command", batch.Op(), "user", user)
	s.notify(Change{Op: op + " " + batch.Op(), User: user, ModelSystem: name})
	return nil
}

// Save writes the model system to its header path
func (s *EditingSession) Save(user User) error {
	if err := s.authorize("save", user); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.ms.Header().Path
	if path == "" {
		return invalidf("save", "model system %s has no file path", s.ms.Header().Name)
	}
	if err := persist.WriteFile(path, s.ms); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	s.dirty = false
	logging.Info("model system saved", "path", path, "user", user)
	return nil
}

// Reload replaces the edited model system, typically after the file
// changed on disk. The undo history does not apply to the new graph and is
// dropped.
func (s *EditingSession) Reload(ms *model.ModelSystem) {
	s.mu.Lock()
	s.ms = ms
	s.buffer.Clear()
	s.dirty = false
	name := ms.Header().Name
	s.mu.Unlock()

	logging.Info("model system reloaded", "modelSystem", name)
	s.notify(Change{Op: "reload", ModelSystem: name})
}

// Construct validates the current graph and instantiates its modules
func (s *EditingSession) Construct(ctor model.ModuleConstructor) (*model.Construction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ms.Construct(ctor)
}

// Run snapshots the model system and hands it to the run dispatcher,
// starting execution at the start named by path.
func (s *EditingSession) Run(ctx context.Context, user User, path, workDir string) (string, <-chan run.Event, error) {
	if err := s.authorize("run", user); err != nil {
		return "", nil, err
	}
	if s.dispatch == nil {
		return "", nil, invalid("run", ErrNoDispatcher)
	}

	s.mu.Lock()
	_, err := startpath.Resolve(s.ms, path)
	var doc []byte
	if err == nil {
		doc, err = persist.Marshal(s.ms)
	}
	name := s.ms.Header().Name
	s.mu.Unlock()
	if err != nil {
		return "", nil, invalid("run", err)
	}

	req := run.Request{
		ID:          uuid.NewString(),
		ModelSystem: name,
		Start:       path,
		User:        string(user),
		Document:    doc,
		WorkDir:     workDir,
	}
	events, err := s.dispatch.Dispatch(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("run %s: %w", name, err)
	}
	logging.Info("run dispatched", "run", req.ID, "modelSystem", name, "start", path, "user", user)
	return req.ID, events, nil
}

// owns reports whether b is attached to this session's model system
func (s *EditingSession) owns(b *model.Boundary) bool {
	return b != nil && s.ms.GlobalBoundary().Contains(b)
}

func (s *EditingSession) ownsNode(n *model.Node) bool {
	return n != nil && s.owns(n.Boundary())
}

func (s *EditingSession) ownsLink(l model.Link) bool {
	return l != nil && s.owns(l.Boundary())
}
