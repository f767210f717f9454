package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/persist"
)

// ErrExists is returned by Create when the target file already exists
var ErrExists = errors.New("model system already exists")

// Manager shares one EditingSession per model-system file between all
// users that open it
type Manager struct {
	mu       sync.Mutex
	opts     Options
	sessions map[string]*managed
}

type managed struct {
	session *EditingSession
	refs    int
}

// NewManager creates a manager whose sessions are configured from opts.
// Resource is replaced with each file's path.
func NewManager(opts Options) *Manager {
	if opts.Types == nil || opts.Access == nil {
		panic("session: manager needs types and an access checker")
	}
	return &Manager{opts: opts, sessions: make(map[string]*managed)}
}

func key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Open returns the session for path, loading the file on first use
func (m *Manager) Open(user User, path string) (*EditingSession, error) {
	const op = "open"
	if user == "" {
		return nil, invalid(op, ErrBlankUser)
	}
	k, err := key(path)
	if err != nil {
		return nil, invalid(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.sessions[k]; ok {
		entry.refs++
		return entry.session, nil
	}

	ms, err := persist.ReadFile(k, m.opts.Types)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", k, err)
	}
	s := m.newSession(ms, k)
	m.sessions[k] = &managed{session: s, refs: 1}
	logging.Info("session opened", "path", k, "user", user)
	return s, nil
}

// Create writes a new empty model system to path and opens a session on it
func (m *Manager) Create(user User, path string, header model.Header) (*EditingSession, error) {
	const op = "create"
	if user == "" {
		return nil, invalid(op, ErrBlankUser)
	}
	if header.Name == "" {
		return nil, invalid(op, model.ErrBlankName)
	}
	k, err := key(path)
	if err != nil {
		return nil, invalid(op, err)
	}
	if !m.opts.Access.HasWriteAccess(user, k) {
		return nil, unauthorized(op, user, k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[k]; ok {
		return nil, invalid(op, ErrExists)
	}
	if _, err := os.Stat(k); err == nil {
		return nil, invalid(op, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("create %s: %w", k, err)
	}

	header.Path = k
	ms := model.NewModelSystem(header)
	if err := persist.WriteFile(k, ms); err != nil {
		return nil, fmt.Errorf("create %s: %w", k, err)
	}
	s := m.newSession(ms, k)
	m.sessions[k] = &managed{session: s, refs: 1}
	logging.Info("model system created", "path", k, "user", user)
	return s, nil
}

func (m *Manager) newSession(ms *model.ModelSystem, path string) *EditingSession {
	h := ms.Header()
	h.Path = path
	ms.SetHeader(h)
	opts := m.opts
	opts.Resource = path
	return New(ms, opts)
}

// Lookup returns an already open session without taking a reference
func (m *Manager) Lookup(path string) (*EditingSession, bool) {
	k, err := key(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[k]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Close drops one reference to the session for path and forgets it when
// the last user is gone. Unsaved edits are discarded.
func (m *Manager) Close(path string) error {
	k, err := key(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[k]
	if !ok {
		return fmt.Errorf("close %s: %w", k, model.ErrNotFound)
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.sessions, k)
		if entry.session.Dirty() {
			logging.Warn("closing session with unsaved edits", "path", k)
		}
		logging.Debug("session closed", "path", k)
	}
	return nil
}

// Paths lists the files with open sessions
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		out = append(out, k)
	}
	return out
}
