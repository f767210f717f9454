package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/msedit/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeModelSystem ChangeType = iota
	ChangeTypeCatalogue
)

func (c ChangeType) String() string {
	if c == ChangeTypeCatalogue {
		return "type-catalogue"
	}
	return "model-system"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches model-system files and the type catalogue. Parent
// directories are watched rather than the files themselves so that atomic
// replace-by-rename saves are seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType // cleaned path -> change type
	events  chan ChangeEvent
	done    chan struct{}
	mu      sync.Mutex
}

// NewFileWatcher creates a new file system watcher
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		files:   make(map[string]ChangeType),
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}, nil
}

// Watch registers a file to report changes for
func (fw *FileWatcher) Watch(path string, kind ChangeType) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.files[abs] = kind
	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	logging.Debug("watching file", "path", abs, "type", kind)
	return nil
}

func (fw *FileWatcher) classify(name string) (ChangeType, bool) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	kind, ok := fw.files[filepath.Clean(name)]
	return kind, ok
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	count := len(fw.files)
	fw.mu.Unlock()
	logging.Info("started watching files", "count", count)
	go fw.processEvents(ctx)
	return nil
}

// processEvents batches relevant events by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		for _, kind := range []ChangeType{ChangeTypeCatalogue, ChangeTypeModelSystem} {
			if paths := pending[kind]; len(paths) > 0 {
				fw.events <- ChangeEvent{Type: kind, Paths: paths, Timestamp: time.Now()}
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			fw.watcher.Close()
			close(fw.events)
			close(fw.done)
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			kind, ok := fw.classify(event.Name)
			if !ok {
				continue
			}
			pending[kind] = appendUnique(pending[kind], filepath.Clean(event.Name))
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func appendUnique(paths []string, p string) []string {
	for _, existing := range paths {
		if existing == p {
			return paths
		}
	}
	return append(paths, p)
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Done is closed once the watcher has shut down
func (fw *FileWatcher) Done() <-chan struct{} {
	return fw.done
}
