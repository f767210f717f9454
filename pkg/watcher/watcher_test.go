package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/persist"
	"github.com/ritzau/msedit/pkg/session"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 20*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeModelSystem, Paths: []string{"/a.json"}}
	input <- ChangeEvent{Type: ChangeTypeModelSystem, Paths: []string{"/a.json"}}
	input <- ChangeEvent{Type: ChangeTypeCatalogue, Paths: []string{"/types.toml"}}

	var got []ChangeEvent
	for len(got) < 2 {
		select {
		case ev := <-d.Output():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	if got[0].Type != ChangeTypeCatalogue || got[1].Type != ChangeTypeModelSystem {
		t.Errorf("catalogue changes should come first, got %v", got)
	}
	if len(got[1].Paths) != 1 {
		t.Errorf("duplicate paths should collapse, got %v", got[1].Paths)
	}
}

func TestAnalyzeChanges(t *testing.T) {
	a := AnalyzeChanges(ChangeEvent{Type: ChangeTypeCatalogue})
	if !a.ReloadTypes || !a.ReloadModelSystems {
		t.Errorf("catalogue change should reload everything, got %+v", a)
	}
	a = AnalyzeChanges(ChangeEvent{Type: ChangeTypeModelSystem})
	if a.ReloadTypes || !a.ReloadModelSystems {
		t.Errorf("model-system change should only reload model systems, got %+v", a)
	}
}

func TestFileWatcherReportsWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Watch(path, ChangeTypeModelSystem); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = fw.Start(ctx)

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"name":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-fw.Events():
		if ev.Type != ChangeTypeModelSystem || len(ev.Paths) != 1 || ev.Paths[0] != path {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change event")
	}
}

func TestReloadSession(t *testing.T) {
	types := model.NewTypeRegistry()
	if err := types.Register(model.TypeDescription{Name: "Worker"}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "demo.json")
	ms := model.NewModelSystem(model.Header{Name: "Demo", Path: path})
	if err := persist.WriteFile(path, ms); err != nil {
		t.Fatal(err)
	}
	s := session.New(ms, session.Options{Types: types, Access: session.AllowAll{}})

	if reloaded, err := ReloadSession(s, types, false); err != nil || reloaded {
		t.Fatalf("identical file should not reload: %v %v", reloaded, err)
	}
	if reloaded, err := ReloadSession(s, types, true); err != nil || !reloaded {
		t.Fatalf("forced reload should happen: %v %v", reloaded, err)
	}

	onDisk := model.NewModelSystem(model.Header{Name: "Demo"})
	worker, _ := types.DescribeType("Worker")
	_, _ = onDisk.GlobalBoundary().AddNode("External", worker)
	if err := persist.WriteFile(path, onDisk); err != nil {
		t.Fatal(err)
	}

	global := s.ModelSystem().GlobalBoundary()
	if _, err := s.AddBoundary("alice", global, "Local"); err != nil {
		t.Fatal(err)
	}
	if reloaded, _ := ReloadSession(s, types, false); reloaded {
		t.Fatal("dirty sessions must keep their edits")
	}

	// a clean session on the same file picks up the external edit
	fresh := session.New(model.NewModelSystem(model.Header{Name: "Demo", Path: path}), session.Options{Types: types, Access: session.AllowAll{}})
	reloaded, err := ReloadSession(fresh, types, false)
	if err != nil || !reloaded {
		t.Fatalf("changed file should reload: %v %v", reloaded, err)
	}
	nodes := fresh.ModelSystem().GlobalBoundary().Nodes()
	if len(nodes) != 1 || nodes[0].Name() != "External" {
		t.Errorf("expected External node after reload, got %v", nodes)
	}
	if fresh.ModelSystem().Header().Path != path {
		t.Error("reloaded model system should keep its path")
	}
}
