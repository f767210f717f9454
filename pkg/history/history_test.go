package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ritzau/msedit/pkg/run"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	req := run.Request{ID: "run-1", ModelSystem: "Demo", Start: "Sub.Go", User: "alice"}
	if err := s.Begin(ctx, req); err != nil {
		t.Fatal(err)
	}

	r, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != Queued || r.Start != "Sub.Go" || r.Finished != nil {
		t.Errorf("unexpected queued record %+v", r)
	}

	at := time.Now()
	for _, ev := range []run.Event{
		{RunID: "run-1", Kind: run.Started, Time: at},
		{RunID: "run-1", Kind: run.Progress, Progress: 0.5, Message: "halfway", Time: at},
		{RunID: "run-1", Kind: run.Failed, Message: "broken module", Time: at.Add(time.Second)},
	} {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	r, _ = s.Get(ctx, "run-1")
	if r.Status != run.Failed || r.Message != "broken module" || r.Finished == nil {
		t.Errorf("unexpected final record %+v", r)
	}
	if r.Finished.UnixMilli() != at.Add(time.Second).UnixMilli() {
		t.Errorf("finished time %v, want %v", r.Finished, at.Add(time.Second))
	}

	if err := s.Record(ctx, run.Event{RunID: "ghost", Kind: run.Started}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown run, got %v", err)
	}
	if _, err := s.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Begin(ctx, req); err == nil {
		t.Error("expected an error for a duplicate run ID")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Begin(ctx, run.Request{ID: id, ModelSystem: "Demo", Start: "Go", User: "alice"}); err != nil {
			t.Fatal(err)
		}
	}
	records, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].ID != "c" || records[1].ID != "b" {
		t.Errorf("expected c, b; got %+v", records)
	}
}

func TestObserveRecordsAndForwards(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.Begin(ctx, run.Request{ID: "run-1", ModelSystem: "Demo", Start: "Go", User: "alice"}); err != nil {
		t.Fatal(err)
	}
	events := make(chan run.Event, 3)
	events <- run.Event{RunID: "run-1", Kind: run.Started}
	events <- run.Event{RunID: "other", Kind: run.Started}
	events <- run.Event{RunID: "run-1", Kind: run.Succeeded, Progress: 1}
	close(events)

	var failures int
	var forwarded int
	for range s.Observe(events, func(error) { failures++ }) {
		forwarded++
	}
	if forwarded != 3 || failures != 1 {
		t.Errorf("expected 3 forwarded and 1 failure, got %d and %d", forwarded, failures)
	}
	if r, _ := s.Get(ctx, "run-1"); r.Status != run.Succeeded {
		t.Errorf("expected succeeded, got %+v", r)
	}
}
