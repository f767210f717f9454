package run

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/model"
	"github.com/ritzau/msedit/pkg/persist"
	"github.com/ritzau/msedit/pkg/startpath"
)

// ProgressFunc reports progress in [0, 1] with a short message
type ProgressFunc func(progress float64, message string)

// Runnable executes one request in-process
type Runnable interface {
	Run(ctx context.Context, req Request, progress ProgressFunc) error
}

// RunnableFunc adapts a function to Runnable
type RunnableFunc func(ctx context.Context, req Request, progress ProgressFunc) error

func (f RunnableFunc) Run(ctx context.Context, req Request, progress ProgressFunc) error {
	return f(ctx, req, progress)
}

// LocalDispatcher runs requests in goroutines of this process
type LocalDispatcher struct {
	runner  Runnable
	timeout time.Duration
	slots   *semaphore.Weighted
}

// NewLocalDispatcher creates a dispatcher running at most parallel requests
// at a time, each bounded by timeout (0 means no bound)
func NewLocalDispatcher(runner Runnable, parallel int, timeout time.Duration) *LocalDispatcher {
	if parallel <= 0 {
		parallel = 1
	}
	return &LocalDispatcher{
		runner:  runner,
		timeout: timeout,
		slots:   semaphore.NewWeighted(int64(parallel)),
	}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, req Request) (<-chan Event, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	events := make(chan Event, 32)
	go d.execute(ctx, req, events)
	return events, nil
}

func (d *LocalDispatcher) execute(ctx context.Context, req Request, events chan<- Event) {
	defer close(events)
	emit := func(kind Kind, progress float64, msg string) {
		ev := Event{RunID: req.ID, Kind: kind, Progress: progress, Message: msg, Time: time.Now()}
		if kind.Terminal() {
			events <- ev
			return
		}
		select {
		case events <- ev:
		default:
			logging.Debug("dropping run progress event", "run", req.ID)
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.slots.Acquire(ctx, 1); err != nil {
		emit(Canceled, 0, err.Error())
		return
	}
	defer d.slots.Release(1)

	emit(Started, 0, "")
	logging.Info("run started", "run", req.ID, "modelSystem", req.ModelSystem, "start", req.Start, "user", req.User)

	err := d.safeRun(ctx, req, func(p float64, msg string) { emit(Progress, p, msg) })
	switch {
	case err == nil:
		emit(Succeeded, 1, "")
		logging.Info("run succeeded", "run", req.ID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		emit(Canceled, 0, err.Error())
		logging.Warn("run canceled", "run", req.ID, "error", err)
	default:
		emit(Failed, 0, err.Error())
		logging.Warn("run failed", "run", req.ID, "error", err)
	}
}

func (d *LocalDispatcher) safeRun(ctx context.Context, req Request, progress ProgressFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return d.runner.Run(ctx, req, progress)
}

// ConstructRunner is the in-process runnable: it decodes the snapshot,
// resolves the start and constructs every enabled module
type ConstructRunner struct {
	Types       model.TypeDescriber
	Constructor model.ModuleConstructor
}

func (c *ConstructRunner) Run(ctx context.Context, req Request, progress ProgressFunc) error {
	ms, err := persist.Unmarshal(req.Document, c.Types)
	if err != nil {
		return err
	}
	progress(0.25, "model system loaded")
	if err := ctx.Err(); err != nil {
		return err
	}

	start, err := startpath.Resolve(ms, req.Start)
	if err != nil {
		return err
	}
	links := start.Boundary().LinksFrom(start)
	if len(links) == 0 {
		return fmt.Errorf("start %s is not linked to a module", req.Start)
	}
	if first := links[0].Destinations(); links[0].Disabled() || len(first) == 0 || first[0].Disabled() {
		return fmt.Errorf("start %s points to a disabled module", req.Start)
	}
	progress(0.5, "start resolved")
	if err := ctx.Err(); err != nil {
		return err
	}

	construction, err := ms.Construct(c.Constructor)
	if err != nil {
		return err
	}
	progress(1, fmt.Sprintf("constructed %d modules", len(construction.Instances)))
	return nil
}
