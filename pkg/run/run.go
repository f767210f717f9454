// Package run hands model-system snapshots to an executor and reports
// their progress as a stream of events.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ritzau/msedit/pkg/logging"
	"github.com/ritzau/msedit/pkg/pubsub"
)

// ErrInvalidRequest is returned for requests missing an ID or document
var ErrInvalidRequest = errors.New("invalid run request")

// Request is one execution of a model system from a named start
type Request struct {
	ID          string `json:"id"`
	ModelSystem string `json:"model_system"`
	Start       string `json:"start"`
	User        string `json:"user"`
	WorkDir     string `json:"work_dir,omitempty"`
	// Document is the persisted model system at the time of the request
	Document json.RawMessage `json:"-"`
}

func (r Request) validate() error {
	if r.ID == "" || len(r.Document) == 0 || r.Start == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Kind classifies a run event
type Kind string

const (
	Started   Kind = "started"
	Progress  Kind = "progress"
	Succeeded Kind = "succeeded"
	Failed    Kind = "failed"
	Canceled  Kind = "canceled"
)

// Terminal reports whether no events follow one of this kind
func (k Kind) Terminal() bool {
	return k == Succeeded || k == Failed || k == Canceled
}

// Event is a status update for a run
type Event struct {
	RunID    string    `json:"run_id"`
	Kind     Kind      `json:"kind"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Dispatcher starts runs. The returned channel is closed after the
// terminal event; callers must drain it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (<-chan Event, error)
}

// StatusTopic is the pubsub topic run events are forwarded to
const StatusTopic = pubsub.TopicRunStatus

// Forward publishes every event from events on StatusTopic until the
// channel closes
func Forward(pub pubsub.Publisher, events <-chan Event) {
	for ev := range events {
		if err := pub.Publish(StatusTopic, string(ev.Kind), ev); err != nil {
			logging.Warn("failed to publish run event", "run", ev.RunID, "kind", ev.Kind, "error", err)
		}
	}
}
