package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the editor
const (
	// TopicModelSystem carries a ModelSystemChange after every edit
	TopicModelSystem = "model_system"
	// TopicRunStatus carries run events
	TopicRunStatus = "run_status"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "model_system", "run_status")
	Type    string          `json:"type"`    // Event type (e.g., "add-node", "undo add-node", "succeeded")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// ModelSystemChange announces an applied edit so clients can refetch
type ModelSystemChange struct {
	ModelSystem string `json:"model_system"`
	Op          string `json:"op"`
	User        string `json:"user,omitempty"`
	Dirty       bool   `json:"dirty"`
	CanUndo     bool   `json:"can_undo"`
	CanRedo     bool   `json:"can_redo"`
}
