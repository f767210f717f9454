package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/msedit/pkg/logging"
)

// subscriberQueue is the room for live events in each subscription
const subscriberQueue = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
	ResumeOnly bool // If true, fresh subscribers get no replay; only resuming ones catch up
}

// topicState is everything the publisher tracks for one topic
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

// replay returns the buffered events a subscriber should receive on
// subscribing. after > 0 means the subscriber already saw that version.
func (t *topicState) replay(after int) []Event {
	if after > 0 {
		var missed []Event
		for _, e := range t.buffer {
			if e.Version > after {
				missed = append(missed, e)
			}
		}
		return missed
	}
	if t.config.ResumeOnly || len(t.buffer) == 0 {
		return nil
	}
	if t.config.ReplayAll {
		return append([]Event(nil), t.buffer...)
	}
	return []Event{t.buffer[len(t.buffer)-1]}
}

func (t *topicState) remember(e Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.buffer = append(t.buffer, e)
	if over := len(t.buffer) - t.config.BufferSize; over > 0 {
		t.buffer = append(t.buffer[:0], t.buffer[over:]...)
	}
}

// SSEPublisher implements Publisher using Server-Sent Events. Every event
// gets a per-topic version that doubles as the SSE event id, so a client
// reconnecting with Last-Event-ID can resume where it left off.
type SSEPublisher struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// state returns the state for name, creating it. Callers hold p.mu.
func (p *SSEPublisher) state(name string) *topicState {
	t := p.topics[name]
	if t == nil {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state(topic).config = config
}

// Subscribe creates a new subscription to a topic
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	return p.SubscribeAfter(ctx, topic, 0)
}

// SubscribeAfter subscribes to topic and first replays the buffered events
// newer than version after. With after == 0 the topic's replay policy applies.
func (p *SSEPublisher) SubscribeAfter(ctx context.Context, topic string, after int) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("publisher is closed")
	}

	t := p.state(topic)
	// Queue the replay before releasing the lock so no live event can
	// overtake it.
	backlog := t.replay(after)
	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriberQueue+len(backlog)),
		publisher: p,
	}
	for _, event := range backlog {
		sub.events <- event
	}
	t.subs[sub] = struct{}{}
	p.mu.Unlock()

	if len(backlog) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", topic, "after", after, "count", len(backlog))
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic
func (p *SSEPublisher) Publish(topic string, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	t := p.state(topic)
	t.version++
	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}
	t.remember(event)

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			// A stalled client loses events; it can resume by version
			logging.Warn("subscription channel full, dropping event", "topic", topic, "type", eventType, "version", event.Version)
		}
	}
	return nil
}

// Close shuts down the publisher and all subscriptions
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

// Subscribers returns the number of live subscriptions to topic
func (p *SSEPublisher) Subscribers(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t := p.topics[topic]; t != nil {
		return len(t.subs)
	}
	return 0
}

// Version returns the version of the last event published on topic
func (p *SSEPublisher) Version(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t := p.topics[topic]; t != nil {
		return t.version
	}
	return 0
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.topics[sub.topic]; t != nil {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	closed    bool
	mu        sync.Mutex
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

func (s *sseSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.publisher.unsubscribe(s)
	return nil
}

// WriteSSE writes an event as one SSE frame:
// "id: <version>\ndata: {json}\n\n"
func WriteSSE(w io.Writer, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, jsonData)
	return err
}
