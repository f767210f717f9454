package run

import (
	"context"
	"sync"
)

// MockDispatcher is a mock implementation of Dispatcher for testing
type MockDispatcher struct {
	MockEvents []Event
	MockError  error

	mu       sync.Mutex
	requests []Request
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req Request) (<-chan Event, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.MockError != nil {
		return nil, m.MockError
	}
	events := make(chan Event, len(m.MockEvents))
	for _, ev := range m.MockEvents {
		ev.RunID = req.ID
		events <- ev
	}
	close(events)
	return events, nil
}

// Requests returns the requests seen so far
func (m *MockDispatcher) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
