package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// PublishedEvent is one event captured by MockPublisher.
type PublishedEvent struct {
	RoutingKey string
	EventData  interface{}
	Timestamp  time.Time
	RawJSON    []byte
}

// MockPublisher records published events in memory. It satisfies
// messaging.PublisherInterface.
type MockPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent

	// Err, when set, is returned from every Publish call.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, eventData interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	raw, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	m.events = append(m.events, PublishedEvent{
		RoutingKey: routingKey,
		EventData:  eventData,
		Timestamp:  time.Now(),
		RawJSON:    raw,
	})
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsByKey returns the events published under routingKey.
func (m *MockPublisher) EventsByKey(routingKey string) []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []PublishedEvent
	for _, e := range m.events {
		if e.RoutingKey == routingKey {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// LastEvent returns the most recent event under routingKey, or nil.
func (m *MockPublisher) LastEvent(routingKey string) *PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].RoutingKey == routingKey {
			e := m.events[i]
			return &e
		}
	}
	return nil
}

func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// AssertEventCount fails the test unless exactly expected events were
// published under routingKey.
func (m *MockPublisher) AssertEventCount(t *testing.T, routingKey string, expected int) {
	t.Helper()

	if got := len(m.EventsByKey(routingKey)); got != expected {
		t.Errorf("Expected %d events with routing key '%s', got %d", expected, routingKey, got)
	}
}

// DecodeLast unmarshals the last event under routingKey into target.
func (m *MockPublisher) DecodeLast(t *testing.T, routingKey string, target interface{}) {
	t.Helper()

	e := m.LastEvent(routingKey)
	if e == nil {
		t.Fatalf("Expected event with routing key '%s', found none", routingKey)
	}
	if err := json.Unmarshal(e.RawJSON, target); err != nil {
		t.Fatalf("Failed to decode event: %v", err)
	}
}
