package events

import (
	"context"
	"testing"
)

// NewMockPublisher creates and returns a new mock Publisher.
func NewMockPublisher(t *testing.T) *MockPublisher {
	return &MockPublisher{published: make(map[string]int), t: t}
}

// MockPublisher is a mock change event publisher that records the events
// it receives.
type MockPublisher struct {
	t            *testing.T
	published    map[string]int
	order        []string
	publishError error
}

// Publish is an implementation of the Publisher interface.
func (m *MockPublisher) Publish(ctx context.Context, repoID string) error {
	if m.publishError != nil {
		return m.publishError
	}
	m.published[repoID]++
	m.order = append(m.order, repoID)
	return nil
}

// AssertPublished ensures that an event was published for the repository.
func (m *MockPublisher) AssertPublished(repoID string) {
	if m.published[repoID] == 0 {
		m.t.Fatalf("no change event published for %s", repoID)
	}
}

// RefutePublished ensures that no event was published for the repository.
func (m *MockPublisher) RefutePublished(repoID string) {
	if n := m.published[repoID]; n != 0 {
		m.t.Fatalf("change event for %s was published %d times", repoID, n)
	}
}

// FailWithError configures the publisher to return errors.
func (m *MockPublisher) FailWithError(err error) {
	m.publishError = err
}

// Published returns the published repository ids in order.
func (m *MockPublisher) Published() []string {
	return m.order
}
