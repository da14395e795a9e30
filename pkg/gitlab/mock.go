package gitlab

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// NewMockLister creates and returns a new mock commit lister.
func NewMockLister() *MockLister {
	return &MockLister{responses: make(map[string][]CommitResult)}
}

// MockLister is a mock CommitLister. Responses are keyed by project, ref
// and since; queueing several responses for one key yields them in order,
// with the last one repeating. It is safe for concurrent queries.
type MockLister struct {
	mu        sync.Mutex
	responses map[string][]CommitResult
}

// Commits is an implementation of the CommitLister interface.
func (m *MockLister) Commits(ctx context.Context, projectID, ref, since string) CommitResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mockKey(projectID, ref, since)
	queued := m.responses[key]
	if len(queued) == 0 {
		return transportErrorResult(fmt.Errorf("no response configured for %s", key))
	}
	r := queued[0]
	if len(queued) > 1 {
		m.responses[key] = queued[1:]
	}
	return r
}

// AddMockResponse queues the result for a Commits call.
func (m *MockLister) AddMockResponse(projectID, ref, since string, result CommitResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mockKey(projectID, ref, since)
	m.responses[key] = append(m.responses[key], result)
}

func mockKey(projectID, ref, since string) string {
	return strings.Join([]string{projectID, ref, since}, ":")
}
