package collector

import (
	"context"
	"sync"
)

// MockMailbox returns controllable counts for development and testing.
// Counts are returned in order; the last one repeats.
type MockMailbox struct {
	mu     sync.Mutex
	Counts []int
	Err    error
	calls  int
}

func (m *MockMailbox) Name() string { return "mock-mailbox" }

func (m *MockMailbox) Check(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return 0, m.Err
	}
	if len(m.Counts) == 0 {
		return 0, nil
	}
	i := m.calls - 1
	if i >= len(m.Counts) {
		i = len(m.Counts) - 1
	}
	return m.Counts[i], nil
}

// Calls reports how many times Check ran.
func (m *MockMailbox) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockExtractor reports a fixed outcome and optionally runs a hook, for
// example to drop a structured-fields file into the scanned directory.
type MockExtractor struct {
	mu        sync.Mutex
	Label     string
	Processed bool
	Err       error
	OnRun     func()
	calls     int
}

func (m *MockExtractor) Name() string {
	if m.Label == "" {
		return "mock-extractor"
	}
	return m.Label
}

func (m *MockExtractor) Run(_ context.Context) (bool, error) {
	m.mu.Lock()
	m.calls++
	hook, err, processed := m.OnRun, m.Err, m.Processed
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	if hook != nil {
		hook()
	}
	return processed, nil
}

// Calls reports how many times Run ran.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
