package ledger

import "sync"

// MockLedger is an in-memory Interface implementation for tests and dry
// runs.
type MockLedger struct {
	mu      sync.Mutex
	records map[string]RunSummary
}

var _ Interface = (*MockLedger)(nil)

// NewMockLedger creates an empty in-memory ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{records: make(map[string]RunSummary)}
}

// Exists reports whether the fingerprint has been recorded.
func (m *MockLedger) Exists(fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[fingerprint]
	return ok, nil
}

// Record stores the summary, keeping the first write for a fingerprint.
func (m *MockLedger) Record(summary RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[summary.Fingerprint]; ok {
		return nil
	}
	m.records[summary.Fingerprint] = summary
	return nil
}

// Close is a no-op.
func (m *MockLedger) Close() error { return nil }

// Recorded returns the stored summary, if any.
func (m *MockLedger) Recorded(fingerprint string) (RunSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[fingerprint]
	return s, ok
}
