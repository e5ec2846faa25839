package simulation

import (
	"context"
	"sync"
)

// MockStorage is an in-memory Storage for tests.
// This mock lives in the simulation package to avoid import cycles.
type MockStorage struct {
	Records []*CycleRecord
	mu      sync.Mutex
}

// NewMockStorage creates an empty mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		Records: make([]*CycleRecord, 0),
	}
}

// StoreCycle keeps a copy of the record in memory.
func (m *MockStorage) StoreCycle(_ context.Context, rec *CycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.Records = append(m.Records, &cp)
	return nil
}

// Close is a no-op for mock storage.
func (m *MockStorage) Close() error {
	return nil
}

// GetRecords returns all stored records.
func (m *MockStorage) GetRecords() []*CycleRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*CycleRecord, len(m.Records))
	copy(result, m.Records)
	return result
}
