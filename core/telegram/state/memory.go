package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-instance development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record), now: time.Now}
}

// Get returns a copy of the stored record.
func (m *MemoryStore) Get(_ context.Context, userID int64) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	if !ok {
		return Record{}, false, nil
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, true, nil
}

// Set replaces the user's record. Setting StateIdle clears it.
func (m *MemoryStore) Set(ctx context.Context, userID int64, st State, payload []byte) error {
	if st == StateIdle {
		return m.Clear(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = Record{
		UserID:    userID,
		State:     st,
		Payload:   append([]byte(nil), payload...),
		UpdatedAt: m.now(),
	}
	return nil
}

// Clear drops the user's record.
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// Len reports how many users have a pending dialogue.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
