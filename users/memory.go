package users

import (
	"context"
	"sync"
)

// MemoryStore is the process-local backend, guarded by a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Create(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrMalformed
	}
	if err := rec.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Username]; ok {
		return ErrExists
	}
	m.records[rec.Username] = *rec
	return nil
}

func (m *MemoryStore) Get(_ context.Context, username string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Update(_ context.Context, username string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[username]
	if !ok {
		return ErrNotFound
	}
	patch.apply(&rec)
	if err := rec.validate(); err != nil {
		return err
	}
	m.records[username] = rec
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[username]
	delete(m.records, username)
	return ok, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
