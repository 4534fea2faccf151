package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	rec      *Record
	deadline time.Time
}

type memoryIndex struct {
	sessionID string
	deadline  time.Time
}

// MemoryStore is the process-local backend. It is never persisted and never
// reconciled with Redis.
type MemoryStore struct {
	now func() time.Time

	sessionsMu sync.Mutex
	sessions   map[string]memoryEntry

	indexMu sync.Mutex
	index   map[string]memoryIndex
}

// NewMemoryStore uses time.Now when now is nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:      now,
		sessions: make(map[string]memoryEntry),
		index:    make(map[string]memoryIndex),
	}
}

func (m *MemoryStore) Put(_ context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if rec == nil {
		return ErrMalformed
	}
	if err := rec.validate(); err != nil {
		return err
	}

	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	m.sessions[rec.SessionID] = memoryEntry{rec: rec.Clone(), deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrMalformed
	}
	if err := rec.validate(); err != nil {
		return err
	}

	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	entry, ok := m.sessions[rec.SessionID]
	if !ok || m.now().After(entry.deadline) {
		return ErrNotFound
	}
	m.sessions[rec.SessionID] = memoryEntry{rec: rec.Clone(), deadline: entry.deadline}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	if now.After(entry.deadline) || entry.rec.Expired(now) {
		delete(m.sessions, sessionID)
		return nil, ErrNotFound
	}
	return entry.rec.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) DeleteAllForUser(_ context.Context, username string) (int, error) {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()

	deleted := 0
	for id, entry := range m.sessions {
		if entry.rec.Username == username {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) SetCurrent(_ context.Context, username, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	m.indexMu.Lock()
	defer m.indexMu.Unlock()
	m.index[username] = memoryIndex{sessionID: sessionID, deadline: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Current(_ context.Context, username string) (string, error) {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	entry, ok := m.index[username]
	if !ok {
		return "", nil
	}
	if m.now().After(entry.deadline) {
		delete(m.index, username)
		return "", nil
	}
	return entry.sessionID, nil
}

func (m *MemoryStore) ClearCurrent(_ context.Context, username, sessionID string) error {
	m.indexMu.Lock()
	defer m.indexMu.Unlock()

	if entry, ok := m.index[username]; ok && entry.sessionID == sessionID {
		delete(m.index, username)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	return len(m.sessions)
}
