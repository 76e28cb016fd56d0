package playback

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Suitable for a single instance;
// use the Redis store when running more than one replica behind the relay.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Session
	byUser map[string]string
	ttl    time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &MemoryStore{
		byID:   make(map[string]Session),
		byUser: make(map[string]string),
		ttl:    ttl,
	}
}

func (m *MemoryStore) expired(s Session) bool {
	return time.Since(s.UpdatedAt) > m.ttl
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = s
	m.byUser[s.UserID] = s.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok || m.expired(s) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) FindByUser(_ context.Context, userID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUser[userID]
	if !ok {
		return Session{}, false, nil
	}
	s, ok := m.byID[id]
	if !ok || m.expired(s) {
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		if m.byUser[s.UserID] == id {
			delete(m.byUser, s.UserID)
		}
		delete(m.byID, id)
	}
	return nil
}

// Sweep drops expired sessions. Called periodically by the job manager.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.byID {
		if m.expired(s) {
			if m.byUser[s.UserID] == id {
				delete(m.byUser, s.UserID)
			}
			delete(m.byID, id)
			removed++
		}
	}
	return removed
}
