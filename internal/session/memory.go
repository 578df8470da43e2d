package session

import (
	"context"
	"sync"
)

// compile-time check that *MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in a mutex-protected map. This is the default
// backend: state is lost on restart, which the conversation model accepts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore creates an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Get returns the stored session, or a fresh main-menu session when the
// user has none.
func (s *MemoryStore) Get(_ context.Context, userID int64) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess, nil
	}
	return Session{State: StateMainMenu}, nil
}

func (s *MemoryStore) Put(_ context.Context, userID int64, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
