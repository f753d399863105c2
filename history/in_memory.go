package history

import (
	"sync"

	"github.com/choruschat/chorus/core"
)

// InMemoryStore is a volatile HistoryStore keeping per-session message slices
// in a process local map. It is safe for concurrent access and best suited
// for tests or ephemeral demo servers. GetAll returns a copy so callers can
// never mutate internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]core.Message)}
}

// Append adds a message to the session's history, creating it lazily.
func (s *InMemoryStore) Append(sessionID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

// GetAll returns a snapshot copy of the session's ordered history.
func (s *InMemoryStore) GetAll(sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes the session's history entirely.
func (s *InMemoryStore) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
