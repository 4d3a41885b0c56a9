package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps transcripts in process. Used when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]Message)}
}

func (s *InMemoryStore) Append(_ context.Context, msg Message) (Message, error) {
	msg = withDefaults(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[msg.SessionID] = append(s.sessions[msg.SessionID], msg)
	return msg, nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID, messageID string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.sessions[sessionID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return Message{}, ErrNotFound
}

func (s *InMemoryStore) History(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.sessions[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	return append([]Message(nil), arr[len(arr)-limit:]...), nil
}

func (s *InMemoryStore) Close() error { return nil }

func withDefaults(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}
