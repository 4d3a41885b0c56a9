package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Kind tells which advisory endpoint the session's free text goes to.
type Kind string

const (
	// KindSimulation replays a historical case study by flight id.
	KindSimulation Kind = "simulation"
	// KindFlightStatus is the free-form in-flight copilot.
	KindFlightStatus Kind = "flight_status"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrEnded       = errors.New("session ended")
	ErrInvalidKind = errors.New("invalid session kind")
)

func (k Kind) Valid() bool {
	return k == KindSimulation || k == KindFlightStatus
}

type Session struct {
	ID                  string    `json:"session_id"`
	Kind                Kind      `json:"kind"`
	FlightID            string    `json:"flight_id"`
	Status              Status    `json:"status"`
	AutoSpeak           bool      `json:"auto_speak"`
	Phase               string    `json:"phase,omitempty"`
	LastSpokenMessageID string    `json:"last_spoken_message_id,omitempty"`
	MessageCount        int       `json:"message_count"`
	StartedAt           time.Time `json:"started_at"`
	LastActivityAt      time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(kind Kind, flightID string, autoSpeak bool) (*Session, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Kind:           kind,
		FlightID:       flightID,
		Status:         StatusActive,
		AutoSpeak:      autoSpeak,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s), nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Touch records activity on an active session and counts one more message.
func (m *Manager) Touch(sessionID string) error {
	return m.update(sessionID, func(s *Session) {
		s.MessageCount++
	})
}

func (m *Manager) SetAutoSpeak(sessionID string, on bool) error {
	return m.update(sessionID, func(s *Session) {
		s.AutoSpeak = on
	})
}

func (m *Manager) SetPhase(sessionID, phase string) error {
	return m.update(sessionID, func(s *Session) {
		s.Phase = phase
	})
}

// MarkSpoken records messageID as the last auto-spoken message. It reports
// false when that message was already the last one spoken.
func (m *Manager) MarkSpoken(sessionID, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, ErrNotFound
	}
	if s.LastSpokenMessageID == messageID {
		return false, nil
	}
	s.LastSpokenMessageID = messageID
	return true, nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) update(sessionID string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusActive {
		return ErrEnded
	}
	fn(s)
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			// Ended sessions linger one timeout so clients can still read them.
			if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
