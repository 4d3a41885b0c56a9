package advisory

import (
	"context"
	"sync"
	"time"
)

// Pinger is satisfied by Client.
type Pinger interface {
	Ping(ctx context.Context) bool
}

// Monitor tracks whether the advisory backend is reachable.
type Monitor struct {
	pinger Pinger

	mu        sync.RWMutex
	connected bool
	checkedAt time.Time
	onChange  func(connected bool)
}

func NewMonitor(p Pinger) *Monitor {
	return &Monitor{pinger: p}
}

// OnChange registers a hook called whenever connectivity flips.
func (m *Monitor) OnChange(fn func(connected bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Check pings once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ok := m.pinger.Ping(ctx)

	m.mu.Lock()
	changed := m.checkedAt.IsZero() || ok != m.connected
	m.connected = ok
	m.checkedAt = time.Now().UTC()
	hook := m.onChange
	m.mu.Unlock()

	if changed && hook != nil {
		hook(ok)
	}
	return ok
}

func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Monitor) CheckedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkedAt
}

// Start checks right away, then every interval until ctx is done.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}
