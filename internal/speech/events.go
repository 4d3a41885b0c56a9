package speech

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStarted     EventType = "started"
	EventSentence    EventType = "sentence"
	EventFallback    EventType = "fallback"
	EventFinished    EventType = "finished"
	EventInterrupted EventType = "interrupted"
	EventFailed      EventType = "failed"
)

// Event reports progress of a speech request to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	Provider  Provider  `json:"provider"`
	Urgent    bool      `json:"urgent"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; slow subscribers miss events.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
