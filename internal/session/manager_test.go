package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s, err := m.Create(KindSimulation, "KAL801", true)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.FlightID != "KAL801" || got.Kind != KindSimulation || !got.AutoSpeak || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if err := m.Touch(s.ID); !errors.Is(err, ErrEnded) {
		t.Fatalf("Touch() after End error = %v, want ErrEnded", err)
	}
}

func TestManagerCreateRejectsUnknownKind(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Create(Kind("tower"), "", false); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("Create() error = %v, want ErrInvalidKind", err)
	}
}

func TestManagerMarkSpokenOnlyOnce(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Create(KindFlightStatus, "", true)

	first, err := m.MarkSpoken(s.ID, "m1")
	if err != nil || !first {
		t.Fatalf("MarkSpoken(m1) = %v, %v, want true", first, err)
	}
	again, _ := m.MarkSpoken(s.ID, "m1")
	if again {
		t.Fatal("MarkSpoken(m1) twice reported a new message")
	}
	next, _ := m.MarkSpoken(s.ID, "m2")
	if !next {
		t.Fatal("MarkSpoken(m2) should report a new message")
	}

	got, _ := m.Get(s.ID)
	if got.LastSpokenMessageID != "m2" {
		t.Fatalf("LastSpokenMessageID = %q, want m2", got.LastSpokenMessageID)
	}
	if _, err := m.MarkSpoken("missing", "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkSpoken(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerPhaseAndAutoSpeak(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Create(KindFlightStatus, "", true)

	if err := m.SetPhase(s.ID, "approach"); err != nil {
		t.Fatalf("SetPhase() error = %v", err)
	}
	if err := m.SetAutoSpeak(s.ID, false); err != nil {
		t.Fatalf("SetAutoSpeak() error = %v", err)
	}
	if err := m.Touch(s.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if got.Phase != "approach" || got.AutoSpeak || got.MessageCount != 1 {
		t.Fatalf("unexpected session state: %+v", got)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s, _ := m.Create(KindSimulation, "KAL801", true)

	var expired atomic.Int32
	m.SetExpireHook(func(*Session) { expired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for expired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got, err := m.Get(s.ID)
	if err != nil {
		// Already swept after a second timeout; the hook still must have fired.
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v", err)
		}
	} else if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if expired.Load() != 1 {
		t.Fatalf("expire hook calls = %d, want 1", expired.Load())
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}
