package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type stubEngine struct {
	mu       sync.Mutex
	voices   []Voice
	spoken   []Utterance
	cancels  int
	speaking bool
	started  chan struct{}
	speak    func(ctx context.Context, u Utterance) error
}

func (e *stubEngine) Voices(context.Context) ([]Voice, error) { return e.voices, nil }

func (e *stubEngine) Speak(ctx context.Context, u Utterance) error {
	e.mu.Lock()
	e.spoken = append(e.spoken, u)
	e.speaking = true
	speak := e.speak
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.speaking = false
		e.mu.Unlock()
	}()
	if e.started != nil {
		select {
		case e.started <- struct{}{}:
		default:
		}
	}
	if speak != nil {
		return speak(ctx, u)
	}
	return nil
}

func (e *stubEngine) Cancel() {
	e.mu.Lock()
	e.cancels++
	e.mu.Unlock()
}

func (e *stubEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

func (e *stubEngine) utterances() []Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Utterance(nil), e.spoken...)
}

type stubPlayer struct {
	mu      sync.Mutex
	clips   [][]byte
	stops   int
	started chan struct{}
	play    func(ctx context.Context) error
}

func (p *stubPlayer) Play(ctx context.Context, mp3 []byte) error {
	p.mu.Lock()
	p.clips = append(p.clips, mp3)
	play := p.play
	p.mu.Unlock()
	if p.started != nil {
		select {
		case p.started <- struct{}{}:
		default:
		}
	}
	if play != nil {
		return play(ctx)
	}
	return nil
}

func (p *stubPlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

func (p *stubPlayer) Playing() bool { return false }

func (p *stubPlayer) plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clips)
}

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	cfg.UrgentPause = time.Millisecond
	cfg.CalmPause = time.Millisecond
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func blockUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestManagerSpeakLocalUrgentDelivery(t *testing.T) {
	engine := &stubEngine{voices: []Voice{{ID: "en", Name: "English"}, {ID: "sam", Name: "Samantha"}}}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	if err := m.Speak(context.Background(), "**Terrain** ahead. Pull up now!"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	got := engine.utterances()
	if len(got) != 2 {
		t.Fatalf("utterances = %d, want 2 (one per sentence)", len(got))
	}
	for _, u := range got {
		if u.Rate > 0.75 || u.Pitch > 0.8 {
			t.Fatalf("urgent delivery = %+v", u.Delivery)
		}
		if u.Voice == nil || u.Voice.ID != "sam" {
			t.Fatalf("voice = %+v, want preferred Samantha", u.Voice)
		}
		if u.Lang != "en-US" {
			t.Fatalf("lang = %q, want en-US", u.Lang)
		}
	}
	if got[0].Text != "Terrain ahead" || got[1].Text != "Pull up now" {
		t.Fatalf("sentences = %q, %q", got[0].Text, got[1].Text)
	}
}

func TestManagerSpeakLocalCalmDelivery(t *testing.T) {
	engine := &stubEngine{}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	if err := m.Speak(context.Background(), "Cruise is stable. Fuel is normal."); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	for _, u := range engine.utterances() {
		if u.Rate < 0.7 || u.Pitch < 0.9 {
			t.Fatalf("calm delivery = %+v", u.Delivery)
		}
		if u.Voice != nil {
			t.Fatalf("voice = %+v, want engine default", u.Voice)
		}
	}
}

func TestManagerSpeakEmptyTextIsNoop(t *testing.T) {
	engine := &stubEngine{}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	for _, in := range []string{"", "   \n", "**"} {
		if err := m.Speak(context.Background(), in); err != nil {
			t.Fatalf("Speak(%q) error = %v", in, err)
		}
	}
	if n := len(engine.utterances()); n != 0 {
		t.Fatalf("utterances = %d, want 0", n)
	}
}

func TestManagerSecondSpeakSupersedesFirst(t *testing.T) {
	var calls atomic.Int32
	engine := &stubEngine{started: make(chan struct{}, 1)}
	engine.speak = func(ctx context.Context, _ Utterance) error {
		if calls.Add(1) == 1 {
			return blockUntilCancelled(ctx)
		}
		return nil
	}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})
	events, cancel := m.Subscribe()
	defer cancel()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- m.Speak(context.Background(), "Long briefing. Second sentence.", WithRequestID("first"))
	}()
	select {
	case <-engine.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never started")
	}

	if err := m.Speak(context.Background(), "Go around.", WithRequestID("second")); err != nil {
		t.Fatalf("second Speak() error = %v", err)
	}

	select {
	case err := <-firstDone:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("first Speak() error = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request did not return after being superseded")
	}

	engine.mu.Lock()
	cancels := engine.cancels
	engine.mu.Unlock()
	if cancels == 0 {
		t.Fatal("engine Cancel was not called before the second request")
	}

	for _, ev := range drainEvents(events) {
		if ev.RequestID == "first" && ev.Type == EventFinished {
			t.Fatal("superseded request reported completion")
		}
		if ev.RequestID == "first" && ev.Type == EventSentence {
			t.Fatalf("superseded request spoke a sentence: %+v", ev)
		}
	}
	for _, u := range engine.utterances() {
		if u.Text == "Second sentence" {
			t.Fatal("superseded request continued to its next sentence")
		}
	}
}

func TestManagerStopWhenIdle(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Engine: &stubEngine{}, Player: &stubPlayer{}})
	m.Stop()
	m.Stop()
	if m.IsSpeaking() {
		t.Fatal("IsSpeaking() = true after Stop on idle manager")
	}
}

func TestManagerStopInterruptsActiveRequest(t *testing.T) {
	engine := &stubEngine{started: make(chan struct{}, 1)}
	engine.speak = func(ctx context.Context, _ Utterance) error { return blockUntilCancelled(ctx) }
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	done := make(chan error, 1)
	go func() { done <- m.Speak(context.Background(), "Hold short of runway two eight.") }()
	<-engine.started

	m.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("Speak() error = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after Stop")
	}
	if m.IsSpeaking() {
		t.Fatal("IsSpeaking() = true after Stop")
	}
}

func TestManagerSetProviderRejectsUnknown(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Engine: &stubEngine{}, Provider: ProviderLocal})

	if err := m.SetProvider(Provider("polly")); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("SetProvider(polly) error = %v, want ErrUnknownProvider", err)
	}
	if got := m.Provider(); got != ProviderLocal {
		t.Fatalf("Provider() = %q, want unchanged local", got)
	}
	if err := m.SetProvider(ProviderRemote); err != nil {
		t.Fatalf("SetProvider(elevenlabs) error = %v", err)
	}
	if got := m.Provider(); got != ProviderRemote {
		t.Fatalf("Provider() = %q, want elevenlabs", got)
	}
}

func TestManagerDefaultProviderFollowsCredential(t *testing.T) {
	withKey := newTestManager(t, ManagerConfig{
		Engine:      &stubEngine{},
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_live"}),
	})
	if got := withKey.Provider(); got != ProviderRemote {
		t.Fatalf("Provider() with key = %q, want elevenlabs", got)
	}

	placeholder := newTestManager(t, ManagerConfig{
		Engine:      &stubEngine{},
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "YOUR_API_KEY"}),
	})
	if got := placeholder.Provider(); got != ProviderLocal {
		t.Fatalf("Provider() with placeholder = %q, want local", got)
	}
}

func TestManagerRemoteWithoutCredentialNeverCallsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	engine := &stubEngine{}
	player := &stubPlayer{}
	m := newTestManager(t, ManagerConfig{
		Engine:      engine,
		Player:      player,
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL}),
		Provider:    ProviderRemote,
	})
	events, cancel := m.Subscribe()
	defer cancel()

	if err := m.Speak(context.Background(), "Descend to flight level two four zero."); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("remote hits = %d, want 0", hits.Load())
	}
	if len(engine.utterances()) == 0 {
		t.Fatal("expected local synthesis")
	}
	if player.plays() != 0 {
		t.Fatalf("player plays = %d, want 0", player.plays())
	}

	var fallback bool
	for _, ev := range drainEvents(events) {
		if ev.Type == EventFallback && ev.Detail == "credential_missing" {
			fallback = true
		}
	}
	if !fallback {
		t.Fatal("missing credential_missing fallback event")
	}
}

func TestManagerRemoteFailureFallsBackToLocal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := &stubEngine{}
	player := &stubPlayer{}
	m := newTestManager(t, ManagerConfig{
		Engine:      engine,
		Player:      player,
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL}),
		Provider:    ProviderRemote,
	})

	if err := m.Speak(context.Background(), "Check fuel balance."); err != nil {
		t.Fatalf("Speak() error = %v, want remote failure hidden by fallback", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("remote hits = %d, want 1", hits.Load())
	}
	if len(engine.utterances()) != 1 {
		t.Fatalf("local utterances = %d, want 1", len(engine.utterances()))
	}
	if player.plays() != 0 {
		t.Fatalf("player plays = %d, want 0", player.plays())
	}
}

func TestManagerRemoteBreakerStopsCallingFailingService(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := newTestManager(t, ManagerConfig{
		Engine:      &stubEngine{},
		Player:      &stubPlayer{},
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL}),
		Provider:    ProviderRemote,
	})
	for i := 0; i < 5; i++ {
		if err := m.Speak(context.Background(), "Check fuel balance."); err != nil {
			t.Fatalf("Speak() #%d error = %v", i, err)
		}
	}
	if hits.Load() != 3 {
		t.Fatalf("remote hits = %d, want 3 before the breaker opens", hits.Load())
	}
}

func TestManagerRemotePlaysAndCachesAudio(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	engine := &stubEngine{}
	player := &stubPlayer{}
	m := newTestManager(t, ManagerConfig{
		Engine:      engine,
		Player:      player,
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL}),
		Provider:    ProviderRemote,
		CacheSize:   8,
	})

	for i := 0; i < 2; i++ {
		if err := m.Speak(context.Background(), "**Cleared** to land."); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("remote hits = %d, want 1 with cache", hits.Load())
	}
	if player.plays() != 2 {
		t.Fatalf("player plays = %d, want 2", player.plays())
	}
	if len(engine.utterances()) != 0 {
		t.Fatal("local engine used despite successful remote playback")
	}
}

func TestManagerInterruptedRemoteDoesNotFallBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	engine := &stubEngine{}
	player := &stubPlayer{started: make(chan struct{}, 1), play: blockUntilCancelled}
	m := newTestManager(t, ManagerConfig{
		Engine:      engine,
		Player:      player,
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL}),
		Provider:    ProviderRemote,
	})

	done := make(chan error, 1)
	go func() { done <- m.Speak(context.Background(), "Traffic at twelve o'clock.") }()
	select {
	case <-player.started:
	case <-time.After(2 * time.Second):
		t.Fatal("remote playback never started")
	}
	m.Stop()

	if err := <-done; !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Speak() error = %v, want ErrInterrupted", err)
	}
	if n := len(engine.utterances()); n != 0 {
		t.Fatalf("local utterances = %d, want 0 after interruption", n)
	}
}

func TestManagerLocalFailureIsReturned(t *testing.T) {
	engineErr := errors.New("audio device busy")
	engine := &stubEngine{speak: func(context.Context, Utterance) error { return engineErr }}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	err := m.Speak(context.Background(), "Set QNH.")
	if !errors.Is(err, engineErr) {
		t.Fatalf("Speak() error = %v, want %v", err, engineErr)
	}
}

func TestManagerPerRequestProviderOverride(t *testing.T) {
	engine := &stubEngine{}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderRemote})

	req := m.Prepare("Terrain!", WithProvider(ProviderLocal))
	if req.Provider != ProviderLocal || !req.Urgent || req.CleanedText != "Terrain!" {
		t.Fatalf("Prepare() = %+v", req)
	}
	if m.Provider() != ProviderRemote {
		t.Fatal("per-request override changed the manager provider")
	}
}

func TestManagerSpeakRequestKeepsPreparedProvider(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	engine := &stubEngine{}
	player := &stubPlayer{}
	m := newTestManager(t, ManagerConfig{
		Engine:      engine,
		Player:      player,
		Synthesizer: NewElevenLabsClient(ElevenLabsConfig{APIKey: "sk_test", BaseURL: srv.URL}),
		Provider:    ProviderLocal,
	})
	events, cancel := m.Subscribe()
	defer cancel()

	req := m.Prepare("Gear down.")
	if req.Provider != ProviderLocal {
		t.Fatalf("Prepare() provider = %q, want local", req.Provider)
	}
	if err := m.SetProvider(ProviderRemote); err != nil {
		t.Fatalf("SetProvider() error = %v", err)
	}
	if err := m.SpeakRequest(context.Background(), req); err != nil {
		t.Fatalf("SpeakRequest() error = %v", err)
	}

	if hits.Load() != 0 || player.plays() != 0 {
		t.Fatalf("remote used: hits = %d, plays = %d", hits.Load(), player.plays())
	}
	if len(engine.utterances()) == 0 {
		t.Fatal("expected local synthesis for a request prepared as local")
	}
	for _, ev := range drainEvents(events) {
		if ev.RequestID == req.ID && ev.Provider != ProviderLocal {
			t.Fatalf("event %s provider = %q, want local", ev.Type, ev.Provider)
		}
	}
}

func TestManagerRefreshVoicesReloads(t *testing.T) {
	engine := &stubEngine{voices: []Voice{{Name: "Samantha"}}}
	m := newTestManager(t, ManagerConfig{Engine: engine, Provider: ProviderLocal})

	if v, err := m.Voices(context.Background()); err != nil || len(v) != 1 {
		t.Fatalf("Voices() = %v, %v", v, err)
	}
	engine.voices = []Voice{{Name: "Samantha"}, {Name: "Daniel"}}
	if v, _ := m.Voices(context.Background()); len(v) != 1 {
		t.Fatalf("Voices() before refresh = %d voices, want cached 1", len(v))
	}

	m.RefreshVoices()
	if v, err := m.Voices(context.Background()); err != nil || len(v) != 2 {
		t.Fatalf("Voices() after refresh = %v, %v", v, err)
	}
}
