package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/ent0n29/aerocopilot/internal/observability"
)

// ErrInterrupted is returned by Speak when a newer request or Stop took the voice slot.
var ErrInterrupted = errors.New("speech interrupted")

// Synthesizer is the remote TTS collaborator.
type Synthesizer interface {
	Available() bool
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type ManagerConfig struct {
	Engine      Engine
	Synthesizer Synthesizer
	Player      Player
	Logger      *log.Logger
	Metrics     *observability.Metrics

	// Provider is the initial selection. Empty picks remote when its
	// credential is usable, local otherwise.
	Provider        Provider
	PreferredVoices []string
	// CacheSize bounds the synthesized audio cache; zero disables it.
	CacheSize int
	// UrgentPause and CalmPause override the inter-sentence pauses.
	UrgentPause time.Duration
	CalmPause   time.Duration
}

// Manager owns the single voice output slot. At most one request is audible
// at any time: every Speak first stops whatever is playing.
type Manager struct {
	engine    Engine
	synth     Synthesizer
	player    Player
	log       *log.Logger
	metrics   *observability.Metrics
	preferred []string
	cache     *lru.Cache[string, []byte]
	breaker   *gobreaker.CircuitBreaker[[]byte]
	events    *broadcaster

	urgentPause time.Duration
	calmPause   time.Duration

	mu         sync.Mutex
	provider   Provider
	generation uint64
	cancel     context.CancelFunc

	voicesMu sync.Mutex
	voices   []Voice
	loaded   bool
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		engine:      cfg.Engine,
		synth:       cfg.Synthesizer,
		player:      cfg.Player,
		log:         logger.WithPrefix("speech"),
		metrics:     cfg.Metrics,
		preferred:   cfg.PreferredVoices,
		events:      newBroadcaster(),
		urgentPause: cfg.UrgentPause,
		calmPause:   cfg.CalmPause,
	}
	if len(m.preferred) == 0 {
		m.preferred = DefaultPreferredVoices
	}
	if m.urgentPause <= 0 {
		m.urgentPause = urgentSentencePause
	}
	if m.calmPause <= 0 {
		m.calmPause = calmSentencePause
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("audio cache: %w", err)
		}
		m.cache = cache
	}
	m.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "elevenlabs",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.log.Warn("remote tts breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	switch {
	case cfg.Provider == "":
		m.provider = ProviderLocal
		if m.RemoteAvailable() {
			m.provider = ProviderRemote
		}
	case cfg.Provider.Valid():
		m.provider = cfg.Provider
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	return m, nil
}

type speakOptions struct {
	provider  Provider
	requestID string
}

type SpeakOption func(*speakOptions)

// WithProvider overrides the manager's current provider for one request.
func WithProvider(p Provider) SpeakOption {
	return func(o *speakOptions) { o.provider = p }
}

// WithRequestID tags the request and its events with a caller-chosen id.
func WithRequestID(id string) SpeakOption {
	return func(o *speakOptions) { o.requestID = id }
}

// Request is one logical request to vocalize a string. It is never persisted.
type Request struct {
	ID          string   `json:"id"`
	Text        string   `json:"-"`
	CleanedText string   `json:"cleaned_text"`
	Provider    Provider `json:"provider"`
	Urgent      bool     `json:"urgent"`
}

// Prepare derives the request Speak would run, without speaking.
func (m *Manager) Prepare(text string, opts ...SpeakOption) Request {
	var o speakOptions
	for _, opt := range opts {
		opt(&o)
	}
	provider := o.provider
	if !provider.Valid() {
		provider = m.Provider()
	}
	id := o.requestID
	if id == "" {
		id = uuid.NewString()
	}
	cleaned := CleanText(text)
	return Request{
		ID:          id,
		Text:        text,
		CleanedText: cleaned,
		Provider:    provider,
		Urgent:      IsUrgent(cleaned),
	}
}

// Speak vocalizes text and blocks until it has been spoken. Text that cleans
// to nothing is a no-op. Remote failures fall back to local synthesis and are
// never returned; local failures are. A request superseded by a newer Speak
// or by Stop returns ErrInterrupted.
func (m *Manager) Speak(ctx context.Context, text string, opts ...SpeakOption) error {
	return m.SpeakRequest(ctx, m.Prepare(text, opts...))
}

// SpeakRequest speaks a request built by Prepare exactly as prepared, so the
// provider reported to a caller is the one used even if SetProvider runs in
// between.
func (m *Manager) SpeakRequest(ctx context.Context, req Request) error {
	if req.CleanedText == "" {
		return nil
	}

	reqCtx, gen, done := m.acquire(ctx)
	defer done()
	start := time.Now()

	m.publish(EventStarted, req, "")
	m.log.Debug("speaking", "request", req.ID, "provider", req.Provider, "urgent", req.Urgent, "chars", len(req.CleanedText))

	var err error
	if req.Provider == ProviderRemote {
		err = m.speakRemote(reqCtx, gen, req)
	} else {
		err = m.speakLocal(reqCtx, req)
	}

	switch {
	case err == nil && !m.superseded(gen):
		m.publish(EventFinished, req, "")
		m.metrics.CountSpeech(string(req.Provider), "finished")
		m.metrics.ObserveStage(observability.StageSpeechTotal, time.Since(start))
		return nil
	case m.superseded(gen) || errors.Is(err, ErrInterrupted) || (reqCtx.Err() != nil && ctx.Err() == nil):
		m.publish(EventInterrupted, req, "")
		m.metrics.CountSpeech(string(req.Provider), "interrupted")
		return ErrInterrupted
	case err == nil:
		return nil
	default:
		m.log.Error("speech failed", "request", req.ID, "err", err)
		m.publish(EventFailed, req, err.Error())
		m.metrics.CountSpeech(string(req.Provider), "failed")
		return err
	}
}

// Stop silences any active request. Safe to call when nothing is playing.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.generation++
	m.stopLocked()
	m.mu.Unlock()
}

// IsSpeaking reports whether the local engine or the remote audio handle is active.
func (m *Manager) IsSpeaking() bool {
	if m.engine != nil && m.engine.Speaking() {
		return true
	}
	return m.player != nil && m.player.Playing()
}

func (m *Manager) Provider() Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// SetProvider changes the provider used by later Speak calls. In-flight speech
// is not affected. Unknown values are rejected and leave the selection as is.
func (m *Manager) SetProvider(p Provider) error {
	if !p.Valid() {
		m.log.Error("invalid tts provider", "provider", string(p))
		return fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
	m.log.Info("tts provider changed", "provider", p)
	return nil
}

// RemoteAvailable reports whether the remote provider has a usable credential.
func (m *Manager) RemoteAvailable() bool {
	return m.synth != nil && m.synth.Available()
}

// Voices returns the local engine voices, loading them once.
func (m *Manager) Voices(ctx context.Context) ([]Voice, error) {
	if m.engine == nil {
		return nil, ErrEngineUnavailable
	}
	m.voicesMu.Lock()
	defer m.voicesMu.Unlock()
	if m.loaded {
		return m.voices, nil
	}
	voices, err := m.engine.Voices(ctx)
	if err != nil {
		return nil, err
	}
	m.voices = voices
	m.loaded = true
	m.log.Debug("local voices loaded", "count", len(voices))
	return voices, nil
}

// RefreshVoices drops the cached voice list.
func (m *Manager) RefreshVoices() {
	m.voicesMu.Lock()
	m.voices = nil
	m.loaded = false
	m.voicesMu.Unlock()
}

// Subscribe streams request events until the returned cancel is called.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe(64)
}

// acquire takes the voice slot: the previous occupant is stopped before the
// new request gets its generation.
func (m *Manager) acquire(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	m.stopLocked()
	m.generation++
	gen := m.generation
	m.cancel = cancel
	m.mu.Unlock()
	m.metrics.SetSpeaking(true)

	return ctx, gen, func() {
		cancel()
		m.mu.Lock()
		if m.generation == gen {
			m.cancel = nil
			m.metrics.SetSpeaking(false)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.engine != nil {
		m.engine.Cancel()
	}
	if m.player != nil {
		m.player.Stop()
	}
	m.metrics.SetSpeaking(false)
}

func (m *Manager) superseded(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation != gen
}

func (m *Manager) speakLocal(ctx context.Context, req Request) error {
	if m.engine == nil {
		return ErrEngineUnavailable
	}
	sentences := SplitSentences(req.CleanedText)
	delivery := DeliveryFor(req.Urgent)
	pause := m.calmPause
	if req.Urgent {
		pause = m.urgentPause
	}

	var voice *Voice
	if voices, err := m.Voices(ctx); err == nil {
		voice = SelectVoice(voices, m.preferred)
	} else {
		m.log.Debug("using default local voice", "err", err)
	}

	for i, sentence := range sentences {
		if i > 0 {
			timer := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ErrInterrupted
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		err := m.engine.Speak(ctx, Utterance{
			Text:     sentence,
			Voice:    voice,
			Lang:     defaultLanguage,
			Delivery: delivery,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			return fmt.Errorf("local synthesis: %w", err)
		}
		m.publish(EventSentence, req, sentence)
	}
	return nil
}

// speakRemote plays the request through the remote voice and falls back to
// local synthesis on any failure other than interruption.
func (m *Manager) speakRemote(ctx context.Context, gen uint64, req Request) error {
	reason, err := m.playRemote(ctx, req)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || m.superseded(gen) {
		return ErrInterrupted
	}
	if reason == "credential_missing" {
		m.log.Debug("remote tts not configured, using local synthesis", "request", req.ID)
	} else {
		m.log.Warn("remote tts failed, falling back to local synthesis", "request", req.ID, "reason", reason, "err", err)
	}
	m.metrics.CountFallback(reason)
	m.publish(EventFallback, req, reason)
	return m.speakLocal(ctx, req)
}

func (m *Manager) playRemote(ctx context.Context, req Request) (string, error) {
	if !m.RemoteAvailable() {
		return "credential_missing", ErrMissingCredential
	}
	if m.player == nil {
		return "no_audio_output", errors.New("no audio player configured")
	}

	audio, err := m.remoteAudio(ctx, req.CleanedText)
	if err != nil {
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
			return "http_status", err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return "breaker_open", err
		default:
			return "network", err
		}
	}
	if err := m.player.Play(ctx, audio); err != nil {
		return "playback", err
	}
	return "", nil
}

func (m *Manager) remoteAudio(ctx context.Context, text string) ([]byte, error) {
	if m.cache != nil {
		if audio, ok := m.cache.Get(text); ok {
			m.metrics.CountCache(true)
			return audio, nil
		}
		m.metrics.CountCache(false)
	}

	start := time.Now()
	audio, err := m.breaker.Execute(func() ([]byte, error) {
		return m.synth.Synthesize(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveRemoteSynthesis(time.Since(start))
	if m.cache != nil {
		m.cache.Add(text, audio)
	}
	return audio, nil
}

func (m *Manager) publish(t EventType, req Request, detail string) {
	m.events.publish(Event{
		Type:      t,
		RequestID: req.ID,
		Provider:  req.Provider,
		Urgent:    req.Urgent,
		Detail:    detail,
		At:        time.Now().UTC(),
	})
}
