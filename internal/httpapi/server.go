package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/aerocopilot/internal/config"
	"github.com/ent0n29/aerocopilot/internal/copilot"
	"github.com/ent0n29/aerocopilot/internal/flights"
	"github.com/ent0n29/aerocopilot/internal/observability"
	"github.com/ent0n29/aerocopilot/internal/speech"
)

// Speech is the voice output owned by the process.
type Speech interface {
	Prepare(text string, opts ...speech.SpeakOption) speech.Request
	Speak(ctx context.Context, text string, opts ...speech.SpeakOption) error
	SpeakRequest(ctx context.Context, req speech.Request) error
	Stop()
	IsSpeaking() bool
	Provider() speech.Provider
	SetProvider(p speech.Provider) error
	RemoteAvailable() bool
	Voices(ctx context.Context) ([]speech.Voice, error)
	RefreshVoices()
	Subscribe() (<-chan speech.Event, func())
}

// Flights serves the cached live flight snapshot.
type Flights interface {
	Snapshot(limit int) flights.Snapshot
	Counts() flights.Counts
}

// BackendStatus reports advisory backend reachability.
type BackendStatus interface {
	Connected() bool
	CheckedAt() time.Time
}

type Deps struct {
	Speech  Speech
	Flights Flights
	Copilot *copilot.Service
	Backend BackendStatus
	// BackendURL is shown on the status endpoint.
	BackendURL string
	Metrics    *observability.Metrics
	Logger     *log.Logger
}

type Server struct {
	cfg        config.Config
	speech     Speech
	flights    Flights
	copilot    *copilot.Service
	backend    BackendStatus
	backendURL string
	metrics    *observability.Metrics
	log        *log.Logger
	upgrader   websocket.Upgrader

	// fire-and-forget speak requests run on this context
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		speech:     deps.Speech,
		flights:    deps.Flights,
		copilot:    deps.Copilot,
		backend:    deps.Backend,
		backendURL: deps.BackendURL,
		metrics:    deps.Metrics,
		log:        logger.WithPrefix("http"),
		bgCtx:      ctx,
		bgCancel:   cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.AllowAnyOrigin || sameOrigin(r)
			},
		},
	}
}

// Close cancels background speech started by the API and waits for it.
func (s *Server) Close() {
	s.bgCancel()
	s.wg.Wait()
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Route("/v1/speech", func(r chi.Router) {
		r.Post("/speak", s.handleSpeak)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleSpeechStatus)
		r.Get("/provider", s.handleGetProvider)
		r.Put("/provider", s.handleSetProvider)
		r.Get("/voices", s.handleVoices)
		r.Post("/clean", s.handleClean)
		r.Get("/events", s.handleSpeechEvents)
	})

	r.Get("/v1/flights", s.handleFlights)
	r.Get("/v1/flights/summary", s.handleFlightSummary)
	r.Get("/v1/cases", s.handleListCases)
	r.Get("/v1/cases/{id}", s.handleGetCase)
	r.Get("/v1/phases", s.handleListPhases)
	r.Get("/v1/actions", s.handleListActions)
	r.Get("/v1/backend/status", s.handleBackendStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/end", s.handleEndSession)
			r.Put("/auto_speak", s.handleSetAutoSpeak)
			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleSendMessage)
			r.Post("/messages/{messageID}/speak", s.handleSpeakMessage)
			r.Post("/phase/{phase}", s.handleRequestPhase)
			r.Post("/actions/{action}", s.handleQuickAction)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"tts_provider": s.speech.Provider(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	backend := false
	if s.backend != nil {
		backend = s.backend.Connected()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"tts_provider":      s.speech.Provider(),
		"remote_tts":        s.speech.RemoteAvailable(),
		"backend_connected": backend,
	})
}

func (s *Server) handleBackendStatus(w http.ResponseWriter, _ *http.Request) {
	if s.backend == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "backend monitor not configured")
		return
	}
	var checked *time.Time
	if at := s.backend.CheckedAt(); !at.IsZero() {
		checked = &at
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"connected":  s.backend.Connected(),
		"checked_at": checked,
		"base_url":   s.backendURL,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// sameOrigin allows non-browser clients without Origin and browsers on the same host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
