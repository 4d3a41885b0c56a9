// Package copilot runs the chat pages: it records each exchange, asks the
// advisory backend (or falls back to canned text) and reads answers aloud.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/aerocopilot/internal/advisory"
	"github.com/ent0n29/aerocopilot/internal/casestudy"
	"github.com/ent0n29/aerocopilot/internal/observability"
	"github.com/ent0n29/aerocopilot/internal/session"
	"github.com/ent0n29/aerocopilot/internal/speech"
	"github.com/ent0n29/aerocopilot/internal/transcript"
)

var (
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrUnknownPhase  = errors.New("unknown flight phase")
	ErrUnknownAction = errors.New("unknown quick action")
)

// Backend is the advisory API used by the chat pages.
type Backend interface {
	StatusUpdate(ctx context.Context, flightID, message string) (string, error)
	SystemStatus(ctx context.Context, flightID, message string) (string, error)
	CopilotChat(ctx context.Context, question string) (string, error)
	AdvisePilot(ctx context.Context, data advisory.FlightData) (string, error)
	SimilarCrashes(ctx context.Context, query string, topK int) ([]advisory.SimilarResult, error)
}

// Speaker is the voice output used for auto-speak and the speak toggle.
type Speaker interface {
	Speak(ctx context.Context, text string, opts ...speech.SpeakOption) error
	Stop()
	IsSpeaking() bool
}

// Exchange is one user message and the assistant reply it produced.
type Exchange struct {
	User      transcript.Message `json:"user"`
	Assistant transcript.Message `json:"assistant"`
	// Spoken is true when the reply was queued for auto-speak.
	Spoken bool `json:"spoken"`
}

type Config struct {
	Sessions *session.Manager
	Store    transcript.Store
	Backend  Backend
	Speaker  Speaker
	Logger   *log.Logger
	Metrics  *observability.Metrics
	Now      func() time.Time
}

type Service struct {
	sessions *session.Manager
	store    transcript.Store
	backend  Backend
	speaker  Speaker
	log      *log.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	// speech outlives the request that produced the reply
	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		sessions: cfg.Sessions,
		store:    cfg.Store,
		backend:  cfg.Backend,
		speaker:  cfg.Speaker,
		log:      logger.WithPrefix("copilot"),
		metrics:  cfg.Metrics,
		now:      now,
		bgCtx:    ctx,
		bgCancel: cancel,
	}
	if s.sessions != nil {
		s.sessions.SetExpireHook(func(sess *session.Session) {
			s.log.Info("session expired", "session", sess.ID, "flight", sess.FlightID)
			s.metrics.CountSessionEvent("expired")
			s.metrics.SetActiveSessions(s.sessions.ActiveCount())
		})
	}
	return s
}

// Close stops background speech and waits for it to unwind.
func (s *Service) Close() {
	s.bgCancel()
	s.wg.Wait()
}

// StartSession opens a chat. Simulation sessions are bound to a case study id;
// unknown ids are allowed and render as the Unknown Flight placeholder.
func (s *Service) StartSession(kind session.Kind, flightID string, autoSpeak bool) (*session.Session, error) {
	flightID = strings.TrimSpace(flightID)
	if kind == session.KindSimulation && flightID == "" {
		return nil, fmt.Errorf("%w: simulation needs a flight id", session.ErrInvalidKind)
	}
	if kind == session.KindFlightStatus && flightID == "" {
		flightID = advisory.CustomFlightID
	}
	sess, err := s.sessions.Create(kind, flightID, autoSpeak)
	if err != nil {
		return nil, err
	}
	s.metrics.CountSessionEvent("created")
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	s.log.Info("session started", "session", sess.ID, "kind", kind, "flight", flightID)
	return sess, nil
}

func (s *Service) Session(sessionID string) (*session.Session, error) {
	return s.sessions.Get(sessionID)
}

// CaseStudy resolves the case study a session replays.
func (s *Service) CaseStudy(sessionID string) (casestudy.CaseStudy, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return casestudy.CaseStudy{}, err
	}
	return casestudy.Resolve(sess.FlightID), nil
}

func (s *Service) EndSession(sessionID string) (*session.Session, error) {
	sess, err := s.sessions.End(sessionID)
	if err != nil {
		return nil, err
	}
	s.metrics.CountSessionEvent("ended")
	s.metrics.SetActiveSessions(s.sessions.ActiveCount())
	return sess, nil
}

func (s *Service) SetAutoSpeak(sessionID string, on bool) error {
	return s.sessions.SetAutoSpeak(sessionID, on)
}

func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]transcript.Message, error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, sessionID, limit)
}

// Send posts free text. Simulation sessions ask about their case study flight.
func (s *Service) Send(ctx context.Context, sessionID, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	fallback := advisory.FreeFormFallback
	if sess.Kind == session.KindSimulation {
		fallback = advisory.SimulationFallback
	}
	return s.exchange(ctx, sess, text, "message", func(ctx context.Context) (string, error) {
		return s.backend.StatusUpdate(ctx, sess.FlightID, text)
	}, func(error) string { return fallback })
}

// RequestPhase asks for the procedures and checklist of a flight phase.
func (s *Service) RequestPhase(ctx context.Context, sessionID, phaseID string) (Exchange, error) {
	phase, ok := advisory.LookupPhase(phaseID)
	if !ok {
		return Exchange{}, fmt.Errorf("%w: %q", ErrUnknownPhase, phaseID)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Exchange{}, err
	}
	if err := s.sessions.SetPhase(sessionID, phase.ID); err != nil {
		return Exchange{}, err
	}
	return s.exchange(ctx, sess, phase.Request(), "phase", func(ctx context.Context) (string, error) {
		return s.backend.CopilotChat(ctx, phase.Question())
	}, func(error) string { return phase.Fallback() })
}

// QuickAction runs one of the one-shot advisory actions.
func (s *Service) QuickAction(ctx context.Context, sessionID, actionID string) (Exchange, error) {
	action, ok := advisory.LookupAction(actionID)
	if !ok {
		return Exchange{}, fmt.Errorf("%w: %q", ErrUnknownAction, actionID)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	flightID := advisory.CustomFlightID
	if sess.Kind == session.KindSimulation {
		flightID = sess.FlightID
	}
	call := func(ctx context.Context) (string, error) {
		switch action.ID {
		case advisory.ActionSystemStatus:
			return s.backend.SystemStatus(ctx, flightID, advisory.SystemCheckMessage)
		case advisory.ActionSimilarCrashes:
			results, err := s.backend.SimilarCrashes(ctx, advisory.SimilarCrashesQuery, advisory.SimilarCrashesTopK)
			if err != nil {
				return "", err
			}
			return advisory.FormatSimilar(results), nil
		default:
			data := advisory.SampleFlightData(s.now())
			if sess.Kind == session.KindSimulation {
				data.FlightID = sess.FlightID
			}
			return s.backend.AdvisePilot(ctx, data)
		}
	}
	return s.exchange(ctx, sess, action.Request(), "action", call, action.Fallback)
}

// SpeakMessage is the per-message speaker button: it stops speech when
// anything is playing, otherwise it starts reading the message.
func (s *Service) SpeakMessage(ctx context.Context, sessionID, messageID string) (stopped bool, err error) {
	if _, err := s.sessions.Get(sessionID); err != nil {
		return false, err
	}
	if s.speaker == nil {
		return false, speech.ErrEngineUnavailable
	}
	if s.speaker.IsSpeaking() {
		s.speaker.Stop()
		return true, nil
	}
	msg, err := s.store.Get(ctx, sessionID, messageID)
	if err != nil {
		return false, err
	}
	s.speakAsync(msg)
	return false, nil
}

func (s *Service) exchange(
	ctx context.Context,
	sess *session.Session,
	prompt, kind string,
	call func(context.Context) (string, error),
	fallback func(error) string,
) (Exchange, error) {
	if err := s.sessions.Touch(sess.ID); err != nil {
		return Exchange{}, err
	}
	user, err := s.store.Append(ctx, transcript.Message{SessionID: sess.ID, Role: transcript.RoleUser, Text: prompt})
	if err != nil {
		return Exchange{}, err
	}
	s.metrics.CountSessionEvent(kind)

	reply := transcript.Message{SessionID: sess.ID, Role: transcript.RoleAssistant}
	answer, callErr := call(ctx)
	switch {
	case callErr == nil:
		reply.Text = answer
	case errors.Is(callErr, advisory.ErrEmptyResponse):
		reply.Text = advisory.NoResponseText
	default:
		if ctx.Err() != nil {
			return Exchange{}, ctx.Err()
		}
		s.log.Warn("advisory backend unavailable, using fallback text", "session", sess.ID, "kind", kind, "err", callErr)
		s.metrics.CountSessionEvent("fallback")
		reply.Text = fallback(callErr)
		reply.Fallback = true
	}

	assistant, err := s.store.Append(ctx, reply)
	if err != nil {
		return Exchange{}, err
	}
	_ = s.sessions.Touch(sess.ID)

	out := Exchange{User: user, Assistant: assistant}
	out.Spoken = s.autoSpeak(sess.ID, assistant)
	return out, nil
}

// autoSpeak reads a new assistant message once, when the session has auto-speak on.
func (s *Service) autoSpeak(sessionID string, msg transcript.Message) bool {
	if s.speaker == nil || msg.Role != transcript.RoleAssistant {
		return false
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil || !sess.AutoSpeak {
		return false
	}
	fresh, err := s.sessions.MarkSpoken(sessionID, msg.ID)
	if err != nil || !fresh {
		return false
	}
	s.speakAsync(msg)
	return true
}

func (s *Service) speakAsync(msg transcript.Message) {
	if s.speaker == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.speaker.Speak(s.bgCtx, msg.Text, speech.WithRequestID(msg.ID))
		switch {
		case err == nil:
		case errors.Is(err, speech.ErrInterrupted), errors.Is(err, context.Canceled):
			s.log.Debug("speech interrupted", "message", msg.ID)
		default:
			s.log.Warn("speech failed", "message", msg.ID, "err", err)
		}
	}()
}
