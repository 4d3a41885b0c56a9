package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/aerocopilot/internal/casestudy"
	"github.com/ent0n29/aerocopilot/internal/copilot"
	"github.com/ent0n29/aerocopilot/internal/session"
	"github.com/ent0n29/aerocopilot/internal/speech"
	"github.com/ent0n29/aerocopilot/internal/transcript"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	kind := session.Kind(strings.TrimSpace(string(req.Kind)))
	if kind == "" {
		kind = session.KindFlightStatus
	}
	autoSpeak := true
	if req.AutoSpeak != nil {
		autoSpeak = *req.AutoSpeak
	}

	sess, err := s.copilot.StartSession(kind, req.FlightID, autoSpeak)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		Kind:            sess.Kind,
		FlightID:        sess.FlightID,
		Status:          sess.Status,
		AutoSpeak:       sess.AutoSpeak,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

type sessionResponse struct {
	*session.Session
	CaseStudy *casestudy.CaseStudy `json:"case_study,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.copilot.Session(id)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	out := sessionResponse{Session: sess}
	if sess.Kind == session.KindSimulation {
		cs := casestudy.Resolve(sess.FlightID)
		out.CaseStudy = &cs
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.copilot.EndSession(chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSetAutoSpeak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "enabled is required")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.copilot.SetAutoSpeak(id, *req.Enabled); err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "auto_speak": *req.Enabled})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := s.copilot.History(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "messages": msgs})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	ex, err := s.copilot.Send(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

func (s *Server) handleRequestPhase(w http.ResponseWriter, r *http.Request) {
	ex, err := s.copilot.RequestPhase(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "phase"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

func (s *Server) handleQuickAction(w http.ResponseWriter, r *http.Request) {
	ex, err := s.copilot.QuickAction(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "action"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ex)
}

// handleSpeakMessage toggles: it stops current speech, or reads the message.
func (s *Server) handleSpeakMessage(w http.ResponseWriter, r *http.Request) {
	stopped, err := s.copilot.SpeakMessage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "messageID"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	action := "speaking"
	if stopped {
		action = "stopped"
	}
	respondJSON(w, http.StatusOK, map[string]any{"action": action})
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusConflict, "session_ended", err.Error())
	case errors.Is(err, session.ErrInvalidKind):
		respondError(w, http.StatusBadRequest, "invalid_session_kind", err.Error())
	case errors.Is(err, copilot.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "empty_message", err.Error())
	case errors.Is(err, copilot.ErrUnknownPhase):
		respondError(w, http.StatusNotFound, "unknown_phase", err.Error())
	case errors.Is(err, copilot.ErrUnknownAction):
		respondError(w, http.StatusNotFound, "unknown_action", err.Error())
	case errors.Is(err, transcript.ErrNotFound):
		respondError(w, http.StatusNotFound, "message_not_found", err.Error())
	case errors.Is(err, speech.ErrEngineUnavailable):
		respondError(w, http.StatusServiceUnavailable, "speech_unavailable", err.Error())
	default:
		s.log.Error("request failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
