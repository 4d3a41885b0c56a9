package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/aerocopilot/internal/speech"
)

type speakRequest struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	// Wait blocks the response until the text has been spoken.
	Wait bool `json:"wait,omitempty"`
}

type speakResponse struct {
	Status  string         `json:"status"`
	Request speech.Request `json:"request"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	var opts []speech.SpeakOption
	if req.Provider != "" {
		p, err := speech.ParseProvider(req.Provider)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_provider", err.Error())
			return
		}
		opts = append(opts, speech.WithProvider(p))
	}

	prepared := s.speech.Prepare(req.Text, opts...)
	if prepared.CleanedText == "" {
		respondJSON(w, http.StatusOK, speakResponse{Status: "skipped", Request: prepared})
		return
	}

	if req.Wait {
		err := s.speech.SpeakRequest(r.Context(), prepared)
		switch {
		case err == nil:
			respondJSON(w, http.StatusOK, speakResponse{Status: "finished", Request: prepared})
		case errors.Is(err, speech.ErrInterrupted):
			respondJSON(w, http.StatusOK, speakResponse{Status: "interrupted", Request: prepared})
		default:
			respondError(w, http.StatusInternalServerError, "speech_failed", err.Error())
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.speech.SpeakRequest(s.bgCtx, prepared); err != nil && !errors.Is(err, speech.ErrInterrupted) {
			s.log.Warn("background speech failed", "request", prepared.ID, "err", err)
		}
	}()
	respondJSON(w, http.StatusAccepted, speakResponse{Status: "queued", Request: prepared})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.speech.Stop()
	respondJSON(w, http.StatusOK, map[string]any{"speaking": false})
}

func (s *Server) handleSpeechStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"speaking":         s.speech.IsSpeaking(),
		"provider":         s.speech.Provider(),
		"remote_available": s.speech.RemoteAvailable(),
	})
}

func (s *Server) handleGetProvider(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"provider":         s.speech.Provider(),
		"remote_available": s.speech.RemoteAvailable(),
	})
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	p, err := speech.ParseProvider(req.Provider)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_provider", err.Error())
		return
	}
	if err := s.speech.SetProvider(p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_provider", err.Error())
		return
	}
	s.log.Info("tts provider changed", "provider", p)
	s.handleGetProvider(w, r)
}

// handleVoices lists local voices; ?refresh=1 reloads them from the engine.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("refresh") {
	case "1", "true":
		s.speech.RefreshVoices()
	}
	voices, err := s.speech.Voices(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "voices_unavailable", err.Error())
		return
	}
	if voices == nil {
		voices = []speech.Voice{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

type cleanResponse struct {
	CleanedText string          `json:"cleaned_text"`
	Urgent      bool            `json:"urgent"`
	Sentences   []string        `json:"sentences"`
	Delivery    speech.Delivery `json:"delivery"`
}

// handleClean shows what the voice would say without speaking it.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	cleaned := speech.CleanText(req.Text)
	urgent := speech.IsUrgent(cleaned)
	sentences := speech.SplitSentences(cleaned)
	if sentences == nil {
		sentences = []string{}
	}
	respondJSON(w, http.StatusOK, cleanResponse{
		CleanedText: cleaned,
		Urgent:      urgent,
		Sentences:   sentences,
		Delivery:    speech.DeliveryFor(urgent),
	})
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 120 * time.Second
	wsPingPeriod = 50 * time.Second
)

// handleSpeechEvents streams speech progress events until the client goes away.
func (s *Server) handleSpeechEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.speech.Subscribe()
	defer unsubscribe()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(4 << 10)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			s.metrics.CountWS("inbound", "ignored")
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-s.bgCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("speech events write failed", "err", err)
				return
			}
			s.metrics.CountWS("outbound", string(ev.Type))
		}
	}
}
