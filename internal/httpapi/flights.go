package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/aerocopilot/internal/advisory"
	"github.com/ent0n29/aerocopilot/internal/casestudy"
	"github.com/ent0n29/aerocopilot/internal/flights"
)

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	if s.flights == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "flight feed not configured")
		return
	}
	limit := queryInt(r, "limit", flights.GlobeLimit)
	respondJSON(w, http.StatusOK, s.flights.Snapshot(limit))
}

// handleFlightSummary feeds the header ticker.
func (s *Server) handleFlightSummary(w http.ResponseWriter, _ *http.Request) {
	if s.flights == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "flight feed not configured")
		return
	}
	snap := s.flights.Snapshot(flights.TickerLimit)
	respondJSON(w, http.StatusOK, map[string]any{
		"counts":     s.flights.Counts(),
		"flights":    snap.Flights,
		"fetched_at": snap.FetchedAt,
	})
}

func (s *Server) handleListCases(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"cases": casestudy.List()})
}

// handleGetCase always answers; unknown ids get the placeholder record.
func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, casestudy.Resolve(chi.URLParam(r, "id")))
}

func (s *Server) handleListPhases(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"phases": advisory.Phases()})
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"actions": advisory.Actions()})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
