package httpapi

import "net/http"

// handlePerfLatency serves the rolling latency window: remote synthesis,
// whole speech requests, advisory calls and flight fetches.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotLatency())
}
