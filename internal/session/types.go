package session

import "time"

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	Kind     Kind   `json:"kind"`
	FlightID string `json:"flight_id"`
	// AutoSpeak defaults to true when omitted.
	AutoSpeak *bool `json:"auto_speak"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Kind            Kind      `json:"kind"`
	FlightID        string    `json:"flight_id"`
	Status          Status    `json:"status"`
	AutoSpeak       bool      `json:"auto_speak"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
