package transcript

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrNotFound = errors.New("message not found")

// Message is a single chat line. Every page and endpoint uses this one shape.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	// Fallback marks assistant text produced locally because the backend failed.
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves chat transcripts.
type Store interface {
	Append(ctx context.Context, msg Message) (Message, error)
	Get(ctx context.Context, sessionID, messageID string) (Message, error)
	// History returns the newest limit messages in chronological order; limit <= 0 means all.
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Close() error
}
