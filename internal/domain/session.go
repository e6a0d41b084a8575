package domain

import (
	"time"

	"github.com/davidbz/starray/internal/observability"
)

// Session is one conversation: an append-only, ordered turn log.
// A Session is owned by the loop driving it and must not be mutated concurrently.
type Session struct {
	ID        string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Turns     []Turn `json:"turns"`
}

// Turn is one timestamped entry within a session.
type Turn struct {
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// SessionSummary describes a stored session without its turns.
type SessionSummary struct {
	ID        string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Turns     int    `json:"turns"`
}

// NewSession creates an empty session with a fresh identifier.
func NewSession() *Session {
	return &Session{
		ID:        observability.GenerateSessionID(),
		CreatedAt: Timestamp(time.Now()),
		Turns:     []Turn{},
	}
}

// Append adds a turn stamped with the current time.
func (s *Session) Append(role, content string) {
	s.Turns = append(s.Turns, Turn{
		Timestamp: Timestamp(time.Now()),
		Role:      role,
		Content:   content,
	})
}

// Timestamp renders t as an ISO-8601 UTC string.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
