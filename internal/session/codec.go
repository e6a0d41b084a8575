package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/starray/internal/domain"
)

// record mirrors domain.Session with pointer fields so missing keys are detectable.
type record struct {
	SessionID *string      `json:"session_id"`
	CreatedAt *string      `json:"created_at"`
	Turns     []recordTurn `json:"turns"`
}

type recordTurn struct {
	Timestamp *string `json:"timestamp"`
	Role      *string `json:"role"`
	Content   *string `json:"content"`
}

// Encode renders a session as its stored record.
// Output is deterministic: encoding the same session twice yields identical bytes.
func Encode(s *domain.Session) ([]byte, error) {
	out := *s
	if out.Turns == nil {
		out.Turns = []domain.Turn{}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}

	return append(data, '\n'), nil
}

// Decode parses a stored record for id.
// Unparsable content, missing required fields, or a record for another id yield ErrSessionCorrupt.
func Decode(id string, data []byte) (*domain.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, corrupt(id, fmt.Errorf("invalid JSON: %w", err))
	}

	if rec.SessionID == nil || *rec.SessionID == "" {
		return nil, corrupt(id, errors.New("missing session_id"))
	}
	if *rec.SessionID != id {
		return nil, corrupt(id, fmt.Errorf("record belongs to session %s", *rec.SessionID))
	}
	if rec.CreatedAt == nil || *rec.CreatedAt == "" {
		return nil, corrupt(id, errors.New("missing created_at"))
	}

	turns := make([]domain.Turn, 0, len(rec.Turns))
	for i, t := range rec.Turns {
		if t.Timestamp == nil || t.Role == nil || t.Content == nil || *t.Role == "" {
			return nil, corrupt(id, fmt.Errorf("turn %d is incomplete", i))
		}
		turns = append(turns, domain.Turn{
			Timestamp: *t.Timestamp,
			Role:      *t.Role,
			Content:   *t.Content,
		})
	}

	return &domain.Session{
		ID:        *rec.SessionID,
		CreatedAt: *rec.CreatedAt,
		Turns:     turns,
	}, nil
}

// ValidID reports whether id can name a stored record.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

// NotFound builds the error returned for an unknown session id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
}

func corrupt(id string, reason error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrSessionCorrupt, id, reason)
}
