package memory

import (
	"context"
	"time"
)

// TurnRecord is one archived transcript entry. Position is the 1-based index
// of the turn within its session's transcript at the time it was appended.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Position    int       `json:"position"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is an append-only archive of game transcripts.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	// SessionTurns returns up to limit of the most recent turns of a session in
	// chronological order. limit <= 0 means all.
	SessionTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}

// SessionPurger is implemented by stores that hold archives only for the
// lifetime of the process and must drop a session once it is gone.
type SessionPurger interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

func fillDefaults(record *TurnRecord, newID func() string) {
	if record.ID == "" {
		record.ID = newID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}
