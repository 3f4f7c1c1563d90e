package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/mediassist/internal/appointment"
)

// Session is the state of one conversation: the history, the booking flow
// and the document grounding replies.
type Session struct {
	ID           string           `json:"id"`
	History      History          `json:"history"`
	Flow         appointment.Flow `json:"flow"`
	Document     string           `json:"document,omitempty"`
	DocumentName string           `json:"document_name,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewSession creates a session with a fresh id. An empty id is replaced with
// a random one.
func NewSession(id, systemPrompt string, now time.Time) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{
		ID:        id,
		History:   NewHistory(systemPrompt),
		Flow:      appointment.Flow{Phase: appointment.PhaseIdle},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// State reports the booking phase, e.g. "idle" or "collecting(email)".
func (s *Session) State() string {
	return s.Flow.State()
}
