// Package domain contains core concepts of the panel system.
// This file defines the persisted transcript model.
// Entries are immutable and append-only.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser        Role = "user"
	RoleParticipant Role = "participant"
)

// TranscriptEntry is the durable record of one contribution to a turn.
// It is the single source of truth for reconciliation: the live stream
// may lose events, the transcript may not.
type TranscriptEntry struct {
	ID              uuid.UUID `json:"id"`
	SessionID       string    `json:"sessionId"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	ParticipantID   string    `json:"participantId,omitempty"`
	ParticipantName string    `json:"participantName,omitempty"`
	At              time.Time `json:"at"`
}
