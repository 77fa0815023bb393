// Package domain contains core concepts of the panel system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// Participant is one independent responder fanned out to for a single
// user turn. It is immutable for the duration of a turn; ownership of
// the configured roster belongs to the configuration layer.
type Participant struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Color     string `json:"color" validate:"omitempty,hexcolor"`
	AvatarRef string `json:"avatar_ref"`
	// Locale is an optional reply-language directive (ISO 639-1).
	// When empty, the language of the user message is used instead.
	Locale  string `json:"locale" validate:"omitempty,len=2"`
	Persona string `json:"persona" validate:"required"`
}
