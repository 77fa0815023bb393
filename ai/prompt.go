// Package ai turns a participant persona and a user message into a
// prompt, and carries the prompt to a generative backend.
package ai

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"

	"panel-lab/domain"
)

// PromptBuilder assembles the system and user halves of a generation
// prompt. The shared context is the same for every participant of a
// deployment; the persona is per-participant.
type PromptBuilder struct {
	sharedContext string
}

func NewPromptBuilder(sharedContext string) PromptBuilder {
	return PromptBuilder{sharedContext: strings.TrimSpace(sharedContext)}
}

// Build produces the prompt for one participant answering one user
// message. When the participant declares no locale, the user message's
// language is detected and the reply is pinned to it, so a French
// question gets a French answer regardless of persona wording.
func (b PromptBuilder) Build(p domain.Participant, userMessage string) domain.Prompt {
	var sb strings.Builder
	if b.sharedContext != "" {
		sb.WriteString(b.sharedContext)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("You are %s.", p.Name))
	if p.Persona != "" {
		sb.WriteString(" ")
		sb.WriteString(p.Persona)
	}

	locale := p.Locale
	if locale == "" {
		locale = detectLocale(userMessage)
	}
	if locale != "" {
		sb.WriteString(fmt.Sprintf("\nAnswer in the language with ISO 639-1 code %q.", locale))
	}

	return domain.Prompt{
		System: sb.String(),
		User:   userMessage,
	}
}

// detectLocale guesses the ISO 639-1 code of the message. Short or
// ambiguous inputs come back empty and leave the model free to choose.
func detectLocale(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return whatlanggo.LangToStringShort(info.Lang)
}
