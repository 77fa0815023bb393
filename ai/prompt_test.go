package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"panel-lab/domain"
)

func TestPromptBuilder_IncludesPersonaAndSharedContext(t *testing.T) {
	req := require.New(t)
	builder := NewPromptBuilder("A panel of experts answers one user at a time.")

	prompt := builder.Build(domain.Participant{
		ID: "historian", Name: "The Historian", Persona: "You cite precedents.",
	}, "why did that happen?")

	req.Contains(prompt.System, "A panel of experts")
	req.Contains(prompt.System, "You are The Historian.")
	req.Contains(prompt.System, "You cite precedents.")
	req.Equal("why did that happen?", prompt.User)
}

func TestPromptBuilder_ParticipantLocaleWins(t *testing.T) {
	req := require.New(t)
	builder := NewPromptBuilder("")

	prompt := builder.Build(domain.Participant{
		ID: "p", Name: "P", Persona: "x", Locale: "de",
	}, "please answer this question for me")

	req.Contains(prompt.System, `"de"`)
}

func TestPromptBuilder_DetectsMessageLanguage(t *testing.T) {
	req := require.New(t)
	builder := NewPromptBuilder("")

	prompt := builder.Build(domain.Participant{
		ID: "p", Name: "P", Persona: "x",
	}, "Pourriez-vous expliquer pourquoi cette décision a été prise et quelles en sont les conséquences ?")

	req.Contains(prompt.System, `"fr"`)
}

func TestPromptBuilder_AmbiguousMessageGetsNoDirective(t *testing.T) {
	req := require.New(t)
	builder := NewPromptBuilder("")

	prompt := builder.Build(domain.Participant{
		ID: "p", Name: "P", Persona: "x",
	}, "ok")

	req.NotContains(prompt.System, "ISO 639-1")
}
