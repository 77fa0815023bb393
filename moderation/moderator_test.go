package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModerator_MasksPlainWord(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator([]string{"rubbish"}, '*')
	req.NoError(err)

	censored, found := m.Censor("this plan is rubbish, frankly")
	req.Equal("this plan is *******, frankly", censored)
	req.Equal([]string{"rubbish"}, found)
}

func TestModerator_MasksLeetSpeakVariant(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator([]string{"idiot"}, '*')
	req.NoError(err)

	censored, found := m.Censor("what an 1d10t move")
	req.Equal("what an ***** move", censored)
	req.Len(found, 1)
}

func TestModerator_MasksWordSplitByPunctuation(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator([]string{"moron"}, '#')
	req.NoError(err)

	censored, found := m.Censor("you m.o.r.o.n!")
	req.Equal("you #########!", censored)
	req.Len(found, 1)
}

func TestModerator_CaseInsensitive(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator([]string{"bastard"}, '*')
	req.NoError(err)

	censored, found := m.Censor("BASTARD")
	req.Equal("*******", censored)
	req.Len(found, 1)
}

func TestModerator_CleanTextPassesThrough(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator([]string{"rubbish"}, '*')
	req.NoError(err)

	original := "a perfectly polite contribution"
	censored, found := m.Censor(original)
	req.Equal(original, censored)
	req.Empty(found)
}

func TestModerator_EmptyWordListIsIdentity(t *testing.T) {
	req := require.New(t)
	m, err := NewModerator(nil, '*')
	req.NoError(err)

	original := "anything goes, apparently"
	censored, found := m.Censor(original)
	req.Equal(original, censored)
	req.Empty(found)
}

func TestLoadDefaultWords(t *testing.T) {
	req := require.New(t)
	list, err := LoadDefaultWords()
	req.NoError(err)
	req.NotEmpty(list.Words)
	req.Contains(list.Languages, "en")
	req.Contains(list.Languages, "fr")
}
