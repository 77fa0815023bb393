// Package moderation masks forbidden words in generated output before
// it reaches the stream or the transcript. Matching is resilient to
// leet-speak substitutions and to punctuation or spacing inserted
// inside a word.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator holds a compiled Aho-Corasick automaton over the normalized
// forms of the forbidden word list. Zero-value is unusable; construct
// with NewModerator.
type Moderator struct {
	machine  *goahocorasick.Machine
	maskRune rune
	patterns int
}

// NewModerator compiles the word list. An empty list yields a moderator
// whose Censor is the identity function.
func NewModerator(words []string, maskRune rune) (Moderator, error) {
	normalized := make([][]rune, 0, len(words))
	for _, w := range words {
		n := normalizeWord([]rune(w))
		if len(n) > 0 {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return Moderator{maskRune: maskRune}, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(normalized); err != nil {
		return Moderator{}, err
	}
	return Moderator{machine: machine, maskRune: maskRune, patterns: len(normalized)}, nil
}

// Censor replaces every matched span with the mask rune, keeping the
// original length and spacing, and returns the normalized forms that
// matched. The input is returned unchanged when nothing matches.
func (m Moderator) Censor(text string) (string, []string) {
	if m.machine == nil {
		return text, nil
	}

	searchable, origIdx := normalizeText(text)
	if len(searchable) == 0 {
		return text, nil
	}

	hits := m.machine.MultiPatternSearch(searchable, false)
	if len(hits) == 0 {
		return text, nil
	}

	out := []rune(text)
	found := make([]string, 0, len(hits))
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Mask the original span the normalized match maps back to,
		// including any noise runes sitting inside it.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			out[i] = m.maskRune
		}
		found = append(found, string(hit.Word))
	}
	return string(out), found
}

// normalizeText lowercases, folds leet substitutions and drops noise
// runes, remembering for each kept rune its index in the original text.
func normalizeText(text string) ([]rune, []int) {
	orig := []rune(text)
	kept := make([]rune, 0, len(orig))
	origIdx := make([]int, 0, len(orig))
	for i, r := range orig {
		folded := foldLeet(r)
		if isNoise(folded) {
			continue
		}
		kept = append(kept, unicode.ToLower(folded))
		origIdx = append(origIdx, i)
	}
	return kept, origIdx
}

func normalizeWord(word []rune) []rune {
	out := make([]rune, 0, len(word))
	for _, r := range word {
		folded := foldLeet(r)
		if isNoise(folded) {
			continue
		}
		out = append(out, unicode.ToLower(folded))
	}
	return out
}

// foldLeet maps the usual digit/symbol stand-ins back to letters.
func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
