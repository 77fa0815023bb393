package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"os"
	"strings"
)

//go:embed words/*.txt
var defaultWordsFS embed.FS

// WordList carries the loaded forbidden words plus metadata for logging.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadDefaultWords parses the embedded per-language dictionaries into a
// unique word list. Filenames double as language tags ("fr.txt" -> "fr").
func LoadDefaultWords() (*WordList, error) {
	entries, err := fs.ReadDir(defaultWordsFS, "words")
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := defaultWordsFS.ReadFile("words/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := scanWords(data, uniqueWords); err != nil {
			return nil, err
		}
	}

	return &WordList{Words: toSlice(uniqueWords), Languages: languages}, nil
}

// LoadWordsFile merges an operator-provided dictionary on top of the
// embedded defaults.
func LoadWordsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	uniqueWords := make(map[string]struct{})
	if err := scanWords(data, uniqueWords); err != nil {
		return nil, err
	}
	return toSlice(uniqueWords), nil
}

// scanWords handles both \n and \r\n line endings.
func scanWords(data []byte, into map[string]struct{}) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		into[line] = struct{}{}
	}
	return scanner.Err()
}

func toSlice(set map[string]struct{}) []string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	return words
}
