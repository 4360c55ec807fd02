// Package tokenizer normalizes document text and splits it into shingles
// for similarity hashing.
package tokenizer

import (
	"fmt"
	"strings"
)

// Normalize lowercases text and collapses runs of whitespace into single spaces,
// trimming leading and trailing whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// CharacterShingles returns the distinct character k-grams of text, in order of first appearance.
// Text shorter than k yields a single shingle holding the whole text; empty text yields none.
// Shingles are built over runes so multi-byte characters are never split.
func CharacterShingles(text string, k int) []string {
	runes := []rune(text)
	if len(runes) == 0 || k <= 0 {
		return make([]string, 0) // Return empty slice instead of nil
	}
	if len(runes) <= k {
		return []string{text}
	}

	result := make([]string, 0, len(runes)-k+1)
	seen := make(map[string]struct{}, len(runes)-k+1)
	for i := 0; i+k <= len(runes); i++ {
		shingle := string(runes[i : i+k])
		if _, ok := seen[shingle]; ok {
			continue
		}
		seen[shingle] = struct{}{}
		result = append(result, shingle)
	}
	return result
}

// WordShingles returns the distinct k-word shingles of text, words joined by a single space.
func WordShingles(text string, k int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || k <= 0 {
		return make([]string, 0)
	}
	if len(words) <= k {
		return []string{strings.Join(words, " ")}
	}

	result := make([]string, 0, len(words)-k+1)
	seen := make(map[string]struct{}, len(words)-k+1)
	for i := 0; i+k <= len(words); i++ {
		shingle := strings.Join(words[i:i+k], " ")
		if _, ok := seen[shingle]; ok {
			continue
		}
		seen[shingle] = struct{}{}
		result = append(result, shingle)
	}
	return result
}

// Shingler produces shingles for a text.
type Shingler func(text string) []string

// ParseScheme resolves a shingle scheme name such as "c4" (character 4-grams)
// or "w2" (word bigrams) into a Shingler.
func ParseScheme(scheme string) (Shingler, error) {
	var kind rune
	var k int
	if _, err := fmt.Sscanf(scheme, "%c%d", &kind, &k); err != nil {
		return nil, fmt.Errorf("invalid shingle scheme %q: %w", scheme, err)
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid shingle scheme %q: size must be positive", scheme)
	}

	switch kind {
	case 'c':
		return func(text string) []string { return CharacterShingles(text, k) }, nil
	case 'w':
		return func(text string) []string { return WordShingles(text, k) }, nil
	default:
		return nil, fmt.Errorf("invalid shingle scheme %q: unknown kind %q", scheme, kind)
	}
}
