// Package signals turns listing description text into keyword hits and
// boolean feature flags. Every function here is pure: the keyword tables
// come from configuration.
package signals

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text and collapses whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// FindHits returns the keywords present in normalized text, in keyword
// order, without duplicates. A keyword only matches on word boundaries, so
// "den" does not match "garden".
func FindHits(normalized string, keywords []string) []string {
	var hits []string
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		if ContainsPhrase(normalized, kw) {
			hits = append(hits, kw)
			seen[kw] = struct{}{}
		}
	}
	return hits
}

// ContainsAny reports whether any keyword is present.
func ContainsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && ContainsPhrase(normalized, kw) {
			return true
		}
	}
	return false
}

// ContainsPhrase reports whether phrase occurs in text with a non-word
// character (or the text edge) on both sides.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		from = start + 1
		if from >= len(text) {
			return false
		}
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(text[i-1])
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	return !isWordByte(text[i])
}

func isWordByte(b byte) bool {
	if b >= 0x80 {
		return true
	}
	return b == '_' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}
