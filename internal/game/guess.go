package game

import "strings"

// MatchesWord reports whether a guess hits the active secret word:
// trimmed, case-folded, exact. "elephants" does not match "Elephant";
// " elephant " does.
func MatchesWord(guess, word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(guess), word)
}
