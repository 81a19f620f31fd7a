package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesWord(t *testing.T) {
	tests := []struct {
		name  string
		guess string
		word  string
		want  bool
	}{
		{"exact", "elephant", "elephant", true},
		{"case folded", "ELEPHANT", "Elephant", true},
		{"surrounding whitespace", "  elephant ", "elephant", true},
		{"plural does not match", "elephants", "elephant", false},
		{"substring does not match", "elephant in the room", "elephant", false},
		{"empty guess", "", "elephant", false},
		{"no active word never matches", "anything", "", false},
		{"whitespace-only word never matches", "  ", "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesWord(tt.guess, tt.word))
		})
	}
}
