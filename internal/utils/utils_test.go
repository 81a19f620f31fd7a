package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCode(t *testing.T) {
	code := GenerateRoomCode(internal.RoomCodeLength)
	assert.Len(t, code, internal.RoomCodeLength)
	for _, c := range code {
		assert.Contains(t, roomCodeCharset, string(c))
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "AB2CDE", NormalizeRoomCode("  ab2cde "))
}

func TestWordPoolPick(t *testing.T) {
	wp := NewWordPool()

	word := wp.Pick(internal.DifficultyEasy)
	assert.Contains(t, defaultWords[internal.DifficultyEasy], word)

	// Unknown difficulty falls back to medium.
	word = wp.Pick(internal.WordDifficulty("impossible"))
	assert.Contains(t, defaultWords[internal.DifficultyMedium], word)
}

func TestWordPoolLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	contents := strings.Join([]string{
		"cloud,easy",
		"skeleton,medium",
		"metamorphosis,hard",
		"broken-record",
		"mystery,unknown",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	wp := NewWordPool()
	require.NoError(t, wp.LoadCSV(path))

	assert.Equal(t, "cloud", wp.Pick(internal.DifficultyEasy))
	assert.Equal(t, "skeleton", wp.Pick(internal.DifficultyMedium))
	assert.Equal(t, "metamorphosis", wp.Pick(internal.DifficultyHard))
}

func TestWordPoolLoadCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.csv")
	require.NoError(t, os.WriteFile(path, []byte("only-one-column\n"), 0o644))

	wp := NewWordPool()
	assert.Error(t, wp.LoadCSV(path))
}
