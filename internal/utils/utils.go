package utils

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ID GENERATION
// =============================================================================

// Ambiguous characters (0/O, 1/I/L) are left out so codes survive
// being read aloud at a party.
const roomCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateRoomCode returns a short human-shareable code. Uniqueness is
// the row store's job; callers retry on a code-taken error.
func GenerateRoomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = roomCodeCharset[rand.Intn(len(roomCodeCharset))]
	}
	return string(b)
}

// NormalizeRoomCode maps user input onto the stored form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateID returns a stable unique identifier for players and
// messages.
func GenerateID() string {
	return uuid.NewString()
}
