package game

import (
	"time"

	"github.com/sketchduel/sketchduel-backend/internal"
)

// LeaseDuration bounds how long host authority survives without the
// holder showing signs of life.
const LeaseDuration = 30 * time.Second

// RenewLease extends the holder's exclusive right to perform host-only
// actions. Called whenever the holder acts.
func RenewLease(room *internal.Room, holderID string, now time.Time) {
	room.LeaseHolder = holderID
	room.LeaseExpiry = now.Add(LeaseDuration)
}

// EnsureLease checks the lease and reassigns it when the holder is
// gone or the lease has lapsed: the earliest-joined connected player
// becomes the new holder. is_host stays on the creator; authority
// follows the lease. Returns true when the room row changed.
func EnsureLease(room *internal.Room, players []internal.Player, now time.Time) bool {
	holderPresent := false
	for _, p := range players {
		if p.ID == room.LeaseHolder && p.IsConnected {
			holderPresent = true
			break
		}
	}
	if holderPresent && now.Before(room.LeaseExpiry) {
		return false
	}

	for _, p := range players { // join order
		if p.IsConnected {
			RenewLease(room, p.ID, now)
			return true
		}
	}

	if room.LeaseHolder != "" {
		room.LeaseHolder = ""
		room.LeaseExpiry = time.Time{}
		return true
	}
	return false
}
