package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("mid round", func(t *testing.T) {
		got := Remaining(start, 60, start.Add(45*time.Second))
		assert.Equal(t, 15*time.Second, got)
	})

	t.Run("clamps at zero after expiry", func(t *testing.T) {
		got := Remaining(start, 60, start.Add(70*time.Second))
		assert.Equal(t, time.Duration(0), got)
	})

	t.Run("full duration at start", func(t *testing.T) {
		got := Remaining(start, 90, start)
		assert.Equal(t, 90*time.Second, got)
	})

	t.Run("zero start means no round", func(t *testing.T) {
		got := Remaining(time.Time{}, 60, start)
		assert.Equal(t, time.Duration(0), got)
	})
}

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := RemainingSeconds(start, 60, start.Add(44500*time.Millisecond))
	assert.Equal(t, 15, got)
}

func TestRoundTimers(t *testing.T) {
	t.Run("expiry fires with the armed round", func(t *testing.T) {
		rt := newRoundTimers()
		fired := make(chan int, 1)

		rt.start("ROOM01", 3, 20*time.Millisecond, func(round int) {
			fired <- round
		})

		select {
		case round := <-fired:
			assert.Equal(t, 3, round)
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}
	})

	t.Run("stop prevents expiry", func(t *testing.T) {
		rt := newRoundTimers()
		fired := make(chan int, 1)

		rt.start("ROOM02", 1, 30*time.Millisecond, func(round int) {
			fired <- round
		})
		rt.stop("ROOM02")

		select {
		case <-fired:
			t.Fatal("cancelled timer fired")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("rearming cancels the previous round", func(t *testing.T) {
		rt := newRoundTimers()
		fired := make(chan int, 2)

		rt.start("ROOM03", 1, 30*time.Millisecond, func(round int) {
			fired <- round
		})
		rt.start("ROOM03", 2, 30*time.Millisecond, func(round int) {
			fired <- round
		})

		select {
		case round := <-fired:
			assert.Equal(t, 2, round)
		case <-time.After(time.Second):
			t.Fatal("timer never fired")
		}

		select {
		case round := <-fired:
			t.Fatalf("stale timer for round %d fired", round)
		case <-time.After(100 * time.Millisecond):
		}
	})
}
