package game

import (
	"context"
	"log"
	"sync"
	"time"
)

// =============================================================================
// ROUND TIMERS
// =============================================================================

// Remaining computes the countdown every client converges on: the
// shared absolute round start plus the fixed duration, clamped to zero.
// Clients never run a free-running counter of their own.
func Remaining(roundStart time.Time, timerSeconds int, now time.Time) time.Duration {
	if roundStart.IsZero() {
		return 0
	}
	remaining := time.Duration(timerSeconds)*time.Second - now.Sub(roundStart)
	return max(remaining, 0)
}

// RemainingSeconds is Remaining rounded down to whole display seconds.
func RemainingSeconds(roundStart time.Time, timerSeconds int, now time.Time) int {
	return int(Remaining(roundStart, timerSeconds, now) / time.Second)
}

// roundTimers owns the authoritative per-room round deadline. Exactly
// one timer per room; starting a new one cancels the old, and every
// exit path (round end, game end, room teardown) stops it.
type roundTimers struct {
	mu     sync.Mutex
	active map[string]*roundTimer
}

type roundTimer struct {
	round  int
	cancel context.CancelFunc
}

func newRoundTimers() *roundTimers {
	return &roundTimers{active: make(map[string]*roundTimer)}
}

// start arms the deadline for one round. onExpire runs on natural
// expiry only, never on cancellation, and receives the round number it
// was armed for so a stale expiry can be recognized.
func (rt *roundTimers) start(code string, round int, d time.Duration, onExpire func(round int)) {
	ctx, cancel := context.WithTimeout(context.Background(), d)

	rt.mu.Lock()
	if prev := rt.active[code]; prev != nil {
		prev.cancel()
	}
	rt.active[code] = &roundTimer{round: round, cancel: cancel}
	rt.mu.Unlock()

	log.Printf("[roundTimers] room=%s round=%d armed for %v", code, round, d)

	go func() {
		<-ctx.Done()
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("[roundTimers] room=%s round=%d expired", code, round)
			onExpire(round)
			return
		}
		log.Printf("[roundTimers] room=%s round=%d cancelled before expiry", code, round)
	}()
}

func (rt *roundTimers) stop(code string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if t := rt.active[code]; t != nil {
		t.cancel()
		delete(rt.active, code)
	}
}
