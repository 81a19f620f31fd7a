// Package game holds the authoritative round state machine: a room
// moves waiting -> playing -> ended, with playing -> playing round
// rotation between the two teams. The controller is the only writer of
// round-ending transitions; clients observe the resulting rows.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/utils"
)

type Controller struct {
	svc   *backend.Service
	words *utils.WordPool

	timers *roundTimers

	// Per-room serialization of read-modify-write cycles. Row writes
	// are last-write-wins; this keeps one room's transitions from
	// interleaving with themselves.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// test seam
	now func() time.Time
}

func NewController(svc *backend.Service, words *utils.WordPool) *Controller {
	return &Controller{
		svc:    svc,
		words:  words,
		timers: newRoundTimers(),
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

func (c *Controller) roomLock(code string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock := c.locks[code]
	if lock == nil {
		lock = &sync.Mutex{}
		c.locks[code] = lock
	}
	return lock
}

func (c *Controller) releaseRoom(code string) {
	c.timers.stop(code)
	c.mu.Lock()
	delete(c.locks, code)
	c.mu.Unlock()
}

// =============================================================================
// GAME LIFECYCLE
// =============================================================================

// StartGame moves the room from waiting to playing. Lease-holder only.
// Gates: at least MinPlayersToStart players, everyone ready, both
// teams non-empty. Team 1 always draws the first round.
func (c *Controller) StartGame(ctx context.Context, code, playerID string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, players, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if err := c.requireLease(ctx, &room, players, playerID); err != nil {
		return err
	}

	if room.Status != internal.StatusWaiting {
		return fmt.Errorf("%w: room %s is %s, not waiting", internal.ErrPreconditionFailed, code, room.Status)
	}
	if len(players) < internal.MinPlayersToStart {
		return fmt.Errorf("%w: need at least %d players, have %d",
			internal.ErrPreconditionFailed, internal.MinPlayersToStart, len(players))
	}
	for _, p := range players {
		if !p.IsReady {
			return fmt.Errorf("%w: %s is not ready", internal.ErrPreconditionFailed, p.Name)
		}
	}
	if len(internal.TeamMembers(players, 1)) == 0 || len(internal.TeamMembers(players, 2)) == 0 {
		return fmt.Errorf("%w: both teams need at least one member", internal.ErrPreconditionFailed)
	}

	room.Status = internal.StatusPlaying
	room.CurrentRound = 1
	room.DrawingTeam = 1

	log.Printf("[StartGame] room=%s starting, %d players", code, len(players))
	return c.beginRound(ctx, room, players)
}

// beginRound stamps the round state (drawer, word, start time), saves
// every changed row, delivers the word, and arms the deadline. Caller
// holds the room lock and has already set CurrentRound/DrawingTeam.
func (c *Controller) beginRound(ctx context.Context, room internal.Room, players []internal.Player) error {
	drawer := pickDrawer(players, room.DrawingTeam, room.CurrentRound)
	if drawer == nil {
		return fmt.Errorf("%w: drawing team %d has no members", internal.ErrPreconditionFailed, room.DrawingTeam)
	}

	room.CurrentWord = c.words.Pick(room.Settings.Difficulty)
	room.RoundStart = c.now()

	for _, p := range players {
		wantDrawing := p.ID == drawer.ID
		if p.IsDrawing != wantDrawing {
			p.IsDrawing = wantDrawing
			if err := c.svc.SavePlayer(ctx, p); err != nil {
				return err
			}
		}
	}
	if err := c.svc.SaveRoom(ctx, room); err != nil {
		return err
	}

	c.svc.AssignWord(room.Code, drawer.ID, room.CurrentWord)
	c.timers.start(room.Code, room.CurrentRound, room.RoundDuration(), func(round int) {
		c.handleRoundExpiry(room.Code, round)
	})

	log.Printf("[beginRound] room=%s round=%d team=%d drawer=%s (%s)",
		room.Code, room.CurrentRound, room.DrawingTeam, drawer.ID, drawer.Name)
	return nil
}

// pickDrawer rotates drawing duty round-robin within the drawing team,
// by join order. Round r is the team's ceil(r/2)-th turn, so the
// rotation is a pure function of the round number and the roster.
func pickDrawer(players []internal.Player, team, round int) *internal.Player {
	members := internal.TeamMembers(players, team)
	if len(members) == 0 {
		return nil
	}
	turn := (round + 1) / 2
	drawer := members[(turn-1)%len(members)]
	return &drawer
}

// handleRoundExpiry is the timer-driven round end. The round number
// guards against a stale timer firing after a correct guess already
// advanced the round.
func (c *Controller) handleRoundExpiry(code string, round int) {
	ctx := context.Background()

	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, players, err := c.load(ctx, code)
	if err != nil {
		log.Printf("[handleRoundExpiry] room=%s: %v", code, err)
		return
	}
	if room.Status != internal.StatusPlaying || room.CurrentRound != round {
		log.Printf("[handleRoundExpiry] room=%s: stale expiry for round %d (now %s round %d)",
			code, round, room.Status, room.CurrentRound)
		return
	}

	if err := c.advanceRound(ctx, room, players); err != nil {
		log.Printf("[handleRoundExpiry] room=%s: %v", code, err)
	}
}

// advanceRound is the playing -> playing transition: round number up
// by one, drawing team flipped, fresh drawer and word, fresh start
// time. Scores carry over. When the round cap is exhausted the room
// ends instead. Caller holds the room lock.
func (c *Controller) advanceRound(ctx context.Context, room internal.Room, players []internal.Player) error {
	limit := room.Settings.MaxRounds
	if limit > 0 && room.CurrentRound >= limit {
		log.Printf("[advanceRound] room=%s: all %d rounds played, ending", room.Code, limit)
		return c.endGame(ctx, room, players)
	}

	room.CurrentRound++
	room.DrawingTeam = 3 - room.DrawingTeam
	return c.beginRound(ctx, room, players)
}

// endGame is the terminal transition. Caller holds the room lock.
func (c *Controller) endGame(ctx context.Context, room internal.Room, players []internal.Player) error {
	c.timers.stop(room.Code)

	room.Status = internal.StatusEnded
	room.CurrentWord = ""
	room.DrawingTeam = 0
	room.RoundStart = time.Time{}

	for _, p := range players {
		if p.IsDrawing {
			p.IsDrawing = false
			if err := c.svc.SavePlayer(ctx, p); err != nil {
				return err
			}
		}
	}

	log.Printf("[endGame] room=%s ended after round %d", room.Code, room.CurrentRound)
	return c.svc.SaveRoom(ctx, room)
}

// EndGame is the lease holder ending the game early.
func (c *Controller) EndGame(ctx context.Context, code, playerID string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, players, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if err := c.requireLease(ctx, &room, players, playerID); err != nil {
		return err
	}
	if room.Status != internal.StatusPlaying {
		return fmt.Errorf("%w: room %s is not playing", internal.ErrPreconditionFailed, code)
	}
	return c.endGame(ctx, room, players)
}

// NewGame resets an ended room back to the lobby: scores zeroed,
// everyone unready, round counter cleared. The explicit new-game is
// the only thing that ever resets scores.
func (c *Controller) NewGame(ctx context.Context, code, playerID string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, players, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if err := c.requireLease(ctx, &room, players, playerID); err != nil {
		return err
	}
	if room.Status == internal.StatusWaiting {
		return fmt.Errorf("%w: room %s is already in the lobby", internal.ErrPreconditionFailed, code)
	}

	c.timers.stop(code)

	room.Status = internal.StatusWaiting
	room.CurrentRound = 0
	room.CurrentWord = ""
	room.DrawingTeam = 0
	room.RoundStart = time.Time{}

	for _, p := range players {
		p.Score = 0
		p.IsReady = false
		p.IsDrawing = false
		if err := c.svc.SavePlayer(ctx, p); err != nil {
			return err
		}
	}

	log.Printf("[NewGame] room=%s back to lobby", code)
	return c.svc.SaveRoom(ctx, room)
}

// =============================================================================
// CHAT & GUESSING
// =============================================================================

// HandleChat relays a chat message, running it through guess matching
// first. A correct guess from the guessing team marks the message,
// scores one point for the guesser, and ends the round immediately.
// Matching is serialized under the room lock, so exactly one message
// can be the winning guess.
func (c *Controller) HandleChat(ctx context.Context, code, playerID, text string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, players, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	player, err := c.svc.GetPlayer(ctx, code, playerID)
	if err != nil {
		return err
	}

	msg := internal.ChatMessage{
		ID:         utils.GenerateID(),
		PlayerID:   player.ID,
		PlayerName: player.Name,
		Text:       text,
		SentAt:     c.now().UnixMilli(),
	}

	guessingTeam := room.Status == internal.StatusPlaying &&
		player.Team != 0 && player.Team != room.DrawingTeam
	if guessingTeam && MatchesWord(text, room.CurrentWord) {
		msg.IsCorrectGuess = true
		player.Score++ // team aggregate is the sum of its members
		if err := c.svc.SavePlayer(ctx, player); err != nil {
			return err
		}
		// Refresh the roster copy so the next round's writes carry the
		// new score.
		for i := range players {
			if players[i].ID == player.ID {
				players[i] = player
			}
		}
		if err := c.svc.BroadcastChat(ctx, code, msg); err != nil {
			return err
		}

		log.Printf("[HandleChat] room=%s: %s guessed the word, round %d ends early",
			code, player.Name, room.CurrentRound)
		return c.advanceRound(ctx, room, players)
	}

	return c.svc.BroadcastChat(ctx, code, msg)
}

// =============================================================================
// TAG TEAM & DEPARTURES
// =============================================================================

// TagTeam transfers drawing duty to a teammate mid-round. The word and
// the round are untouched; only the two is_drawing flags change. The
// incoming drawer gets the word delivered.
func (c *Controller) TagTeam(ctx context.Context, code, fromID, toID string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	room, _, err := c.load(ctx, code)
	if err != nil {
		return err
	}
	if !room.Settings.AllowTagTeam {
		return fmt.Errorf("%w: tag team is disabled for room %s", internal.ErrPreconditionFailed, code)
	}
	if room.Status != internal.StatusPlaying {
		return fmt.Errorf("%w: room %s is not playing", internal.ErrPreconditionFailed, code)
	}

	from, err := c.svc.GetPlayer(ctx, code, fromID)
	if err != nil {
		return err
	}
	to, err := c.svc.GetPlayer(ctx, code, toID)
	if err != nil {
		return err
	}
	if !from.IsDrawing {
		return fmt.Errorf("%w: %s is not drawing", internal.ErrPreconditionFailed, from.Name)
	}
	if to.Team != from.Team {
		return fmt.Errorf("%w: %s is not a teammate", internal.ErrPreconditionFailed, to.Name)
	}
	if !to.IsConnected {
		return fmt.Errorf("%w: %s is not connected", internal.ErrPreconditionFailed, to.Name)
	}

	from.IsDrawing = false
	to.IsDrawing = true
	if err := c.svc.SavePlayer(ctx, from); err != nil {
		return err
	}
	if err := c.svc.SavePlayer(ctx, to); err != nil {
		return err
	}

	c.svc.AssignWord(code, to.ID, room.CurrentWord)
	log.Printf("[TagTeam] room=%s: %s handed the pen to %s", code, from.Name, to.Name)
	return nil
}

// HandleLeave removes the player row and repairs whatever the
// departure broke: lease reassignment, a mid-round drawer handoff, or
// ending a game a hollowed-out team can no longer play. The last
// player out tears the room down.
func (c *Controller) HandleLeave(ctx context.Context, code, playerID string) error {
	lock := c.roomLock(code)
	lock.Lock()
	defer lock.Unlock()

	departing, err := c.svc.GetPlayer(ctx, code, playerID)
	if err != nil {
		return err
	}
	if err := c.svc.RemovePlayer(ctx, code, playerID); err != nil {
		return err
	}

	room, err := c.svc.GetRoom(ctx, code)
	if err != nil {
		// Room went with the last player.
		if errors.Is(err, internal.ErrRoomNotFound) {
			c.releaseRoom(code)
			return nil
		}
		return err
	}
	players, err := c.svc.ListPlayers(ctx, code)
	if err != nil {
		return err
	}

	if room.LeaseHolder == playerID {
		if EnsureLease(&room, players, c.now()) {
			if err := c.svc.SaveRoom(ctx, room); err != nil {
				return err
			}
		}
	}

	if room.Status != internal.StatusPlaying {
		return nil
	}

	if len(players) < internal.MinPlayersToStart ||
		len(internal.TeamMembers(players, 1)) == 0 ||
		len(internal.TeamMembers(players, 2)) == 0 {
		log.Printf("[HandleLeave] room=%s: not enough players to continue, ending game", code)
		return c.endGame(ctx, room, players)
	}

	if departing.IsDrawing {
		// Forced handoff within the same team, word unchanged.
		members := internal.TeamMembers(players, room.DrawingTeam)
		next := members[0]
		next.IsDrawing = true
		if err := c.svc.SavePlayer(ctx, next); err != nil {
			return err
		}
		c.svc.AssignWord(code, next.ID, room.CurrentWord)
		log.Printf("[HandleLeave] room=%s: drawer left, %s takes over", code, next.Name)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) load(ctx context.Context, code string) (internal.Room, []internal.Player, error) {
	room, err := c.svc.GetRoom(ctx, code)
	if err != nil {
		return internal.Room{}, nil, err
	}
	players, err := c.svc.ListPlayers(ctx, code)
	if err != nil {
		return internal.Room{}, nil, err
	}
	return room, players, nil
}

// requireLease checks (and if lapsed, reassigns) the host lease, then
// verifies the acting player holds it. Holding the lease and acting
// renews it.
func (c *Controller) requireLease(ctx context.Context, room *internal.Room, players []internal.Player, playerID string) error {
	now := c.now()
	changed := EnsureLease(room, players, now)
	if room.LeaseHolder != playerID {
		if changed {
			if err := c.svc.SaveRoom(ctx, *room); err != nil {
				return err
			}
		}
		return fmt.Errorf("%w: %s", internal.ErrNotLeaseHolder, playerID)
	}
	RenewLease(room, playerID, now)
	return nil
}
