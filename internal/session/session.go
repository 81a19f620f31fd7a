// Package session is the command surface one connected client drives:
// create/join/leave a room, ready up, pick a team, start the game,
// send chat and drawing events. Each action validates its local
// preconditions, issues a single backend write, and surfaces failures
// through the room state store's error slot. Callers display the slot,
// they don't unwind.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/game"
	"github.com/sketchduel/sketchduel-backend/internal/relay"
	"github.com/sketchduel/sketchduel-backend/internal/store"
	"github.com/sketchduel/sketchduel-backend/internal/utils"
)

// createRetries bounds room-code collision retries. Six characters
// over a 31-symbol alphabet makes even one collision unlikely.
const createRetries = 5

type Session struct {
	svc  *backend.Service // nil when multiplayer is not configured
	ctrl *game.Controller

	Store *store.Store

	code     string
	playerID string
	sub      *backend.Subscription
}

// New builds a session. svc and ctrl may be nil when no backend is
// configured; every action then fails with ErrConfigurationMissing,
// which the caller turns into a "multiplayer unavailable" notice.
func New(svc *backend.Service, ctrl *game.Controller) *Session {
	return &Session{
		svc:   svc,
		ctrl:  ctrl,
		Store: store.New(""),
	}
}

func (s *Session) RoomCode() string { return s.code }
func (s *Session) PlayerID() string { return s.playerID }

// fail records the error in the store's latest-error slot and passes
// it through for callers that want it.
func (s *Session) fail(err error) error {
	s.Store.SetErr(err)
	return err
}

func (s *Session) configured() error {
	if s.svc == nil || s.ctrl == nil {
		return fmt.Errorf("%w: multiplayer runs in local-only mode", internal.ErrConfigurationMissing)
	}
	return nil
}

func (s *Session) inRoom() error {
	if s.code == "" || s.playerID == "" {
		return fmt.Errorf("%w: not in a room", internal.ErrPreconditionFailed)
	}
	return nil
}

// =============================================================================
// ROOM MEMBERSHIP
// =============================================================================

// CreateRoom allocates a fresh room with a unique code and seeds the
// creator as host and initial lease holder.
func (s *Session) CreateRoom(ctx context.Context, name string, settings internal.RoomSettings) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return s.fail(fmt.Errorf("%w: display name must not be empty", internal.ErrPreconditionFailed))
	}
	if settings.TimerSeconds <= 0 {
		settings.TimerSeconds = internal.DefaultTimerSeconds
	}

	now := time.Now()
	playerID := utils.GenerateID()

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		code := utils.GenerateRoomCode(internal.RoomCodeLength)
		room := internal.Room{
			Code:      code,
			Status:    internal.StatusWaiting,
			Settings:  settings,
			CreatedAt: now,
		}
		game.RenewLease(&room, playerID, now)

		host := internal.Player{
			ID:          playerID,
			RoomCode:    code,
			Name:        name,
			IsHost:      true,
			IsConnected: true,
			JoinedAt:    now,
		}

		err := s.svc.CreateRoom(ctx, room, host)
		if err == nil {
			return s.attach(ctx, code, playerID)
		}
		lastErr = err
		if !errors.Is(err, internal.ErrRoomCodeTaken) {
			break
		}
		log.Printf("[CreateRoom] code %s collided, retrying", code)
	}
	return s.fail(lastErr)
}

// JoinRoom adds this client to an existing waiting room. Distinct
// failures: unknown code, a room that already started, a full room.
func (s *Session) JoinRoom(ctx context.Context, code, name string) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return s.fail(fmt.Errorf("%w: display name must not be empty", internal.ErrPreconditionFailed))
	}
	code = utils.NormalizeRoomCode(code)

	room, err := s.svc.GetRoom(ctx, code)
	if err != nil {
		return s.fail(err)
	}
	if room.Status != internal.StatusWaiting {
		return s.fail(fmt.Errorf("%w: room %s already started", internal.ErrRoomNotFound, code))
	}
	players, err := s.svc.ListPlayers(ctx, code)
	if err != nil {
		return s.fail(err)
	}
	if len(players) >= internal.MaxPlayersPerRoom {
		return s.fail(fmt.Errorf("%w: %s", internal.ErrRoomFull, code))
	}

	player := internal.Player{
		ID:          utils.GenerateID(),
		RoomCode:    code,
		Name:        name,
		IsConnected: true,
		JoinedAt:    time.Now(),
	}
	if err := s.svc.AddPlayer(ctx, player); err != nil {
		return s.fail(err)
	}
	return s.attach(ctx, code, player.ID)
}

// attach subscribes to the room channel, seeds the store with the
// catch-up snapshot, and starts the ingest goroutine.
func (s *Session) attach(ctx context.Context, code, playerID string) error {
	s.code = code
	s.playerID = playerID
	s.Store = store.New(playerID)

	s.sub = s.svc.Subscribe(code)
	snap, err := s.svc.Snapshot(ctx, code)
	if err != nil {
		s.sub.Close()
		s.sub = nil
		return s.fail(err)
	}
	s.Store.Seed(snap)
	go s.Store.Run(s.sub)
	return nil
}

// LeaveRoom removes this player and deterministically stops listening:
// the subscription closes on every exit path so nothing acts on a
// stale room after departure.
func (s *Session) LeaveRoom(ctx context.Context) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}

	code, playerID := s.code, s.playerID
	s.code, s.playerID = "", ""
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}

	if err := s.ctrl.HandleLeave(ctx, code, playerID); err != nil {
		return s.fail(err)
	}
	return nil
}

// =============================================================================
// LOBBY ACTIONS
// =============================================================================

// requireLobby gates actions that only make sense pre-game. Checked
// against the authoritative room row, not the local snapshot: once the
// game is playing, a drawer hopping to the guessing team would carry
// the secret word with them.
func (s *Session) requireLobby(ctx context.Context) error {
	room, err := s.svc.GetRoom(ctx, s.code)
	if err != nil {
		return err
	}
	if room.Status != internal.StatusWaiting {
		return fmt.Errorf("%w: room %s is %s, lobby actions need waiting", internal.ErrPreconditionFailed, s.code, room.Status)
	}
	return nil
}

// ToggleReady flips this player's ready flag, mirrored locally pending
// confirmation. Lobby only.
func (s *Session) ToggleReady(ctx context.Context) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}
	if err := s.requireLobby(ctx); err != nil {
		return s.fail(err)
	}
	player, ok := s.Store.CurrentPlayer()
	if !ok {
		return s.fail(fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, s.playerID))
	}

	player.IsReady = !player.IsReady
	s.Store.ApplyPendingPlayer(player)
	if err := s.svc.SavePlayer(ctx, player); err != nil {
		return s.fail(err)
	}
	return nil
}

// PickTeam assigns this player to team 1 or 2. Lobby only.
func (s *Session) PickTeam(ctx context.Context, team int) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}
	if team != 1 && team != 2 {
		return s.fail(fmt.Errorf("%w: team must be 1 or 2, got %d", internal.ErrPreconditionFailed, team))
	}
	if err := s.requireLobby(ctx); err != nil {
		return s.fail(err)
	}
	player, ok := s.Store.CurrentPlayer()
	if !ok {
		return s.fail(fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, s.playerID))
	}

	player.Team = team
	s.Store.ApplyPendingPlayer(player)
	if err := s.svc.SavePlayer(ctx, player); err != nil {
		return s.fail(err)
	}
	return nil
}

// =============================================================================
// GAME ACTIONS
// =============================================================================

// StartGame checks the start gates locally for a fast failure, then
// hands off to the authoritative controller which re-checks under its
// lock.
func (s *Session) StartGame(ctx context.Context) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}

	players := s.Store.Players()
	if len(players) < internal.MinPlayersToStart {
		return s.fail(fmt.Errorf("%w: need at least %d players, have %d",
			internal.ErrPreconditionFailed, internal.MinPlayersToStart, len(players)))
	}
	if len(internal.TeamMembers(players, 1)) == 0 || len(internal.TeamMembers(players, 2)) == 0 {
		return s.fail(fmt.Errorf("%w: both teams need at least one member", internal.ErrPreconditionFailed))
	}

	if err := s.ctrl.StartGame(ctx, s.code, s.playerID); err != nil {
		return s.fail(err)
	}
	return nil
}

// SendChat submits a chat message; guess detection happens on the
// authoritative side, never in the sender.
func (s *Session) SendChat(ctx context.Context, text string) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}
	if strings.TrimSpace(text) == "" {
		return s.fail(fmt.Errorf("%w: empty message", internal.ErrPreconditionFailed))
	}

	if err := s.ctrl.HandleChat(ctx, s.code, s.playerID, text); err != nil {
		return s.fail(err)
	}
	return nil
}

// SendDrawing relays one stroke event. Only the current drawer's
// events are accepted; the relay stamps the sender id.
func (s *Session) SendDrawing(ctx context.Context, ev relay.StrokeEvent) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}
	player, ok := s.Store.CurrentPlayer()
	if !ok || !player.IsDrawing {
		return s.fail(fmt.Errorf("%w: only the drawer may draw", internal.ErrPreconditionFailed))
	}

	if err := s.svc.BroadcastDrawing(ctx, s.code, s.playerID, ev); err != nil {
		return s.fail(err)
	}
	return nil
}

// TagTeam hands drawing duty to a teammate mid-round.
func (s *Session) TagTeam(ctx context.Context, toPlayerID string) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}

	if err := s.ctrl.TagTeam(ctx, s.code, s.playerID, toPlayerID); err != nil {
		return s.fail(err)
	}
	return nil
}

// EndGame ends the game early. Lease holder only.
func (s *Session) EndGame(ctx context.Context) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}

	if err := s.ctrl.EndGame(ctx, s.code, s.playerID); err != nil {
		return s.fail(err)
	}
	return nil
}

// NewGame resets an ended room to the lobby with zeroed scores. Lease
// holder only.
func (s *Session) NewGame(ctx context.Context) error {
	if err := s.configured(); err != nil {
		return s.fail(err)
	}
	if err := s.inRoom(); err != nil {
		return s.fail(err)
	}

	if err := s.ctrl.NewGame(ctx, s.code, s.playerID); err != nil {
		return s.fail(err)
	}
	return nil
}
