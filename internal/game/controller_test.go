package game

import (
	"context"
	"testing"
	"time"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestController(t *testing.T) (*Controller, *backend.Service) {
	t.Helper()
	svc := backend.NewService(backend.NewMemoryRows(), nil)
	t.Cleanup(svc.Close)

	ctrl := NewController(svc, utils.NewWordPool())
	ctrl.now = func() time.Time { return testNow }
	return ctrl, svc
}

// seedRoom creates a waiting room with four ready players, two per
// team, p1 holding the lease. Join order is p1, p2, p3, p4.
func seedRoom(t *testing.T, svc *backend.Service, code string, settings internal.RoomSettings) {
	t.Helper()
	ctx := context.Background()

	room := internal.Room{
		Code:      code,
		Status:    internal.StatusWaiting,
		Settings:  settings,
		CreatedAt: testNow,
	}
	RenewLease(&room, "p1", testNow)

	players := []internal.Player{
		{ID: "p1", Name: "Ada", Team: 1, IsHost: true},
		{ID: "p2", Name: "Ben", Team: 1},
		{ID: "p3", Name: "Cleo", Team: 2},
		{ID: "p4", Name: "Dev", Team: 2},
	}
	for i := range players {
		players[i].RoomCode = code
		players[i].IsReady = true
		players[i].IsConnected = true
		players[i].JoinedAt = testNow.Add(time.Duration(i) * time.Second)
	}

	require.NoError(t, svc.CreateRoom(ctx, room, players[0]))
	for _, p := range players[1:] {
		require.NoError(t, svc.AddPlayer(ctx, p))
	}
}

func getRoom(t *testing.T, svc *backend.Service, code string) internal.Room {
	t.Helper()
	room, err := svc.GetRoom(context.Background(), code)
	require.NoError(t, err)
	return room
}

func getPlayer(t *testing.T, svc *backend.Service, code, id string) internal.Player {
	t.Helper()
	p, err := svc.GetPlayer(context.Background(), code, id)
	require.NoError(t, err)
	return p
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "START1", internal.DefaultSettings())

		require.NoError(t, ctrl.StartGame(ctx, "START1", "p1"))

		room := getRoom(t, svc, "START1")
		assert.Equal(t, internal.StatusPlaying, room.Status)
		assert.Equal(t, 1, room.CurrentRound)
		assert.Equal(t, 1, room.DrawingTeam)
		assert.NotEmpty(t, room.CurrentWord)
		assert.Equal(t, testNow, room.RoundStart)

		// Earliest-joined team 1 member draws first.
		assert.True(t, getPlayer(t, svc, "START1", "p1").IsDrawing)
		assert.False(t, getPlayer(t, svc, "START1", "p2").IsDrawing)
	})

	t.Run("only the lease holder may start", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "START2", internal.DefaultSettings())

		err := ctrl.StartGame(ctx, "START2", "p3")
		assert.ErrorIs(t, err, internal.ErrNotLeaseHolder)
		assert.Equal(t, internal.StatusWaiting, getRoom(t, svc, "START2").Status)
	})

	t.Run("everyone must be ready", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "START3", internal.DefaultSettings())

		p4 := getPlayer(t, svc, "START3", "p4")
		p4.IsReady = false
		require.NoError(t, svc.SavePlayer(ctx, p4))

		err := ctrl.StartGame(ctx, "START3", "p1")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})

	t.Run("both teams must be populated", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "START4", internal.DefaultSettings())

		for _, id := range []string{"p3", "p4"} {
			p := getPlayer(t, svc, "START4", id)
			p.Team = 1
			require.NoError(t, svc.SavePlayer(ctx, p))
		}

		err := ctrl.StartGame(ctx, "START4", "p1")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})

	t.Run("cannot start twice", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "START5", internal.DefaultSettings())

		require.NoError(t, ctrl.StartGame(ctx, "START5", "p1"))
		err := ctrl.StartGame(ctx, "START5", "p1")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})
}

func TestHandleChat(t *testing.T) {
	ctx := context.Background()

	t.Run("correct guess scores and advances the round", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "CHAT01", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "CHAT01", "p1"))

		word := getRoom(t, svc, "CHAT01").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "CHAT01", "p3", word))

		assert.Equal(t, 1, getPlayer(t, svc, "CHAT01", "p3").Score)

		room := getRoom(t, svc, "CHAT01")
		assert.Equal(t, 2, room.CurrentRound)
		assert.Equal(t, 2, room.DrawingTeam)
		assert.NotEmpty(t, room.CurrentWord)

		// Pen moved to the first team 2 member.
		assert.False(t, getPlayer(t, svc, "CHAT01", "p1").IsDrawing)
		assert.True(t, getPlayer(t, svc, "CHAT01", "p3").IsDrawing)
	})

	t.Run("wrong guess is plain chat", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "CHAT02", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "CHAT02", "p1"))

		sub := svc.Subscribe("CHAT02")
		defer sub.Close()

		require.NoError(t, ctrl.HandleChat(ctx, "CHAT02", "p3", "definitely wrong"))

		select {
		case n := <-sub.C:
			require.Equal(t, backend.NoteChat, n.Kind)
			require.NotNil(t, n.Chat)
			assert.False(t, n.Chat.IsCorrectGuess)
			assert.Equal(t, "definitely wrong", n.Chat.Text)
		case <-time.After(time.Second):
			t.Fatal("no chat notification")
		}

		assert.Equal(t, 1, getRoom(t, svc, "CHAT02").CurrentRound)
		assert.Equal(t, 0, getPlayer(t, svc, "CHAT02", "p3").Score)
	})

	t.Run("drawing team saying the word does not score", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "CHAT03", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "CHAT03", "p1"))

		word := getRoom(t, svc, "CHAT03").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "CHAT03", "p2", word))

		assert.Equal(t, 1, getRoom(t, svc, "CHAT03").CurrentRound)
		assert.Equal(t, 0, getPlayer(t, svc, "CHAT03", "p2").Score)
	})

	t.Run("rotation returns to the second team member", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "CHAT04", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "CHAT04", "p1"))

		// Round 1 -> 2 (team 2 draws), round 2 -> 3 (team 1 again).
		word := getRoom(t, svc, "CHAT04").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "CHAT04", "p3", word))
		word = getRoom(t, svc, "CHAT04").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "CHAT04", "p1", word))

		room := getRoom(t, svc, "CHAT04")
		assert.Equal(t, 3, room.CurrentRound)
		assert.Equal(t, 1, room.DrawingTeam)
		assert.True(t, getPlayer(t, svc, "CHAT04", "p2").IsDrawing, "second team 1 member takes the pen")
	})

	t.Run("round cap ends the game", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		settings := internal.DefaultSettings()
		settings.MaxRounds = 1
		seedRoom(t, svc, "CHAT05", settings)
		require.NoError(t, ctrl.StartGame(ctx, "CHAT05", "p1"))

		word := getRoom(t, svc, "CHAT05").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "CHAT05", "p3", word))

		room := getRoom(t, svc, "CHAT05")
		assert.Equal(t, internal.StatusEnded, room.Status)
		assert.Empty(t, room.CurrentWord)
		assert.Equal(t, 1, getPlayer(t, svc, "CHAT05", "p3").Score, "scores survive the game end")
		assert.False(t, getPlayer(t, svc, "CHAT05", "p1").IsDrawing)
	})
}

func TestTagTeam(t *testing.T) {
	ctx := context.Background()

	t.Run("hands the pen to a teammate", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "TAG001", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "TAG001", "p1"))

		sub := svc.Subscribe("TAG001")
		defer sub.Close()

		require.NoError(t, ctrl.TagTeam(ctx, "TAG001", "p1", "p2"))

		assert.False(t, getPlayer(t, svc, "TAG001", "p1").IsDrawing)
		assert.True(t, getPlayer(t, svc, "TAG001", "p2").IsDrawing)

		// Round state untouched.
		room := getRoom(t, svc, "TAG001")
		assert.Equal(t, 1, room.CurrentRound)
		assert.NotEmpty(t, room.CurrentWord)

		// The incoming drawer gets the word, nobody else.
		deadline := time.After(time.Second)
		for {
			select {
			case n := <-sub.C:
				if n.Kind != backend.NoteWordAssigned {
					continue
				}
				assert.Equal(t, "p2", n.TargetID)
				assert.Equal(t, room.CurrentWord, n.Word)
				return
			case <-deadline:
				t.Fatal("no word_assigned notification")
			}
		}
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		settings := internal.DefaultSettings()
		settings.AllowTagTeam = false
		seedRoom(t, svc, "TAG002", settings)
		require.NoError(t, ctrl.StartGame(ctx, "TAG002", "p1"))

		err := ctrl.TagTeam(ctx, "TAG002", "p1", "p2")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})

	t.Run("rejected across teams", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "TAG003", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "TAG003", "p1"))

		err := ctrl.TagTeam(ctx, "TAG003", "p1", "p3")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})

	t.Run("only the drawer may tag", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "TAG004", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "TAG004", "p1"))

		err := ctrl.TagTeam(ctx, "TAG004", "p2", "p1")
		assert.ErrorIs(t, err, internal.ErrPreconditionFailed)
	})
}

func TestEndAndNewGame(t *testing.T) {
	ctx := context.Background()

	t.Run("lease holder ends early", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "END001", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "END001", "p1"))

		require.NoError(t, ctrl.EndGame(ctx, "END001", "p1"))

		room := getRoom(t, svc, "END001")
		assert.Equal(t, internal.StatusEnded, room.Status)
		assert.Empty(t, room.CurrentWord)
		assert.Zero(t, room.DrawingTeam)
	})

	t.Run("non-holder cannot end", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "END002", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "END002", "p1"))

		err := ctrl.EndGame(ctx, "END002", "p4")
		assert.ErrorIs(t, err, internal.ErrNotLeaseHolder)
	})

	t.Run("new game resets scores and readiness", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "NEW001", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "NEW001", "p1"))

		word := getRoom(t, svc, "NEW001").CurrentWord
		require.NoError(t, ctrl.HandleChat(ctx, "NEW001", "p3", word))
		require.NoError(t, ctrl.EndGame(ctx, "NEW001", "p1"))

		require.NoError(t, ctrl.NewGame(ctx, "NEW001", "p1"))

		room := getRoom(t, svc, "NEW001")
		assert.Equal(t, internal.StatusWaiting, room.Status)
		assert.Zero(t, room.CurrentRound)

		for _, id := range []string{"p1", "p2", "p3", "p4"} {
			p := getPlayer(t, svc, "NEW001", id)
			assert.Zero(t, p.Score, "%s score", id)
			assert.False(t, p.IsReady, "%s readiness", id)
		}
		assert.Equal(t, 1, getPlayer(t, svc, "NEW001", "p1").Team)
		assert.Equal(t, 2, getPlayer(t, svc, "NEW001", "p3").Team)
	})
}

func TestHandleLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("lease moves when the holder leaves", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "LEAVE1", internal.DefaultSettings())

		require.NoError(t, ctrl.HandleLeave(ctx, "LEAVE1", "p1"))

		room := getRoom(t, svc, "LEAVE1")
		assert.Equal(t, "p2", room.LeaseHolder, "earliest-joined connected player inherits")
	})

	t.Run("drawer leaving forces a handoff", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "LEAVE2", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "LEAVE2", "p1"))

		require.NoError(t, ctrl.HandleLeave(ctx, "LEAVE2", "p1"))

		room := getRoom(t, svc, "LEAVE2")
		assert.Equal(t, internal.StatusPlaying, room.Status)
		assert.True(t, getPlayer(t, svc, "LEAVE2", "p2").IsDrawing)
	})

	t.Run("hollowed-out team ends the game", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "LEAVE3", internal.DefaultSettings())
		require.NoError(t, ctrl.StartGame(ctx, "LEAVE3", "p1"))

		require.NoError(t, ctrl.HandleLeave(ctx, "LEAVE3", "p3"))
		require.NoError(t, ctrl.HandleLeave(ctx, "LEAVE3", "p4"))

		assert.Equal(t, internal.StatusEnded, getRoom(t, svc, "LEAVE3").Status)
	})

	t.Run("last player out deletes the room", func(t *testing.T) {
		ctrl, svc := newTestController(t)
		seedRoom(t, svc, "LEAVE4", internal.DefaultSettings())

		for _, id := range []string{"p1", "p2", "p3", "p4"} {
			require.NoError(t, ctrl.HandleLeave(ctx, "LEAVE4", id))
		}

		_, err := svc.GetRoom(ctx, "LEAVE4")
		assert.ErrorIs(t, err, internal.ErrRoomNotFound)
	})
}
