// Package store keeps one client's most recent view of a room: the
// confirmed snapshot fed by the backend's notification channel, plus a
// thin optimistic overlay for writes still in flight. Nothing here is
// authoritative; every notification replaces the affected row
// wholesale, last write wins.
package store

import (
	"cmp"
	"log"
	"slices"
	"sync"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/backend"
	"github.com/sketchduel/sketchduel-backend/internal/relay"
)

type Store struct {
	mu sync.RWMutex

	selfID string

	room    *internal.Room
	players []internal.Player // join order
	word    string            // only set when a word_assigned targets selfID
	chats   []internal.ChatMessage
	board   *relay.Board

	// Pending overlay: optimistic local copies shown until the
	// confirming notification arrives, then discarded.
	pendingRoom    *internal.Room
	pendingPlayers map[string]internal.Player

	connected bool
	lastErr   error
	gone      bool // room was deleted out from under us
}

func New(selfID string) *Store {
	return &Store{
		selfID:         selfID,
		board:          relay.NewBoard(),
		pendingPlayers: make(map[string]internal.Player),
	}
}

// =============================================================================
// INGEST
// =============================================================================

// Seed installs the catch-up snapshot a fresh subscriber receives.
func (s *Store) Seed(snap backend.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := snap.Room
	s.room = &room
	s.players = slices.Clone(snap.Players)
	s.sortPlayersLocked()

	s.board = relay.NewBoard()
	for _, stroke := range snap.Strokes {
		replayStroke(s.board, stroke)
	}
}

// replayStroke feeds a completed stroke back through the codec so the
// board ends up identical to one that saw the original event stream.
func replayStroke(board *relay.Board, stroke relay.Stroke) {
	if len(stroke.Points) == 0 {
		return
	}
	first := stroke.Points[0]
	ev := relay.Start(first.X, first.Y, stroke.Color, stroke.BrushSize)
	ev.PlayerID = stroke.PlayerID
	board.Apply(ev)
	for _, pt := range stroke.Points[1:] {
		ev := relay.Move(pt.X, pt.Y, stroke.Color, stroke.BrushSize)
		ev.PlayerID = stroke.PlayerID
		board.Apply(ev)
	}
	end := relay.End(stroke.Color, stroke.BrushSize)
	end.PlayerID = stroke.PlayerID
	board.Apply(end)
}

// Ingest folds one notification into the snapshot. Row notifications
// replace the row and clear any pending overlay for it; there is no
// field-level merging.
func (s *Store) Ingest(n backend.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch n.Kind {
	case backend.NoteRoomUpdated:
		if n.Room != nil {
			room := *n.Room
			s.room = &room
			s.pendingRoom = nil
		}

	case backend.NoteRoomDeleted:
		s.room = nil
		s.players = nil
		s.pendingRoom = nil
		clear(s.pendingPlayers)
		s.gone = true

	case backend.NotePlayerJoined, backend.NotePlayerUpdated:
		if n.Player == nil {
			return
		}
		p := *n.Player
		idx := slices.IndexFunc(s.players, func(q internal.Player) bool { return q.ID == p.ID })
		if idx >= 0 {
			s.players[idx] = p
		} else {
			s.players = append(s.players, p)
			s.sortPlayersLocked()
		}
		delete(s.pendingPlayers, p.ID)

	case backend.NotePlayerLeft:
		s.players = slices.DeleteFunc(s.players, func(q internal.Player) bool {
			return q.ID == n.PlayerID
		})
		delete(s.pendingPlayers, n.PlayerID)

	case backend.NoteWordAssigned:
		// Targeted: only the named drawer keeps the word.
		if n.TargetID == s.selfID {
			s.word = n.Word
		} else {
			s.word = ""
		}

	case backend.NoteDrawing:
		if n.Drawing != nil {
			s.board.Apply(*n.Drawing)
		}

	case backend.NoteChat:
		if n.Chat != nil {
			s.chats = append(s.chats, *n.Chat)
		}

	default:
		log.Printf("[Ingest] unknown notification kind %q", n.Kind)
	}
}

// Run drains a subscription into the store until its channel closes,
// then marks the store disconnected. Meant to be one goroutine per
// session; closing the subscription is the single cancellation path.
func (s *Store) Run(sub *backend.Subscription) {
	s.SetConnected(true)
	for n := range sub.C {
		s.Ingest(n)
	}
	s.SetConnected(false)
}

func (s *Store) sortPlayersLocked() {
	slices.SortStableFunc(s.players, func(a, b internal.Player) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// =============================================================================
// PENDING OVERLAY
// =============================================================================

// ApplyPendingPlayer records an optimistic local copy of a player row,
// shown until any notification for that player confirms or supersedes
// it.
func (s *Store) ApplyPendingPlayer(p internal.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPlayers[p.ID] = p
}

// ApplyPendingRoom records an optimistic local copy of the room row.
func (s *Store) ApplyPendingRoom(room internal.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRoom = &room
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// Room returns the current room view (pending overlay first), and
// whether one exists.
func (s *Store) Room() (internal.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pendingRoom != nil {
		return *s.pendingRoom, true
	}
	if s.room == nil {
		return internal.Room{}, false
	}
	return *s.room, true
}

// Players returns the player list in join order, with pending overlays
// applied.
func (s *Store) Players() []internal.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]internal.Player, len(s.players))
	for i, p := range s.players {
		if pending, ok := s.pendingPlayers[p.ID]; ok {
			out[i] = pending
		} else {
			out[i] = p
		}
	}
	return out
}

// CurrentPlayer returns the player row matching the local session.
func (s *Store) CurrentPlayer() (internal.Player, bool) {
	for _, p := range s.Players() {
		if p.ID == s.selfID {
			return p, true
		}
	}
	return internal.Player{}, false
}

// Word returns the secret word when this client is the drawer, else "".
func (s *Store) Word() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.word
}

func (s *Store) Chats() []internal.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chats)
}

// Strokes returns the reconstructed drawing so far.
func (s *Store) Strokes() []relay.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board.Strokes()
}

// RoomGone reports whether the room was deleted while we watched.
func (s *Store) RoomGone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gone
}

// =============================================================================
// CONNECTIVITY & ERRORS
// =============================================================================

func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetErr records the most recent operational error for display. Errors
// never roll local state back.
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// Err returns the latest recorded error, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
