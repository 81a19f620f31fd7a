package backend

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/relay"
)

// subscriptionBuffer bounds each subscriber channel. A subscriber that
// falls this far behind starts losing notifications; that client is
// effectively disconnected anyway.
const subscriptionBuffer = 64

// Subscription is one receiver on a room's notification channel.
type Subscription struct {
	C chan Notification

	svc  *Service
	code string
	once sync.Once
}

// Close detaches the subscription and closes C. Safe to call more than
// once; callers must close on every exit path so nothing acts on a
// stale room after departure.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.svc.unsubscribe(s.code, s)
		close(s.C)
	})
}

// Service glues a RowStore to the per-room fan-out channels and keeps
// the ephemeral per-room drawing board for late joiners. Every
// successful row write is published to all of the room's subscribers.
type Service struct {
	rows    RowStore
	journal Journal // may be nil

	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	boards map[string]*relay.Board
}

func NewService(rows RowStore, journal Journal) *Service {
	return &Service{
		rows:    rows,
		journal: journal,
		subs:    make(map[string]map[*Subscription]struct{}),
		boards:  make(map[string]*relay.Board),
	}
}

func (s *Service) Close() {
	s.mu.Lock()
	for code, subs := range s.subs {
		for sub := range subs {
			// Avoid Close() re-entering unsubscribe under our lock.
			sub.once.Do(func() { close(sub.C) })
		}
		delete(s.subs, code)
	}
	s.mu.Unlock()
	s.rows.Close()
}

// =============================================================================
// SUBSCRIPTIONS & FAN-OUT
// =============================================================================

// Subscribe attaches a new receiver to the room's channel. The caller
// owns the returned subscription and must Close it when leaving.
func (s *Service) Subscribe(code string) *Subscription {
	sub := &Subscription{
		C:    make(chan Notification, subscriptionBuffer),
		svc:  s,
		code: code,
	}

	s.mu.Lock()
	if s.subs[code] == nil {
		s.subs[code] = make(map[*Subscription]struct{})
	}
	s.subs[code][sub] = struct{}{}
	s.mu.Unlock()

	return sub
}

func (s *Service) unsubscribe(code string, sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subs := s.subs[code]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(s.subs, code)
		}
	}
}

func (s *Service) publish(note Notification) {
	// Snapshot receivers under lock, send outside it.
	s.mu.RLock()
	receivers := make([]*Subscription, 0, len(s.subs[note.RoomCode]))
	for sub := range s.subs[note.RoomCode] {
		receivers = append(receivers, sub)
	}
	s.mu.RUnlock()

	for _, sub := range receivers {
		select {
		case sub.C <- note:
		default:
			log.Printf("[publish] room=%s: dropping %s for slow subscriber",
				note.RoomCode, note.Kind)
		}
	}
}

// =============================================================================
// ROOM ROWS
// =============================================================================

// CreateRoom inserts the room row and its host player row. A code
// collision surfaces as ErrRoomCodeTaken for the caller to retry.
func (s *Service) CreateRoom(ctx context.Context, room internal.Room, host internal.Player) error {
	if err := s.rows.InsertRoom(ctx, room); err != nil {
		return err
	}
	if err := s.rows.InsertPlayer(ctx, host); err != nil {
		// Roll the half-created room back; a room row without its host
		// is unjoinable garbage.
		_ = s.rows.DeleteRoom(ctx, room.Code)
		return err
	}

	s.mu.Lock()
	s.boards[room.Code] = relay.NewBoard()
	s.mu.Unlock()

	if s.journal != nil {
		s.journal.RoomCreated(room.Code)
		s.journal.Event(room.Code, fmt.Sprintf("room created by %s", host.Name))
	}

	log.Printf("[CreateRoom] room=%s host=%s (%s)", room.Code, host.ID, host.Name)
	s.publish(Notification{Kind: NoteRoomUpdated, RoomCode: room.Code, Room: &room})
	s.publish(Notification{Kind: NotePlayerJoined, RoomCode: room.Code, Player: &host})
	return nil
}

func (s *Service) GetRoom(ctx context.Context, code string) (internal.Room, error) {
	return s.rows.GetRoom(ctx, code)
}

// SaveRoom writes the whole room row back and fans the change out.
func (s *Service) SaveRoom(ctx context.Context, room internal.Room) error {
	if err := s.rows.UpdateRoom(ctx, room); err != nil {
		return err
	}
	s.publish(Notification{Kind: NoteRoomUpdated, RoomCode: room.Code, Room: &room})
	return nil
}

// DeleteRoom tears the room down: row, board, journal topic.
func (s *Service) DeleteRoom(ctx context.Context, code string) error {
	if err := s.rows.DeleteRoom(ctx, code); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.boards, code)
	s.mu.Unlock()

	if s.journal != nil {
		s.journal.RoomClosed(code)
	}

	log.Printf("[DeleteRoom] room=%s removed", code)
	s.publish(Notification{Kind: NoteRoomDeleted, RoomCode: code})
	return nil
}

// =============================================================================
// PLAYER ROWS
// =============================================================================

func (s *Service) AddPlayer(ctx context.Context, p internal.Player) error {
	if err := s.rows.InsertPlayer(ctx, p); err != nil {
		return err
	}
	if s.journal != nil {
		s.journal.Event(p.RoomCode, fmt.Sprintf("%s joined", p.Name))
	}
	log.Printf("[AddPlayer] room=%s player=%s (%s)", p.RoomCode, p.ID, p.Name)
	s.publish(Notification{Kind: NotePlayerJoined, RoomCode: p.RoomCode, Player: &p})
	return nil
}

func (s *Service) GetPlayer(ctx context.Context, code, id string) (internal.Player, error) {
	return s.rows.GetPlayer(ctx, code, id)
}

func (s *Service) SavePlayer(ctx context.Context, p internal.Player) error {
	if err := s.rows.UpdatePlayer(ctx, p); err != nil {
		return err
	}
	s.publish(Notification{Kind: NotePlayerUpdated, RoomCode: p.RoomCode, Player: &p})
	return nil
}

// RemovePlayer deletes the player row. When the last row goes, the
// room is abandoned and cleaned up here.
func (s *Service) RemovePlayer(ctx context.Context, code, id string) error {
	player, err := s.rows.GetPlayer(ctx, code, id)
	if err != nil {
		return err
	}
	if err := s.rows.DeletePlayer(ctx, code, id); err != nil {
		return err
	}
	if s.journal != nil {
		s.journal.Event(code, fmt.Sprintf("%s left", player.Name))
	}
	log.Printf("[RemovePlayer] room=%s player=%s (%s)", code, id, player.Name)
	s.publish(Notification{Kind: NotePlayerLeft, RoomCode: code, PlayerID: id})

	remaining, err := s.rows.ListPlayers(ctx, code)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return s.DeleteRoom(ctx, code)
	}
	return nil
}

func (s *Service) ListPlayers(ctx context.Context, code string) ([]internal.Player, error) {
	return s.rows.ListPlayers(ctx, code)
}

// Snapshot returns the catch-up state for a fresh subscriber: room row,
// player rows in join order, and the completed strokes so far.
func (s *Service) Snapshot(ctx context.Context, code string) (RoomSnapshot, error) {
	room, err := s.rows.GetRoom(ctx, code)
	if err != nil {
		return RoomSnapshot{}, err
	}
	players, err := s.rows.ListPlayers(ctx, code)
	if err != nil {
		return RoomSnapshot{}, err
	}

	s.mu.RLock()
	var strokes []relay.Stroke
	if board := s.boards[code]; board != nil {
		strokes = board.Strokes()
	}
	s.mu.RUnlock()

	return RoomSnapshot{Room: room, Players: players, Strokes: strokes}, nil
}

// =============================================================================
// EPHEMERAL BROADCASTS
// =============================================================================

// BroadcastDrawing relays a stroke event to the room. The sender id is
// stamped here, not taken from the payload, so a client cannot spoof
// another player's strokes. Events mutate the room board so late
// joiners get a consistent picture, but are never persisted as rows.
func (s *Service) BroadcastDrawing(ctx context.Context, code, senderID string, ev relay.StrokeEvent) error {
	if _, err := s.rows.GetRoom(ctx, code); err != nil {
		return err
	}
	ev.PlayerID = senderID

	s.mu.Lock()
	board := s.boards[code]
	if board == nil {
		board = relay.NewBoard()
		s.boards[code] = board
	}
	board.Apply(ev)
	s.mu.Unlock()

	s.publish(Notification{Kind: NoteDrawing, RoomCode: code, Drawing: &ev})
	return nil
}

// BroadcastChat relays a chat/guess message. Guess matching has already
// happened by the time a message gets here.
func (s *Service) BroadcastChat(ctx context.Context, code string, msg internal.ChatMessage) error {
	if _, err := s.rows.GetRoom(ctx, code); err != nil {
		return err
	}
	if s.journal != nil {
		s.journal.Event(code, fmt.Sprintf("%s: %s", msg.PlayerName, msg.Text))
	}
	s.publish(Notification{Kind: NoteChat, RoomCode: code, Chat: &msg})
	return nil
}

// AssignWord delivers the secret word to one player. Everyone sees the
// notification on the channel; only the target may act on it.
func (s *Service) AssignWord(code, playerID, word string) {
	s.publish(Notification{
		Kind:     NoteWordAssigned,
		RoomCode: code,
		TargetID: playerID,
		Word:     word,
	})
}
