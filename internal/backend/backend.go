// Package backend implements the realtime collaborator the game runs
// on: row-level CRUD for rooms and players plus a per-room change
// notification channel carrying every row mutation and the ephemeral
// broadcasts (drawing events, chat) that are never persisted as rows.
package backend

import (
	"context"

	"github.com/sketchduel/sketchduel-backend/internal"
	"github.com/sketchduel/sketchduel-backend/internal/relay"
)

// RowStore is the persistence half of the contract. Implementations:
// in-memory maps and postgres. The store enforces the uniqueness
// constraint on room codes; callers retry creation with a new code.
type RowStore interface {
	InsertRoom(ctx context.Context, room internal.Room) error
	GetRoom(ctx context.Context, code string) (internal.Room, error)
	UpdateRoom(ctx context.Context, room internal.Room) error
	DeleteRoom(ctx context.Context, code string) error

	InsertPlayer(ctx context.Context, p internal.Player) error
	GetPlayer(ctx context.Context, code, id string) (internal.Player, error)
	UpdatePlayer(ctx context.Context, p internal.Player) error
	DeletePlayer(ctx context.Context, code, id string) error
	ListPlayers(ctx context.Context, code string) ([]internal.Player, error)

	Close()
}

type NotificationKind string

const (
	NoteRoomUpdated   NotificationKind = "room_updated"
	NoteRoomDeleted   NotificationKind = "room_deleted"
	NotePlayerJoined  NotificationKind = "player_joined"
	NotePlayerUpdated NotificationKind = "player_updated"
	NotePlayerLeft    NotificationKind = "player_left"
	NoteWordAssigned  NotificationKind = "word_assigned"
	NoteDrawing       NotificationKind = "drawing"
	NoteChat          NotificationKind = "chat"
)

// Notification is one fan-out event on a room's channel. Row
// notifications carry the whole row, not a diff; receivers replace
// their copy wholesale (last write wins). Word assignments are
// targeted: only the named player may act on them.
type Notification struct {
	Kind     NotificationKind      `json:"kind"`
	RoomCode string                `json:"room_code"`
	Room     *internal.Room        `json:"room,omitempty"`
	Player   *internal.Player      `json:"player,omitempty"`
	PlayerID string                `json:"player_id,omitempty"` // for deletes
	Drawing  *relay.StrokeEvent    `json:"drawing,omitempty"`
	Chat     *internal.ChatMessage `json:"chat,omitempty"`

	// Word delivery, NoteWordAssigned only.
	TargetID string `json:"target_id,omitempty"`
	Word     string `json:"word,omitempty"`
}

// RoomSnapshot is the full catch-up state handed to a fresh subscriber.
type RoomSnapshot struct {
	Room    internal.Room     `json:"room"`
	Players []internal.Player `json:"players"`
	Strokes []relay.Stroke    `json:"strokes"`
}
