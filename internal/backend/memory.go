package backend

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sketchduel/sketchduel-backend/internal"
)

// MemoryRows is the in-process row store used when no DATABASE_URL is
// configured. Writes replace rows wholesale, so replication order is
// the only arbiter between racing writers, same as the hosted store.
type MemoryRows struct {
	mu      sync.RWMutex
	rooms   map[string]internal.Room
	players map[string][]internal.Player // join order per room code
}

func NewMemoryRows() *MemoryRows {
	return &MemoryRows{
		rooms:   make(map[string]internal.Room),
		players: make(map[string][]internal.Player),
	}
}

func (m *MemoryRows) InsertRoom(_ context.Context, room internal.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[room.Code]; exists {
		return fmt.Errorf("%w: %s", internal.ErrRoomCodeTaken, room.Code)
	}
	m.rooms[room.Code] = room
	m.players[room.Code] = make([]internal.Player, 0, internal.MaxPlayersPerRoom)
	return nil
}

func (m *MemoryRows) GetRoom(_ context.Context, code string) (internal.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[code]
	if !exists {
		return internal.Room{}, fmt.Errorf("%w: %s", internal.ErrRoomNotFound, code)
	}
	return room, nil
}

func (m *MemoryRows) UpdateRoom(_ context.Context, room internal.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[room.Code]; !exists {
		return fmt.Errorf("%w: %s", internal.ErrRoomNotFound, room.Code)
	}
	m.rooms[room.Code] = room
	return nil
}

func (m *MemoryRows) DeleteRoom(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, code)
	delete(m.players, code)
	return nil
}

func (m *MemoryRows) InsertPlayer(_ context.Context, p internal.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[p.RoomCode]; !exists {
		return fmt.Errorf("%w: %s", internal.ErrRoomNotFound, p.RoomCode)
	}
	// Capacity is enforced here, under the store lock, so concurrent
	// joins cannot race past the session-level pre-check.
	if len(m.players[p.RoomCode]) >= internal.MaxPlayersPerRoom {
		return fmt.Errorf("%w: %s", internal.ErrRoomFull, p.RoomCode)
	}
	m.players[p.RoomCode] = append(m.players[p.RoomCode], p)
	return nil
}

func (m *MemoryRows) GetPlayer(_ context.Context, code, id string) (internal.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.players[code] {
		if p.ID == id {
			return p, nil
		}
	}
	return internal.Player{}, fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, id)
}

func (m *MemoryRows) UpdatePlayer(_ context.Context, p internal.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.players[p.RoomCode]
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, p.ID)
}

func (m *MemoryRows) DeletePlayer(_ context.Context, code, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.players[code])
	m.players[code] = slices.DeleteFunc(m.players[code], func(p internal.Player) bool {
		return p.ID == id
	})
	if len(m.players[code]) == before {
		return fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, id)
	}
	return nil
}

func (m *MemoryRows) ListPlayers(_ context.Context, code string) ([]internal.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.rooms[code]; !exists {
		return nil, fmt.Errorf("%w: %s", internal.ErrRoomNotFound, code)
	}
	out := make([]internal.Player, len(m.players[code]))
	copy(out, m.players[code])
	return out, nil
}

func (m *MemoryRows) Close() {}
