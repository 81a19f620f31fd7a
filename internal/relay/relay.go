// Package relay turns pointer gestures into an ordered stroke event
// stream and rebuilds drawings from such a stream. A Board is purely a
// function of the ordered events it receives: replaying the same
// sequence on any receiver reproduces the same drawing. Delivery order
// is the transport's problem, not ours.
package relay

import "time"

type EventType string

const (
	EventStart EventType = "start"
	EventMove  EventType = "move"
	EventEnd   EventType = "end"
	EventClear EventType = "clear"
	EventUndo  EventType = "undo"
)

// StrokeEvent is one ephemeral drawing event. Color and brush size ride
// on every event so late joiners render consistently. PlayerID is
// attached by the relay on the way through, never trusted from the
// sender.
type StrokeEvent struct {
	Type      EventType `json:"type"`
	X         *float64  `json:"x,omitempty"`
	Y         *float64  `json:"y,omitempty"`
	Color     string    `json:"color"`
	BrushSize int       `json:"brush_size"`
	Timestamp int64     `json:"timestamp"`
	PlayerID  string    `json:"player_id,omitempty"`
}

// Start builds a stroke-open event at (x, y).
func Start(x, y float64, color string, brushSize int) StrokeEvent {
	return StrokeEvent{
		Type: EventStart, X: &x, Y: &y,
		Color: color, BrushSize: brushSize,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Move appends a point to the sender's open stroke.
func Move(x, y float64, color string, brushSize int) StrokeEvent {
	return StrokeEvent{
		Type: EventMove, X: &x, Y: &y,
		Color: color, BrushSize: brushSize,
		Timestamp: time.Now().UnixMilli(),
	}
}

// End closes the sender's open stroke.
func End(color string, brushSize int) StrokeEvent {
	return StrokeEvent{
		Type: EventEnd, Color: color, BrushSize: brushSize,
		Timestamp: time.Now().UnixMilli(),
	}
}

func Clear() StrokeEvent {
	return StrokeEvent{Type: EventClear, Timestamp: time.Now().UnixMilli()}
}

func Undo() StrokeEvent {
	return StrokeEvent{Type: EventUndo, Timestamp: time.Now().UnixMilli()}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is an immutable completed stroke.
type Stroke struct {
	PlayerID  string  `json:"player_id"`
	Color     string  `json:"color"`
	BrushSize int     `json:"brush_size"`
	Points    []Point `json:"points"`
}

// Board accumulates strokes for one room. Not safe for concurrent use;
// callers serialize access (the backend service applies events under
// its own lock, client stores on their single event loop).
type Board struct {
	open   map[string]*Stroke // keyed by sender
	closed []Stroke
}

func NewBoard() *Board {
	return &Board{open: make(map[string]*Stroke)}
}

// Apply folds one event into the board. Events that make no sense in
// the current state (move/end without a start, undo with nothing
// closed) are dropped.
func (b *Board) Apply(ev StrokeEvent) {
	switch ev.Type {
	case EventStart:
		if ev.X == nil || ev.Y == nil {
			return
		}
		// A second start from the same sender abandons the dangling
		// open stroke.
		b.open[ev.PlayerID] = &Stroke{
			PlayerID:  ev.PlayerID,
			Color:     ev.Color,
			BrushSize: ev.BrushSize,
			Points:    []Point{{X: *ev.X, Y: *ev.Y}},
		}

	case EventMove:
		s := b.open[ev.PlayerID]
		if s == nil || ev.X == nil || ev.Y == nil {
			return
		}
		s.Points = append(s.Points, Point{X: *ev.X, Y: *ev.Y})

	case EventEnd:
		s := b.open[ev.PlayerID]
		if s == nil {
			return
		}
		delete(b.open, ev.PlayerID)
		b.closed = append(b.closed, *s)

	case EventClear:
		b.open = make(map[string]*Stroke)
		b.closed = nil

	case EventUndo:
		if len(b.closed) == 0 {
			return
		}
		b.closed = b.closed[:len(b.closed)-1]
	}
}

// Strokes returns a copy of the completed strokes in completion order.
func (b *Board) Strokes() []Stroke {
	out := make([]Stroke, len(b.closed))
	copy(out, b.closed)
	return out
}

func (b *Board) Len() int {
	return len(b.closed)
}
