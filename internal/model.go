package internal

import (
	"time"
)

const (
	MaxPlayersPerRoom   = 8
	MinPlayersToStart   = 2
	RoomCodeLength      = 6
	DefaultTimerSeconds = 60
)

type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusPlaying RoomStatus = "playing"
	StatusEnded   RoomStatus = "ended"
)

type WordDifficulty string

const (
	DifficultyEasy   WordDifficulty = "easy"
	DifficultyMedium WordDifficulty = "medium"
	DifficultyHard   WordDifficulty = "hard"
)

type Word struct {
	Text       string         `json:"text"`
	Difficulty WordDifficulty `json:"difficulty"`
}

// RoomSettings is fixed at room creation.
type RoomSettings struct {
	TimerSeconds int            `json:"timer_seconds"`
	AllowTagTeam bool           `json:"allow_tag_team"`
	MaxRounds    int            `json:"max_rounds"` // 0 = no cap
	Difficulty   WordDifficulty `json:"difficulty"`
}

func DefaultSettings() RoomSettings {
	return RoomSettings{
		TimerSeconds: DefaultTimerSeconds,
		AllowTagTeam: true,
		MaxRounds:    0,
		Difficulty:   DifficultyMedium,
	}
}

// Room is one row in the rooms table. CurrentWord never goes out over
// the wire with the room row; the drawer receives it in a targeted
// word_assigned message instead.
type Room struct {
	Code         string       `json:"code"`
	Status       RoomStatus   `json:"status"`
	Settings     RoomSettings `json:"settings"`
	CurrentRound int          `json:"current_round"`
	CurrentWord  string       `json:"-"`
	DrawingTeam  int          `json:"drawing_team"` // 0 pre-game, otherwise 1 or 2
	RoundStart   time.Time    `json:"round_start_time"`

	// Host lease: holder may perform host-only actions. Reassigned to
	// the earliest-joined connected player when it expires.
	LeaseHolder string    `json:"lease_holder"`
	LeaseExpiry time.Time `json:"lease_expiry"`

	CreatedAt time.Time `json:"created_at"`
}

// RoundDuration is the per-round timer as a time.Duration.
func (r *Room) RoundDuration() time.Duration {
	return time.Duration(r.Settings.TimerSeconds) * time.Second
}

// Player is one row in the players table, scoped to a room code.
type Player struct {
	ID          string    `json:"id"`
	RoomCode    string    `json:"room_code"`
	Name        string    `json:"name"`
	Team        int       `json:"team"` // 0 = unassigned
	IsHost      bool      `json:"is_host"`
	IsReady     bool      `json:"is_ready"`
	IsDrawing   bool      `json:"is_drawing"`
	Score       int       `json:"score"`
	IsConnected bool      `json:"is_connected"`
	JoinedAt    time.Time `json:"joined_at"`
}

type ChatMessage struct {
	ID             string `json:"id"`
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	Text           string `json:"text"`
	IsCorrectGuess bool   `json:"is_correct_guess"`
	SentAt         int64  `json:"sent_at_ms"`
}

// Message is the websocket envelope shared by both directions.
type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// TeamScore aggregates a team's score as the sum of its members.
func TeamScore(players []Player, team int) int {
	total := 0
	for _, p := range players {
		if p.Team == team {
			total += p.Score
		}
	}
	return total
}

// TeamMembers returns the players on the given team in join order,
// assuming the input is already join-ordered.
func TeamMembers(players []Player, team int) []Player {
	members := make([]Player, 0, len(players))
	for _, p := range players {
		if p.Team == team {
			members = append(members, p)
		}
	}
	return members
}
