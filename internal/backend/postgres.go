package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sketchduel/sketchduel-backend/internal"
)

// pgUniqueViolation is the postgres error code for unique_violation.
const pgUniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	code           TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	timer_seconds  INT NOT NULL,
	allow_tag_team BOOLEAN NOT NULL,
	max_rounds     INT NOT NULL,
	difficulty     TEXT NOT NULL,
	current_round  INT NOT NULL,
	current_word   TEXT NOT NULL DEFAULT '',
	drawing_team   INT NOT NULL DEFAULT 0,
	round_start    TIMESTAMPTZ,
	lease_holder   TEXT NOT NULL DEFAULT '',
	lease_expiry   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS players (
	id           TEXT PRIMARY KEY,
	room_code    TEXT NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	team         INT NOT NULL DEFAULT 0,
	is_host      BOOLEAN NOT NULL DEFAULT FALSE,
	is_ready     BOOLEAN NOT NULL DEFAULT FALSE,
	is_drawing   BOOLEAN NOT NULL DEFAULT FALSE,
	score        INT NOT NULL DEFAULT 0,
	is_connected BOOLEAN NOT NULL DEFAULT TRUE,
	joined_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_players_room_code ON players(room_code);
`

// PostgresRows is the pgx-backed row store used when DATABASE_URL is
// configured, giving rooms survival across server restarts.
type PostgresRows struct {
	pool *pgxpool.Pool
}

func NewPostgresRows(ctx context.Context, connString string) (*PostgresRows, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %w", internal.ErrTransport, err)
	}
	return &PostgresRows{pool: pool}, nil
}

func (pg *PostgresRows) Close() {
	pg.pool.Close()
}

func (pg *PostgresRows) InsertRoom(ctx context.Context, room internal.Room) error {
	_, err := pg.pool.Exec(ctx, `
		INSERT INTO rooms (code, status, timer_seconds, allow_tag_team, max_rounds,
			difficulty, current_round, current_word, drawing_team, round_start,
			lease_holder, lease_expiry, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		room.Code, room.Status, room.Settings.TimerSeconds, room.Settings.AllowTagTeam,
		room.Settings.MaxRounds, room.Settings.Difficulty, room.CurrentRound,
		room.CurrentWord, room.DrawingTeam, nullTime(room.RoundStart),
		room.LeaseHolder, nullTime(room.LeaseExpiry), room.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", internal.ErrRoomCodeTaken, room.Code)
		}
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	return nil
}

func (pg *PostgresRows) GetRoom(ctx context.Context, code string) (internal.Room, error) {
	row := pg.pool.QueryRow(ctx, `
		SELECT code, status, timer_seconds, allow_tag_team, max_rounds, difficulty,
			current_round, current_word, drawing_team, round_start,
			lease_holder, lease_expiry, created_at
		FROM rooms WHERE code = $1`, code)
	return scanRoom(row, code)
}

func (pg *PostgresRows) UpdateRoom(ctx context.Context, room internal.Room) error {
	tag, err := pg.pool.Exec(ctx, `
		UPDATE rooms SET status=$2, current_round=$3, current_word=$4,
			drawing_team=$5, round_start=$6, lease_holder=$7, lease_expiry=$8
		WHERE code=$1`,
		room.Code, room.Status, room.CurrentRound, room.CurrentWord,
		room.DrawingTeam, nullTime(room.RoundStart),
		room.LeaseHolder, nullTime(room.LeaseExpiry))
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", internal.ErrRoomNotFound, room.Code)
	}
	return nil
}

func (pg *PostgresRows) DeleteRoom(ctx context.Context, code string) error {
	if _, err := pg.pool.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code); err != nil {
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	return nil
}

// InsertPlayer enforces the room capacity in the same statement as the
// write, so concurrent joins racing past the session pre-check still
// cannot overfill a room.
func (pg *PostgresRows) InsertPlayer(ctx context.Context, p internal.Player) error {
	tag, err := pg.pool.Exec(ctx, `
		INSERT INTO players (id, room_code, name, team, is_host, is_ready,
			is_drawing, score, is_connected, joined_at)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
		WHERE (SELECT COUNT(*) FROM players WHERE room_code = $2) < $11`,
		p.ID, p.RoomCode, p.Name, p.Team, p.IsHost, p.IsReady,
		p.IsDrawing, p.Score, p.IsConnected, p.JoinedAt,
		internal.MaxPlayersPerRoom)
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", internal.ErrRoomFull, p.RoomCode)
	}
	return nil
}

func (pg *PostgresRows) GetPlayer(ctx context.Context, code, id string) (internal.Player, error) {
	row := pg.pool.QueryRow(ctx, `
		SELECT id, room_code, name, team, is_host, is_ready, is_drawing,
			score, is_connected, joined_at
		FROM players WHERE room_code = $1 AND id = $2`, code, id)

	var p internal.Player
	err := row.Scan(&p.ID, &p.RoomCode, &p.Name, &p.Team, &p.IsHost, &p.IsReady,
		&p.IsDrawing, &p.Score, &p.IsConnected, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Player{}, fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, id)
		}
		return internal.Player{}, fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	return p, nil
}

func (pg *PostgresRows) UpdatePlayer(ctx context.Context, p internal.Player) error {
	tag, err := pg.pool.Exec(ctx, `
		UPDATE players SET team=$3, is_ready=$4, is_drawing=$5, score=$6, is_connected=$7
		WHERE room_code=$1 AND id=$2`,
		p.RoomCode, p.ID, p.Team, p.IsReady, p.IsDrawing, p.Score, p.IsConnected)
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, p.ID)
	}
	return nil
}

func (pg *PostgresRows) DeletePlayer(ctx context.Context, code, id string) error {
	tag, err := pg.pool.Exec(ctx,
		`DELETE FROM players WHERE room_code = $1 AND id = $2`, code, id)
	if err != nil {
		return fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", internal.ErrPlayerNotFound, id)
	}
	return nil
}

func (pg *PostgresRows) ListPlayers(ctx context.Context, code string) ([]internal.Player, error) {
	if _, err := pg.GetRoom(ctx, code); err != nil {
		return nil, err
	}

	rows, err := pg.pool.Query(ctx, `
		SELECT id, room_code, name, team, is_host, is_ready, is_drawing,
			score, is_connected, joined_at
		FROM players WHERE room_code = $1 ORDER BY joined_at, id`, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	defer rows.Close()

	players := make([]internal.Player, 0, internal.MaxPlayersPerRoom)
	for rows.Next() {
		var p internal.Player
		if err := rows.Scan(&p.ID, &p.RoomCode, &p.Name, &p.Team, &p.IsHost,
			&p.IsReady, &p.IsDrawing, &p.Score, &p.IsConnected, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", internal.ErrTransport, err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	return players, nil
}

func scanRoom(row pgx.Row, code string) (internal.Room, error) {
	var (
		room       internal.Room
		roundStart *time.Time
		leaseExp   *time.Time
	)
	err := row.Scan(&room.Code, &room.Status, &room.Settings.TimerSeconds,
		&room.Settings.AllowTagTeam, &room.Settings.MaxRounds, &room.Settings.Difficulty,
		&room.CurrentRound, &room.CurrentWord, &room.DrawingTeam, &roundStart,
		&room.LeaseHolder, &leaseExp, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return internal.Room{}, fmt.Errorf("%w: %s", internal.ErrRoomNotFound, code)
		}
		return internal.Room{}, fmt.Errorf("%w: %w", internal.ErrTransport, err)
	}
	if roundStart != nil {
		room.RoundStart = *roundStart
	}
	if leaseExp != nil {
		room.LeaseExpiry = *leaseExp
	}
	return room, nil
}

// nullTime maps Go's zero time onto SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
