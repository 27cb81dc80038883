package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/checkers-server/internal/domain"
)

// Record is one finished game as stored in checkers_games.
type Record struct {
	GameID     string    `json:"game_id"`
	Player1ID  int64     `json:"player1_id"`
	Player2ID  int64     `json:"player2_id"`
	WinnerID   int64     `json:"winner_id"`
	Method     string    `json:"method"`
	MoveCount  int       `json:"move_count"`
	Transcript string    `json:"transcript"`
	FinalBoard string    `json:"final_board"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const schema = `CREATE TABLE IF NOT EXISTS checkers_games (
	game_id     TEXT PRIMARY KEY,
	player1_id  BIGINT NOT NULL,
	player2_id  BIGINT NOT NULL,
	winner_id   BIGINT NOT NULL,
	method      TEXT NOT NULL,
	move_count  INTEGER NOT NULL,
	moves       JSONB NOT NULL,
	transcript  TEXT NOT NULL,
	final_board TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS checkers_games_p1_idx ON checkers_games (player1_id, ended_at DESC);
CREATE INDEX IF NOT EXISTS checkers_games_p2_idx ON checkers_games (player2_id, ended_at DESC);`

// EnsureSchema creates the archive table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// SaveResult upserts a finished game with its move log.
func (r *Repository) SaveResult(ctx context.Context, g *domain.Game, moves []domain.MoveRecord) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	if !g.Finished() {
		return fmt.Errorf("game %s is not finished", g.ID)
	}
	rec := NewRecord(g, moves)
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}

	q := `INSERT INTO checkers_games (
        game_id, player1_id, player2_id, winner_id, method, move_count,
        moves, transcript, final_board, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
      ) ON CONFLICT (game_id) DO UPDATE SET
        winner_id=EXCLUDED.winner_id,
        method=EXCLUDED.method,
        move_count=EXCLUDED.move_count,
        moves=EXCLUDED.moves,
        transcript=EXCLUDED.transcript,
        final_board=EXCLUDED.final_board,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.GameID, rec.Player1ID, rec.Player2ID, rec.WinnerID, rec.Method, rec.MoveCount,
		string(movesRaw), rec.Transcript, rec.FinalBoard,
		rec.StartedAt, rec.EndedAt, rec.DurationMs,
	)
	return err
}

// RecentGames lists finished games involving userID, newest first.
func (r *Repository) RecentGames(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT game_id, player1_id, player2_id, winner_id, method, move_count,
        transcript, final_board, started_at, ended_at, duration_ms
      FROM checkers_games
      WHERE player1_id = $1 OR player2_id = $1
      ORDER BY ended_at DESC
      LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.GameID, &rec.Player1ID, &rec.Player2ID, &rec.WinnerID, &rec.Method, &rec.MoveCount,
			&rec.Transcript, &rec.FinalBoard, &rec.StartedAt, &rec.EndedAt, &rec.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NewRecord derives the archived row for a finished game.
func NewRecord(g *domain.Game, moves []domain.MoveRecord) Record {
	rec := Record{
		GameID:     g.ID,
		Player1ID:  g.Player1ID,
		Player2ID:  g.Player2ID,
		Method:     g.FinishMethod,
		MoveCount:  g.MoveCount,
		Transcript: Transcript(moves),
		FinalBoard: g.Board.String(),
		StartedAt:  g.CreatedAt,
		EndedAt:    g.UpdatedAt,
	}
	if g.WinnerID != nil {
		rec.WinnerID = *g.WinnerID
	}
	rec.DurationMs = g.UpdatedAt.Sub(g.CreatedAt).Milliseconds()
	if rec.DurationMs < 0 {
		rec.DurationMs = 0
	}
	return rec
}

// Transcript renders moves as numbered pairs, "x" marking captures and "K"
// marking promotions: "1. (2,1)-(3,0) (5,0)-(4,1) 2. ...".
func Transcript(moves []domain.MoveRecord) string {
	var b strings.Builder
	for i, m := range moves {
		if i%2 == 0 {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%d. ", i/2+1)
		} else {
			b.WriteString(" ")
		}
		sep := "-"
		if m.Captured {
			sep = "x"
		}
		b.WriteString(m.From.String())
		b.WriteString(sep)
		b.WriteString(m.To.String())
		if m.Promoted {
			b.WriteString("K")
		}
	}
	return b.String()
}
