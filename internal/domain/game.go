package domain

import (
	"time"

	"github.com/park285/checkers-server/internal/checkers"
)

// BotID is the player id of the automated opponent.
const BotID int64 = 0

// Status represents a game lifecycle state.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

// Finish methods recorded with a finished game.
const (
	MethodNoPieces    = "no_pieces"
	MethodNoMoves     = "no_moves"
	MethodResignation = "resignation"
)

// Game is the persisted state of one checkers match.
type Game struct {
	ID            string          `json:"id"`
	Player1ID     int64           `json:"player1_id"`
	Player2ID     int64           `json:"player2_id"`
	CurrentPlayer checkers.Player `json:"current_player"`
	Status        Status          `json:"status"`
	Board         checkers.Board  `json:"board"`
	WinnerID      *int64          `json:"winner_id,omitempty"`
	FinishMethod  string          `json:"finish_method,omitempty"`
	MoveCount     int             `json:"move_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewGame returns an in-progress game on the initial board with player 1 to move.
func NewGame(id string, player1, player2 int64, now time.Time) *Game {
	return &Game{
		ID:            id,
		Player1ID:     player1,
		Player2ID:     player2,
		CurrentPlayer: checkers.Player1,
		Status:        StatusInProgress,
		Board:         checkers.InitialBoard(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	if g.WinnerID != nil {
		w := *g.WinnerID
		cp.WinnerID = &w
	}
	return &cp
}

func (g *Game) Finished() bool { return g.Status == StatusFinished }

func (g *Game) AgainstBot() bool { return g.Player2ID == BotID }

// SeatOf returns the seat held by userID; NoPlayer when not a participant.
// The bot never resolves to a seat through this lookup.
func (g *Game) SeatOf(userID int64) checkers.Player {
	switch {
	case userID == BotID:
		return checkers.NoPlayer
	case userID == g.Player1ID:
		return checkers.Player1
	case userID == g.Player2ID:
		return checkers.Player2
	}
	return checkers.NoPlayer
}

// PlayerID maps a seat back to its user id.
func (g *Game) PlayerID(seat checkers.Player) int64 {
	if seat == checkers.Player2 {
		return g.Player2ID
	}
	return g.Player1ID
}

// Finish marks the game finished with winner.
func (g *Game) Finish(winner int64, method string, now time.Time) {
	g.Status = StatusFinished
	w := winner
	g.WinnerID = &w
	g.FinishMethod = method
	g.UpdatedAt = now
}

// MoveRecord is one applied move in the append-only audit log.
type MoveRecord struct {
	GameID     string             `json:"game_id"`
	Seq        int                `json:"seq"`
	PlayerID   int64              `json:"player_id"`
	From       checkers.Position  `json:"from"`
	To         checkers.Position  `json:"to"`
	Captured   bool               `json:"captured"`
	CapturedAt *checkers.Position `json:"captured_at,omitempty"`
	Promoted   bool               `json:"promoted,omitempty"`
	At         time.Time          `json:"at"`
}

// GameFinished is published once per game when it transitions to Finished.
type GameFinished struct {
	GameID    string    `json:"gameId"`
	WinnerID  int64     `json:"winnerId"`
	Player1ID int64     `json:"player1Id"`
	Player2ID int64     `json:"player2Id"`
	Method    string    `json:"method"`
	At        time.Time `json:"at"`
}

func FinishedEvent(g *Game) GameFinished {
	ev := GameFinished{
		GameID:    g.ID,
		Player1ID: g.Player1ID,
		Player2ID: g.Player2ID,
		Method:    g.FinishMethod,
		At:        g.UpdatedAt,
	}
	if g.WinnerID != nil {
		ev.WinnerID = *g.WinnerID
	}
	return ev
}
