package api

import (
	"github.com/park285/checkers-server/internal/archive"
	"github.com/park285/checkers-server/internal/checkers"
	"github.com/park285/checkers-server/internal/domain"
	"github.com/park285/checkers-server/pkg/checkersdto"
)

func square(p checkers.Position) checkersdto.Square {
	return checkersdto.Square{Row: p.Row, Col: p.Col}
}

func squarePtr(p *checkers.Position) *checkersdto.Square {
	if p == nil {
		return nil
	}
	sq := square(*p)
	return &sq
}

func gameState(g *domain.Game) *checkersdto.GameState {
	st := &checkersdto.GameState{
		GameID:        g.ID,
		Player1ID:     g.Player1ID,
		Player2ID:     g.Player2ID,
		Board:         g.Board.Rows(),
		CurrentPlayer: int(g.CurrentPlayer),
		Status:        string(g.Status),
		FinishMethod:  g.FinishMethod,
		MoveCount:     g.MoveCount,
		UpdatedAt:     g.UpdatedAt,
	}
	if g.WinnerID != nil {
		w := *g.WinnerID
		st.WinnerID = &w
	}
	return st
}

func moveEntry(m domain.MoveRecord) checkersdto.MoveEntry {
	return checkersdto.MoveEntry{
		Seq:        m.Seq,
		PlayerID:   m.PlayerID,
		From:       square(m.From),
		To:         square(m.To),
		Captured:   m.Captured,
		CapturedAt: squarePtr(m.CapturedAt),
		Promoted:   m.Promoted,
		At:         m.At,
	}
}

func legalMove(m checkers.Move) checkersdto.LegalMove {
	return checkersdto.LegalMove{From: square(m.From), To: square(m.To), Captured: squarePtr(m.Captured)}
}

func historyEntry(r archive.Record) checkersdto.HistoryEntry {
	return checkersdto.HistoryEntry{
		GameID:     r.GameID,
		Player1ID:  r.Player1ID,
		Player2ID:  r.Player2ID,
		WinnerID:   r.WinnerID,
		Method:     r.Method,
		MoveCount:  r.MoveCount,
		Transcript: r.Transcript,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
		DurationMs: r.DurationMs,
	}
}
