package session

import (
	"testing"

	"github.com/park285/checkers-server/internal/checkers"
)

func TestBotIsDeterministicPerSeed(t *testing.T) {
	b := checkers.InitialBoard()
	a1, ok1 := NewBot(7).Choose(b, checkers.Player2)
	a2, ok2 := NewBot(7).Choose(b, checkers.Player2)
	if !ok1 || !ok2 || a1.From != a2.From || a1.To != a2.To {
		t.Fatalf("same seed should pick the same move: %+v vs %+v", a1, a2)
	}
	if _, err := checkers.ValidateMove(b, a1.From, a1.To, checkers.Player2); err != nil {
		t.Fatalf("bot picked an illegal move: %v", err)
	}
}

func TestBotPrefersCaptures(t *testing.T) {
	b, err := checkers.ParseBoard("......../......../......../..x...../...o..../......../.....o../........")
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	for seed := int64(1); seed <= 20; seed++ {
		mv, ok := NewBot(seed).Choose(b, checkers.Player2)
		if !ok || mv.Captured == nil || *mv.Captured != checkers.Pos(3, 2) {
			t.Fatalf("seed %d: expected capture of (3,2), got %+v", seed, mv)
		}
	}
}

func TestBotWithoutMoves(t *testing.T) {
	var empty checkers.Board
	if _, ok := NewBot(1).Choose(empty, checkers.Player1); ok {
		t.Fatalf("expected no move on an empty board")
	}
}
