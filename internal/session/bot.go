package session

import (
	"math/rand"
	"sync"
	"time"

	"github.com/park285/checkers-server/internal/checkers"
)

// Bot picks moves for the automated opponent: a random capture when one
// exists, otherwise a random legal move.
type Bot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBot seeds the move picker; seed 0 uses the clock.
func NewBot(seed int64) *Bot {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Bot{rng: rand.New(rand.NewSource(seed))}
}

// Choose returns false when player has no legal move.
func (b *Bot) Choose(board checkers.Board, player checkers.Player) (checkers.Move, bool) {
	moves := checkers.LegalMoves(board, player)
	if len(moves) == 0 {
		return checkers.Move{}, false
	}
	var captures []checkers.Move
	for _, mv := range moves {
		if mv.Captured != nil {
			captures = append(captures, mv)
		}
	}
	if len(captures) > 0 {
		moves = captures
	}
	b.mu.Lock()
	i := b.rng.Intn(len(moves))
	b.mu.Unlock()
	return moves[i], true
}
