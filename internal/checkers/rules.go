package checkers

import "fmt"

// Reason names why a move was rejected.
type Reason string

const (
	ReasonOutOfBounds         Reason = "out_of_bounds"
	ReasonDestinationOccupied Reason = "destination_occupied"
	ReasonNotOwner            Reason = "not_owner"
	ReasonNotDiagonal         Reason = "not_diagonal"
	ReasonWrongDirection      Reason = "wrong_direction"
	ReasonInvalidDistance     Reason = "invalid_distance"
	ReasonNoPieceToCapture    Reason = "no_piece_to_capture"
	ReasonBlockedByOwnPiece   Reason = "blocked_by_own_piece"
	ReasonTooManyPiecesOnPath Reason = "too_many_pieces_on_path"
)

// RuleError is returned for a rejected move. It never implies a mutation.
type RuleError struct {
	Reason   Reason
	From, To Position
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("move %s->%s rejected: %s", e.From, e.To, e.Reason)
}

func reject(r Reason, from, to Position) *RuleError {
	return &RuleError{Reason: r, From: from, To: to}
}

// Verdict is the accepted outcome of ValidateMove.
type Verdict struct {
	Captured *Position
}

func (v Verdict) IsCapture() bool { return v.Captured != nil }

// Move is a single from/to step.
type Move struct {
	From     Position  `json:"from"`
	To       Position  `json:"to"`
	Captured *Position `json:"captured,omitempty"`
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// ValidateMove checks a proposed move for mover on board. It has no side
// effects; a nil error means the move is legal.
func ValidateMove(b Board, from, to Position, mover Player) (Verdict, error) {
	if !from.InBounds() || !to.InBounds() {
		return Verdict{}, reject(ReasonOutOfBounds, from, to)
	}
	if !b.cell(to).Empty() {
		return Verdict{}, reject(ReasonDestinationOccupied, from, to)
	}
	pc, ok := b.cell(from).Piece()
	if !ok || pc.Owner != mover {
		return Verdict{}, reject(ReasonNotOwner, from, to)
	}
	dr, dc := to.Row-from.Row, to.Col-from.Col
	if abs(dr) != abs(dc) || dr == 0 {
		return Verdict{}, reject(ReasonNotDiagonal, from, to)
	}

	if pc.Rank == Pawn {
		if sign(dr) != mover.Forward() {
			return Verdict{}, reject(ReasonWrongDirection, from, to)
		}
		switch abs(dr) {
		case 1:
			return Verdict{}, nil
		case 2:
			mid := Pos(from.Row+dr/2, from.Col+dc/2)
			if victim, ok := b.cell(mid).Piece(); ok && victim.Owner == mover.Opponent() {
				return Verdict{Captured: &mid}, nil
			}
			return Verdict{}, reject(ReasonNoPieceToCapture, from, to)
		default:
			return Verdict{}, reject(ReasonInvalidDistance, from, to)
		}
	}

	// king: walk the diagonal between from and to, exclusive
	stepR, stepC := sign(dr), sign(dc)
	seen := 0
	var last Position
	for p := Pos(from.Row+stepR, from.Col+stepC); p != to; p = Pos(p.Row+stepR, p.Col+stepC) {
		occ, ok := b.cell(p).Piece()
		if !ok {
			continue
		}
		if occ.Owner == mover {
			return Verdict{}, reject(ReasonBlockedByOwnPiece, from, to)
		}
		seen++
		last = p
	}
	switch seen {
	case 0:
		return Verdict{}, nil
	case 1:
		return Verdict{Captured: &last}, nil
	default:
		return Verdict{}, reject(ReasonTooManyPiecesOnPath, from, to)
	}
}

// ApplyMove moves the piece, clears the captured square and promotes a pawn
// that lands on its far row. Kings keep their rank.
func ApplyMove(b Board, from, to Position, captured *Position) (Board, error) {
	pc, ok, err := b.PieceAt(from)
	if err != nil {
		return b, err
	}
	next, err := b.WithPieceMoved(from, to)
	if err != nil {
		return b, err
	}
	if captured != nil {
		if next, err = next.WithPieceRemoved(*captured); err != nil {
			return b, err
		}
	}
	if ok && pc.Rank == Pawn && to.Row == pc.Owner.PromotionRow() {
		next.cells[to.index()] = Occupied(Piece{Owner: pc.Owner, Rank: King})
	}
	return next, nil
}

var diagonals = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}

// HasAnyMove reports whether player has at least one simple move or
// two-step capture.
func HasAnyMove(b Board, player Player) bool {
	for _, from := range b.Positions(player) {
		for _, d := range diagonals {
			for dist := 1; dist <= 2; dist++ {
				to := Pos(from.Row+d[0]*dist, from.Col+d[1]*dist)
				if !to.InBounds() {
					break
				}
				if _, err := ValidateMove(b, from, to, player); err == nil {
					return true
				}
			}
		}
	}
	return false
}

// IsTerminal is true when playerToMove owns no pieces or cannot move.
func IsTerminal(b Board, playerToMove Player) bool {
	if b.Count(playerToMove) == 0 {
		return true
	}
	return !HasAnyMove(b, playerToMove)
}

// LegalMoves enumerates every accepted move for player; kings contribute
// every reachable distance. Order is deterministic.
func LegalMoves(b Board, player Player) []Move {
	var out []Move
	for _, from := range b.Positions(player) {
		for _, d := range diagonals {
			for dist := 1; dist < Size; dist++ {
				to := Pos(from.Row+d[0]*dist, from.Col+d[1]*dist)
				if !to.InBounds() {
					break
				}
				v, err := ValidateMove(b, from, to, player)
				if err != nil {
					continue
				}
				out = append(out, Move{From: from, To: to, Captured: v.Captured})
			}
		}
	}
	return out
}
