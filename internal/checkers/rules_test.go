package checkers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustBoard(t *testing.T, rows ...string) Board {
	t.Helper()
	require.Len(t, rows, Size)
	s := ""
	for i, r := range rows {
		if i > 0 {
			s += "/"
		}
		s += r
	}
	b, err := ParseBoard(s)
	require.NoError(t, err)
	return b
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var re *RuleError
	require.True(t, errors.As(err, &re), "expected RuleError, got %v", err)
	require.Equal(t, want, re.Reason)
}

func TestInitialBoardLayout(t *testing.T) {
	b := InitialBoard()
	require.Equal(t, 12, b.Count(Player1))
	require.Equal(t, 12, b.Count(Player2))
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			pc, ok, err := b.PieceAt(Pos(r, c))
			require.NoError(t, err)
			if !ok {
				continue
			}
			require.True(t, Pos(r, c).Dark(), "piece on light square %v", Pos(r, c))
			require.Equal(t, Pawn, pc.Rank)
			if r <= 2 {
				require.Equal(t, Player1, pc.Owner)
			} else {
				require.Equal(t, Player2, pc.Owner)
			}
		}
	}
}

func TestBoardAccessorsRejectOutOfRange(t *testing.T) {
	b := InitialBoard()
	_, _, err := b.PieceAt(Pos(8, 1))
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.WithPieceMoved(Pos(2, 1), Pos(-1, 0))
	require.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.WithPieceRemoved(Pos(0, 9))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestWithMethodsDoNotMutateReceiver(t *testing.T) {
	b := InitialBoard()
	moved, err := b.WithPieceMoved(Pos(2, 1), Pos(3, 2))
	require.NoError(t, err)
	_, ok, _ := b.PieceAt(Pos(2, 1))
	require.True(t, ok)
	_, ok, _ = moved.PieceAt(Pos(2, 1))
	require.False(t, ok)

	removed, err := b.WithPieceRemoved(Pos(5, 0))
	require.NoError(t, err)
	require.Equal(t, 12, b.Count(Player2))
	require.Equal(t, 11, removed.Count(Player2))
}

func TestBoardTextRoundTrip(t *testing.T) {
	b := InitialBoard()
	parsed, err := ParseBoard(b.String())
	require.NoError(t, err)
	require.Equal(t, b, parsed)

	_, err = ParseBoard("x......./......../......../......../......../......../......../........")
	require.Error(t, err, "light square must be rejected")
}

func TestValidateMoveRejections(t *testing.T) {
	b := mustBoard(t,
		".x.x....",
		"........",
		".....o..",
		"....x...",
		"........",
		"..X.....",
		".o......",
		"........",
	)
	cases := []struct {
		name     string
		from, to Position
		mover    Player
		want     Reason
	}{
		{"out of bounds", Pos(0, 1), Pos(-1, 0), Player1, ReasonOutOfBounds},
		{"destination occupied", Pos(6, 1), Pos(5, 2), Player2, ReasonDestinationOccupied},
		{"empty source", Pos(4, 3), Pos(5, 4), Player1, ReasonNotOwner},
		{"opponent piece", Pos(2, 5), Pos(3, 6), Player1, ReasonNotOwner},
		{"not diagonal", Pos(0, 1), Pos(2, 1), Player1, ReasonNotDiagonal},
		{"pawn backwards", Pos(3, 4), Pos(2, 3), Player1, ReasonWrongDirection},
		{"pawn three steps", Pos(0, 3), Pos(3, 6), Player1, ReasonInvalidDistance},
		{"pawn jump over nothing", Pos(0, 3), Pos(2, 1), Player1, ReasonNoPieceToCapture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateMove(b, tc.from, tc.to, tc.mover)
			requireReason(t, err, tc.want)
		})
	}
}

func TestPawnForwardStepAccepted(t *testing.T) {
	b := InitialBoard()
	v, err := ValidateMove(b, Pos(2, 1), Pos(3, 2), Player1)
	require.NoError(t, err)
	require.False(t, v.IsCapture())

	v, err = ValidateMove(b, Pos(5, 2), Pos(4, 3), Player2)
	require.NoError(t, err)
	require.False(t, v.IsCapture())
}

func TestKingSlidesAndCaptures(t *testing.T) {
	b := mustBoard(t,
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"X.......",
	)
	// clear diagonal: any distance
	v, err := ValidateMove(b, Pos(7, 0), Pos(2, 5), Player1)
	require.NoError(t, err)
	require.Nil(t, v.Captured)

	withOpp, err := b.WithPiece(Pos(4, 3), Piece{Owner: Player2})
	require.NoError(t, err)
	v, err = ValidateMove(withOpp, Pos(7, 0), Pos(1, 6), Player1)
	require.NoError(t, err)
	require.NotNil(t, v.Captured)
	require.Equal(t, Pos(4, 3), *v.Captured)

	two, err := withOpp.WithPiece(Pos(2, 5), Piece{Owner: Player2})
	require.NoError(t, err)
	_, err = ValidateMove(two, Pos(7, 0), Pos(0, 7), Player1)
	requireReason(t, err, ReasonTooManyPiecesOnPath)

	own, err := b.WithPiece(Pos(5, 2), Piece{Owner: Player1})
	require.NoError(t, err)
	_, err = ValidateMove(own, Pos(7, 0), Pos(3, 4), Player1)
	requireReason(t, err, ReasonBlockedByOwnPiece)
}

func TestKingMovesBackward(t *testing.T) {
	b := mustBoard(t,
		"........",
		"........",
		"........",
		"....O...",
		"........",
		"........",
		"........",
		"........",
	)
	_, err := ValidateMove(b, Pos(3, 4), Pos(5, 6), Player2)
	require.NoError(t, err)
	_, err = ValidateMove(b, Pos(3, 4), Pos(1, 2), Player2)
	require.NoError(t, err)
}

func TestApplyMoveCapturesAndPromotes(t *testing.T) {
	b2 := mustBoard(t,
		"........",
		"..x.....",
		".o......",
		"........",
		"........",
		"........",
		"........",
		"........",
	)
	v, err := ValidateMove(b2, Pos(2, 1), Pos(0, 3), Player2)
	require.NoError(t, err)
	next, err := ApplyMove(b2, Pos(2, 1), Pos(0, 3), v.Captured)
	require.NoError(t, err)
	require.Equal(t, 0, next.Count(Player1))
	pc, ok, _ := next.PieceAt(Pos(0, 3))
	require.True(t, ok)
	require.Equal(t, Piece{Owner: Player2, Rank: King}, pc)
	_, ok, _ = next.PieceAt(Pos(2, 1))
	require.False(t, ok)
}

func TestPromotionIsIdempotent(t *testing.T) {
	b := mustBoard(t,
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"X.......",
	)
	next, err := ApplyMove(b, Pos(7, 0), Pos(6, 1), nil)
	require.NoError(t, err)
	next, err = ApplyMove(next, Pos(6, 1), Pos(7, 2), nil)
	require.NoError(t, err)
	pc, ok, _ := next.PieceAt(Pos(7, 2))
	require.True(t, ok)
	require.Equal(t, King, pc.Rank)
	require.Equal(t, Player1, pc.Owner)
}

func TestTerminalDetection(t *testing.T) {
	require.False(t, IsTerminal(InitialBoard(), Player1))
	require.False(t, IsTerminal(InitialBoard(), Player2))

	noPieces := mustBoard(t,
		".x......",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
	)
	require.True(t, IsTerminal(noPieces, Player2))

	// player 2 pawn on (1,0) blocked by player 1 pawn at (0,1) with no jump square
	blocked := mustBoard(t,
		".x......",
		"o.......",
		"........",
		"........",
		"........",
		"........",
		"........",
		"........",
	)
	require.True(t, IsTerminal(blocked, Player2))
	require.False(t, IsTerminal(blocked, Player1))
}

func TestApplyThenTerminalIsDeterministic(t *testing.T) {
	b := InitialBoard()
	for i := 0; i < 3; i++ {
		v, err := ValidateMove(b, Pos(2, 3), Pos(3, 4), Player1)
		require.NoError(t, err)
		n1, err := ApplyMove(b, Pos(2, 3), Pos(3, 4), v.Captured)
		require.NoError(t, err)
		n2, err := ApplyMove(b, Pos(2, 3), Pos(3, 4), v.Captured)
		require.NoError(t, err)
		require.Equal(t, n1, n2)
		require.Equal(t, IsTerminal(n1, Player2), IsTerminal(n2, Player2))
	}
}

func TestNeverAcceptsLightOrOutsideLanding(t *testing.T) {
	boards := []Board{InitialBoard(), mustBoard(t,
		"........",
		"........",
		"........",
		"....X...",
		"........",
		"........",
		"........",
		"........",
	)}
	for _, b := range boards {
		for _, player := range []Player{Player1, Player2} {
			for _, from := range b.Positions(player) {
				for r := -2; r < Size+2; r++ {
					for c := -2; c < Size+2; c++ {
						to := Pos(r, c)
						if _, err := ValidateMove(b, from, to, player); err == nil {
							require.True(t, to.InBounds(), "accepted off-board %v", to)
							require.True(t, to.Dark(), "accepted light square %v", to)
						}
					}
				}
			}
		}
	}
}

func TestLegalMovesOpening(t *testing.T) {
	moves := LegalMoves(InitialBoard(), Player1)
	require.Len(t, moves, 7)
	for _, m := range moves {
		require.Equal(t, 2, m.From.Row)
		require.Equal(t, 3, m.To.Row)
		require.Nil(t, m.Captured)
	}
}

func TestOpeningScenario(t *testing.T) {
	b := InitialBoard()

	v, err := ValidateMove(b, Pos(2, 1), Pos(3, 2), Player1)
	require.NoError(t, err)
	require.Nil(t, v.Captured)
	b, err = ApplyMove(b, Pos(2, 1), Pos(3, 2), v.Captured)
	require.NoError(t, err)

	_, err = ValidateMove(b, Pos(5, 0), Pos(3, 0), Player2)
	requireReason(t, err, ReasonNotDiagonal)

	v, err = ValidateMove(b, Pos(5, 2), Pos(4, 1), Player2)
	require.NoError(t, err)
	b, err = ApplyMove(b, Pos(5, 2), Pos(4, 1), v.Captured)
	require.NoError(t, err)

	_, err = ValidateMove(b, Pos(3, 2), Pos(5, 0), Player1)
	requireReason(t, err, ReasonDestinationOccupied)

	// (5,0) still holds its player 2 pawn; once vacated the jump lands
	b, err = b.WithPieceRemoved(Pos(5, 0))
	require.NoError(t, err)
	v, err = ValidateMove(b, Pos(3, 2), Pos(5, 0), Player1)
	require.NoError(t, err)
	require.NotNil(t, v.Captured)
	require.Equal(t, Pos(4, 1), *v.Captured)
}
