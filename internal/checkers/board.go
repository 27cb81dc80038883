package checkers

import (
	"errors"
	"fmt"
	"strings"
)

// Size is the number of rows and columns on the board.
const Size = 8

// ErrOutOfRange reports a position argument outside 0..7. It is a caller bug,
// never a rule violation.
var ErrOutOfRange = errors.New("position out of range")

// Player identifies a seat at the board.
type Player uint8

const (
	NoPlayer Player = 0
	Player1  Player = 1
	Player2  Player = 2
)

// Opponent returns the other seat.
func (p Player) Opponent() Player {
	switch p {
	case Player1:
		return Player2
	case Player2:
		return Player1
	default:
		return NoPlayer
	}
}

// Forward is the row delta sign a pawn of this player moves along.
func (p Player) Forward() int {
	if p == Player2 {
		return -1
	}
	return 1
}

// PromotionRow is the farthest row for the player.
func (p Player) PromotionRow() int {
	if p == Player2 {
		return 0
	}
	return Size - 1
}

func (p Player) Valid() bool { return p == Player1 || p == Player2 }

type Rank uint8

const (
	Pawn Rank = iota
	King
)

func (r Rank) String() string {
	if r == King {
		return "king"
	}
	return "pawn"
}

type Piece struct {
	Owner Player
	Rank  Rank
}

// Position addresses a cell; only dark cells ((Row+Col) odd) are playable.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

func (p Position) Dark() bool { return (p.Row+p.Col)%2 == 1 }

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }

func (p Position) index() int { return p.Row*Size + p.Col }

// Cell is either empty or holds exactly one piece.
type Cell struct {
	piece    Piece
	occupied bool
}

var EmptyCell = Cell{}

func Occupied(p Piece) Cell { return Cell{piece: p, occupied: true} }

// Piece returns the occupant, ok is false for an empty cell.
func (c Cell) Piece() (Piece, bool) { return c.piece, c.occupied }

func (c Cell) Empty() bool { return !c.occupied }

// Board is a value type; the With* methods return modified copies.
type Board struct {
	cells [Size * Size]Cell
}

func checkPos(p Position) error {
	if !p.InBounds() {
		return fmt.Errorf("%w: %s", ErrOutOfRange, p)
	}
	return nil
}

// PieceAt returns the piece on pos, if any.
func (b Board) PieceAt(pos Position) (Piece, bool, error) {
	if err := checkPos(pos); err != nil {
		return Piece{}, false, err
	}
	pc, ok := b.cells[pos.index()].Piece()
	return pc, ok, nil
}

func (b Board) cell(pos Position) Cell { return b.cells[pos.index()] }

// WithPieceMoved moves whatever occupies from onto to. An empty from yields an
// unchanged board.
func (b Board) WithPieceMoved(from, to Position) (Board, error) {
	if err := checkPos(from); err != nil {
		return b, err
	}
	if err := checkPos(to); err != nil {
		return b, err
	}
	c := b.cells[from.index()]
	if c.Empty() || from == to {
		return b, nil
	}
	b.cells[from.index()] = EmptyCell
	b.cells[to.index()] = c
	return b, nil
}

func (b Board) WithPieceRemoved(pos Position) (Board, error) {
	if err := checkPos(pos); err != nil {
		return b, err
	}
	b.cells[pos.index()] = EmptyCell
	return b, nil
}

// WithPiece places pc on a dark square.
func (b Board) WithPiece(pos Position, pc Piece) (Board, error) {
	if err := checkPos(pos); err != nil {
		return b, err
	}
	if !pos.Dark() {
		return b, fmt.Errorf("%w: %s is a light square", ErrOutOfRange, pos)
	}
	b.cells[pos.index()] = Occupied(pc)
	return b, nil
}

// InitialBoard seats player 1 on rows 0-2 and player 2 on rows 5-7.
func InitialBoard() Board {
	var b Board
	for row := 0; row < Size; row++ {
		var owner Player
		switch {
		case row <= 2:
			owner = Player1
		case row >= 5:
			owner = Player2
		default:
			continue
		}
		for col := 0; col < Size; col++ {
			p := Pos(row, col)
			if p.Dark() {
				b.cells[p.index()] = Occupied(Piece{Owner: owner, Rank: Pawn})
			}
		}
	}
	return b
}

// Count returns the number of pieces owned by player.
func (b Board) Count(player Player) int {
	n := 0
	for _, c := range b.cells {
		if pc, ok := c.Piece(); ok && pc.Owner == player {
			n++
		}
	}
	return n
}

// Positions lists squares occupied by player in row-major order.
func (b Board) Positions(player Player) []Position {
	var out []Position
	for i, c := range b.cells {
		if pc, ok := c.Piece(); ok && pc.Owner == player {
			out = append(out, Pos(i/Size, i%Size))
		}
	}
	return out
}

// Text encoding: 8 rows joined by '/', row 0 first.
// '.' empty, 'x'/'X' player 1 pawn/king, 'o'/'O' player 2 pawn/king.
func cellRune(c Cell) byte {
	pc, ok := c.Piece()
	if !ok {
		return '.'
	}
	switch {
	case pc.Owner == Player1 && pc.Rank == King:
		return 'X'
	case pc.Owner == Player1:
		return 'x'
	case pc.Owner == Player2 && pc.Rank == King:
		return 'O'
	default:
		return 'o'
	}
}

// Rows returns the text form one string per row.
func (b Board) Rows() []string {
	rows := make([]string, Size)
	for r := 0; r < Size; r++ {
		buf := make([]byte, Size)
		for c := 0; c < Size; c++ {
			buf[c] = cellRune(b.cells[r*Size+c])
		}
		rows[r] = string(buf)
	}
	return rows
}

func (b Board) String() string { return strings.Join(b.Rows(), "/") }

func (b Board) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Board) UnmarshalText(text []byte) error {
	parsed, err := ParseBoard(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBoard decodes the text form produced by String.
func ParseBoard(s string) (Board, error) {
	var b Board
	rows := strings.Split(strings.TrimSpace(s), "/")
	if len(rows) != Size {
		return b, fmt.Errorf("board: want %d rows, got %d", Size, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return b, fmt.Errorf("board: row %d has %d cells", r, len(row))
		}
		for c := 0; c < Size; c++ {
			var pc Piece
			switch row[c] {
			case '.':
				continue
			case 'x':
				pc = Piece{Owner: Player1, Rank: Pawn}
			case 'X':
				pc = Piece{Owner: Player1, Rank: King}
			case 'o':
				pc = Piece{Owner: Player2, Rank: Pawn}
			case 'O':
				pc = Piece{Owner: Player2, Rank: King}
			default:
				return b, fmt.Errorf("board: bad cell %q at %s", row[c], Pos(r, c))
			}
			if !Pos(r, c).Dark() {
				return b, fmt.Errorf("board: piece on light square %s", Pos(r, c))
			}
			b.cells[r*Size+c] = Occupied(pc)
		}
	}
	return b, nil
}
