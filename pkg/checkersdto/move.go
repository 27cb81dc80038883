package checkersdto

import "time"

type MoveRequest struct {
	FromRow int `json:"fromRow"`
	FromCol int `json:"fromCol"`
	ToRow   int `json:"toRow"`
	ToCol   int `json:"toCol"`
}

type MoveEntry struct {
	Seq        int       `json:"seq"`
	PlayerID   int64     `json:"playerId"`
	From       Square    `json:"from"`
	To         Square    `json:"to"`
	Captured   bool      `json:"captured"`
	CapturedAt *Square   `json:"capturedAt,omitempty"`
	Promoted   bool      `json:"promoted,omitempty"`
	At         time.Time `json:"at"`
}

type MoveResponse struct {
	Result
	*GameState
	Captured *Square    `json:"captured,omitempty"`
	Promoted bool       `json:"promoted,omitempty"`
	Reply    *MoveEntry `json:"reply,omitempty"`
}

type MovesResponse struct {
	Result
	Moves []MoveEntry `json:"moves"`
}

type LegalMove struct {
	From     Square  `json:"from"`
	To       Square  `json:"to"`
	Captured *Square `json:"captured,omitempty"`
}

type LegalMovesResponse struct {
	Result
	Moves []LegalMove `json:"moves"`
}
