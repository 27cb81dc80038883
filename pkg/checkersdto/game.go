package checkersdto

import "time"

type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type CreateGameRequest struct {
	Player2ID int64 `json:"player2Id"`
}

type CreateGameResponse struct {
	Result
	GameID string `json:"gameId,omitempty"`
}

// GameState is the public view of a game. Board holds eight rows, row 0
// first: '.' empty, x/X player 1 pawn/king, o/O player 2 pawn/king.
type GameState struct {
	GameID        string    `json:"gameId"`
	Player1ID     int64     `json:"player1Id"`
	Player2ID     int64     `json:"player2Id"`
	Board         []string  `json:"board"`
	CurrentPlayer int       `json:"currentPlayer"`
	Status        string    `json:"status"`
	WinnerID      *int64    `json:"winnerId,omitempty"`
	FinishMethod  string    `json:"finishMethod,omitempty"`
	MoveCount     int       `json:"moveCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type GameResponse struct {
	Result
	*GameState
}

type GameListResponse struct {
	Result
	Games []GameState `json:"games"`
}
