package checkersdto

import "time"

type HistoryEntry struct {
	GameID     string    `json:"gameId"`
	Player1ID  int64     `json:"player1Id"`
	Player2ID  int64     `json:"player2Id"`
	WinnerID   int64     `json:"winnerId"`
	Method     string    `json:"method"`
	MoveCount  int       `json:"moveCount"`
	Transcript string    `json:"transcript"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	DurationMs int64     `json:"durationMs"`
}

type HistoryResponse struct {
	Result
	Games []HistoryEntry `json:"games"`
}
