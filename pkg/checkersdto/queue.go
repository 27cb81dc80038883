package checkersdto

type QueueResponse struct {
	Result
	Matched     bool   `json:"matched"`
	GameID      string `json:"gameId,omitempty"`
	WaitSeconds int64  `json:"waitSeconds,omitempty"`
	TimedOut    bool   `json:"timedOut,omitempty"`
}
