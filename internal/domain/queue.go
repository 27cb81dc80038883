package domain

import "time"

// QueueState is the lifecycle of a matchmaking entry.
type QueueState string

const (
	QueueWaiting   QueueState = "WAITING"
	QueueMatched   QueueState = "MATCHED"
	QueueCancelled QueueState = "CANCELLED"
)

// Cancel reasons.
const (
	CancelLeft    = "left"
	CancelTimeout = "timeout"
)

// QueueEntry records one user's intent to be paired.
type QueueEntry struct {
	UserID       int64      `json:"user_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	Seq          int64      `json:"seq"`
	State        QueueState `json:"state"`
	GameID       string     `json:"game_id,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (e *QueueEntry) Active() bool { return e != nil && e.State == QueueWaiting }

// Pending reports whether the entry still owes its user an outcome: either
// waiting, or matched with a game id not yet read through check.
func (e *QueueEntry) Pending() bool {
	return e != nil && (e.State == QueueWaiting || e.State == QueueMatched)
}

// Less orders entries FIFO: earliest JoinedAt first, insertion order on ties.
func (e QueueEntry) Less(o QueueEntry) bool {
	if !e.JoinedAt.Equal(o.JoinedAt) {
		return e.JoinedAt.Before(o.JoinedAt)
	}
	return e.Seq < o.Seq
}
