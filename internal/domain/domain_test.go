package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/park285/checkers-server/internal/checkers"
)

func TestReasonOf(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&checkers.RuleError{Reason: checkers.ReasonNotDiagonal}, string(checkers.ReasonNotDiagonal)},
		{fmt.Errorf("wrap: %w", checkers.ErrOutOfRange), string(checkers.ReasonOutOfBounds)},
		{fmt.Errorf("submit: %w", ErrNotYourTurn), ReasonNotYourTurn},
		{ErrGameAlreadyFinished, ReasonGameAlreadyFinished},
		{ErrNotParticipant, ReasonNotParticipant},
		{ErrAlreadyQueued, ReasonAlreadyQueued},
		{ErrNotQueued, ReasonNotQueued},
		{ErrInvalidArgs, ReasonInvalidArgs},
		{ErrGameNotFound, ReasonGameNotFound},
		{ErrConflict, ReasonTryAgain},
		{ErrTryAgain, ReasonTryAgain},
		{errors.New("dial tcp: refused"), ReasonInternal},
	}
	for _, tc := range cases {
		if got := ReasonOf(tc.err); got != tc.want {
			t.Fatalf("ReasonOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if Recoverable(errors.New("boom")) || Recoverable(nil) || !Recoverable(ErrNotQueued) {
		t.Fatalf("Recoverable misclassified")
	}
}

func TestRetryOnce(t *testing.T) {
	calls := 0
	v, err := RetryOnce(func() (int, error) {
		calls++
		if calls == 1 {
			return 0, ErrConflict
		}
		return 7, nil
	})
	if err != nil || v != 7 || calls != 2 {
		t.Fatalf("retry after one conflict: v=%d err=%v calls=%d", v, err, calls)
	}

	calls = 0
	_, err = RetryOnce(func() (int, error) {
		calls++
		return 1, ErrConflict
	})
	if !errors.Is(err, ErrTryAgain) || calls != 2 {
		t.Fatalf("two conflicts: err=%v calls=%d", err, calls)
	}

	calls = 0
	_, err = RetryOnce(func() (int, error) {
		calls++
		return 0, ErrNotYourTurn
	})
	if !errors.Is(err, ErrNotYourTurn) || calls != 1 {
		t.Fatalf("state errors are not retried: err=%v calls=%d", err, calls)
	}
}

func TestGameSeats(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewGame("g1", 10, 20, now)
	if g.CurrentPlayer != checkers.Player1 || g.Finished() || g.AgainstBot() {
		t.Fatalf("unexpected new game: %+v", g)
	}
	if g.SeatOf(10) != checkers.Player1 || g.SeatOf(20) != checkers.Player2 || g.SeatOf(30) != checkers.NoPlayer {
		t.Fatalf("SeatOf mismatch")
	}
	if g.PlayerID(checkers.Player2) != 20 || g.PlayerID(checkers.Player1) != 10 {
		t.Fatalf("PlayerID mismatch")
	}

	bot := NewGame("g2", 10, BotID, now)
	if !bot.AgainstBot() || bot.SeatOf(BotID) != checkers.NoPlayer {
		t.Fatalf("bot seat must not resolve through SeatOf")
	}

	cp := g.Clone()
	g.Finish(20, MethodResignation, now.Add(time.Minute))
	if cp.Finished() || cp.WinnerID != nil {
		t.Fatalf("clone shares state with original")
	}
	ev := FinishedEvent(g)
	if ev.WinnerID != 20 || ev.Method != MethodResignation || !ev.At.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestQueueEntryOrdering(t *testing.T) {
	t0 := time.Unix(100, 0)
	a := QueueEntry{UserID: 1, JoinedAt: t0, Seq: 2}
	b := QueueEntry{UserID: 2, JoinedAt: t0, Seq: 1}
	c := QueueEntry{UserID: 3, JoinedAt: t0.Add(-time.Second), Seq: 9}
	if !b.Less(a) || a.Less(b) {
		t.Fatalf("ties must break on seq")
	}
	if !c.Less(b) {
		t.Fatalf("earlier join must sort first")
	}
	var nilEntry *QueueEntry
	if nilEntry.Active() {
		t.Fatalf("nil entry is not active")
	}
	a.State = QueueWaiting
	if !a.Active() {
		t.Fatalf("waiting entry must be active")
	}
	a.State = QueueMatched
	if a.Active() || !a.Pending() {
		t.Fatalf("matched entry is pending but not active")
	}
	a.State = QueueCancelled
	if a.Pending() || nilEntry.Pending() {
		t.Fatalf("cancelled and nil entries are not pending")
	}
}
