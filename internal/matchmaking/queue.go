package matchmaking

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/checkers-server/internal/domain"
	"github.com/park285/checkers-server/internal/obslog"
)

// Store is the persistence port for queue entries. Pair must commit both
// entry transitions and the new game together or not at all.
type Store interface {
	Join(ctx context.Context, userID int64, now time.Time) (*domain.QueueEntry, error)
	Cancel(ctx context.Context, userID int64, reason string, now time.Time) (bool, error)
	Entry(ctx context.Context, userID int64) (*domain.QueueEntry, error)
	ClearEntry(ctx context.Context, userID int64, state domain.QueueState) error
	Waiting(ctx context.Context) ([]domain.QueueEntry, error)
	Pair(ctx context.Context, a, b int64, build func(a, b domain.QueueEntry) (*domain.Game, error)) (*domain.Game, error)
}

const DefaultTimeout = 2 * time.Minute

type Queue struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	swap    func() bool
}

type Option func(*Queue)

func WithTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

func WithIDs(newID func() string) Option { return func(q *Queue) { q.newID = newID } }

// WithSeatPicker overrides the coin flip deciding whether the older entry
// takes the second seat.
func WithSeatPicker(swap func() bool) Option { return func(q *Queue) { q.swap = swap } }

func NewQueue(s Store, opts ...Option) *Queue {
	q := &Queue{
		store:   s,
		timeout: DefaultTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		swap:    coinFlip,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err == nil && n.Int64() == 1
}

// Status is the caller-facing state reported by Check.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusMatched  Status = "matched"
	StatusTimedOut Status = "timed_out"
)

type CheckResult struct {
	Status Status
	GameID string
	Wait   time.Duration
}

func (r CheckResult) Matched() bool { return r.Status == StatusMatched }

func (r CheckResult) TimedOut() bool { return r.Status == StatusTimedOut }

func (q *Queue) Join(ctx context.Context, userID int64) (*domain.QueueEntry, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgs
	}
	e, err := domain.RetryOnce(func() (*domain.QueueEntry, error) {
		return q.store.Join(ctx, userID, q.now())
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("queue_join", zap.Int64("user_id", userID), zap.Int64("seq", e.Seq))
	return e, nil
}

// Leave cancels the caller's waiting entry. Leaving without one succeeds.
func (q *Queue) Leave(ctx context.Context, userID int64) error {
	left, err := domain.RetryOnce(func() (bool, error) {
		return q.store.Cancel(ctx, userID, domain.CancelLeft, q.now())
	})
	if err != nil {
		return err
	}
	if left {
		obslog.L().Info("queue_leave", zap.Int64("user_id", userID))
	}
	return nil
}

// Check reports the caller's queue state. A waiting caller is first expired
// if over the timeout, then paired with the oldest other waiting user.
func (q *Queue) Check(ctx context.Context, userID int64) (CheckResult, error) {
	e, err := q.store.Entry(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	if e == nil {
		return CheckResult{}, domain.ErrNotQueued
	}
	switch e.State {
	case domain.QueueMatched:
		return q.consumeMatch(ctx, e)
	case domain.QueueCancelled:
		if err := q.store.ClearEntry(ctx, userID, domain.QueueCancelled); err != nil {
			return CheckResult{}, err
		}
		if e.CancelReason == domain.CancelTimeout {
			return CheckResult{Status: StatusTimedOut, Wait: e.UpdatedAt.Sub(e.JoinedAt)}, nil
		}
		return CheckResult{}, domain.ErrNotQueued
	}

	now := q.now()
	if q.expired(*e, now) {
		if _, err := q.expire(ctx, *e, now); err != nil {
			return CheckResult{}, err
		}
		if err := q.store.ClearEntry(ctx, userID, domain.QueueCancelled); err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Status: StatusTimedOut, Wait: now.Sub(e.JoinedAt)}, nil
	}

	gameID, err := q.pairFor(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	if gameID != "" {
		cur, err := q.store.Entry(ctx, userID)
		if err != nil {
			return CheckResult{}, err
		}
		if cur != nil && cur.State == domain.QueueMatched {
			return q.consumeMatch(ctx, cur)
		}
	}
	return CheckResult{Status: StatusWaiting, Wait: now.Sub(e.JoinedAt)}, nil
}

func (q *Queue) consumeMatch(ctx context.Context, e *domain.QueueEntry) (CheckResult, error) {
	if err := q.store.ClearEntry(ctx, e.UserID, domain.QueueMatched); err != nil {
		return CheckResult{}, err
	}
	return CheckResult{Status: StatusMatched, GameID: e.GameID, Wait: e.UpdatedAt.Sub(e.JoinedAt)}, nil
}

func (q *Queue) expired(e domain.QueueEntry, now time.Time) bool {
	return now.Sub(e.JoinedAt) >= q.timeout
}

func (q *Queue) expire(ctx context.Context, e domain.QueueEntry, now time.Time) (bool, error) {
	ok, err := domain.RetryOnce(func() (bool, error) {
		return q.store.Cancel(ctx, e.UserID, domain.CancelTimeout, now)
	})
	if err != nil {
		return false, err
	}
	if ok {
		obslog.L().Info("queue_timeout",
			zap.Int64("user_id", e.UserID),
			zap.Duration("waited", now.Sub(e.JoinedAt)),
		)
	}
	return ok, nil
}

// fresh returns waiting entries in FIFO order after expiring stale ones.
func (q *Queue) fresh(ctx context.Context, timedOut *[]int64) ([]domain.QueueEntry, error) {
	waiting, err := q.store.Waiting(ctx)
	if err != nil {
		return nil, err
	}
	now := q.now()
	out := waiting[:0]
	for _, e := range waiting {
		if q.expired(e, now) {
			ok, err := q.expire(ctx, e, now)
			if err != nil {
				return nil, err
			}
			if ok && timedOut != nil {
				*timedOut = append(*timedOut, e.UserID)
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// pairFor pairs userID with the oldest other waiting entry. It returns the
// game id the caller ended up in, or "" when nobody was available.
func (q *Queue) pairFor(ctx context.Context, userID int64) (string, error) {
	waiting, err := q.fresh(ctx, nil)
	if err != nil {
		return "", err
	}
	var self *domain.QueueEntry
	for i := range waiting {
		if waiting[i].UserID == userID {
			self = &waiting[i]
			break
		}
	}
	if self == nil {
		return "", nil
	}
	for _, other := range waiting {
		if other.UserID == userID {
			continue
		}
		a, b := *self, other
		if b.Less(a) {
			a, b = b, a
		}
		g, err := q.pair(ctx, a.UserID, b.UserID)
		if errors.Is(err, domain.ErrStaleEntries) {
			cur, err := q.store.Entry(ctx, userID)
			if err != nil {
				return "", err
			}
			if !cur.Active() {
				if cur != nil && cur.State == domain.QueueMatched {
					return cur.GameID, nil
				}
				return "", nil
			}
			continue
		}
		if err != nil {
			return "", err
		}
		return g.ID, nil
	}
	return "", nil
}

func (q *Queue) pair(ctx context.Context, a, b int64) (*domain.Game, error) {
	g, err := domain.RetryOnce(func() (*domain.Game, error) {
		return q.store.Pair(ctx, a, b, q.build)
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("queue_pair",
		zap.String("game_id", g.ID),
		zap.Int64("player1_id", g.Player1ID),
		zap.Int64("player2_id", g.Player2ID),
	)
	return g, nil
}

// build seats the two entries, flipping a coin for who moves first.
func (q *Queue) build(a, b domain.QueueEntry) (*domain.Game, error) {
	p1, p2 := a.UserID, b.UserID
	if q.swap() {
		p1, p2 = p2, p1
	}
	return domain.NewGame(q.newID(), p1, p2, q.now()), nil
}

// SweepResult summarises one sweep pass.
type SweepResult struct {
	TimedOut []int64
	Games    []string
}

// Sweep expires stale entries and pairs the oldest waiting entries until
// fewer than two remain.
func (q *Queue) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	waiting, err := q.fresh(ctx, &res.TimedOut)
	if err != nil {
		return res, err
	}
	for attempts := len(waiting); len(waiting) >= 2 && attempts > 0; attempts-- {
		g, err := q.pair(ctx, waiting[0].UserID, waiting[1].UserID)
		switch {
		case errors.Is(err, domain.ErrStaleEntries), errors.Is(err, domain.ErrTryAgain):
		case err != nil:
			return res, err
		default:
			res.Games = append(res.Games, g.ID)
		}
		if waiting, err = q.fresh(ctx, &res.TimedOut); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Run sweeps every interval until ctx is done.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := q.Sweep(ctx)
			if err != nil {
				obslog.L().Warn("queue_sweep_failed", zap.Error(err))
				continue
			}
			if len(res.Games) > 0 || len(res.TimedOut) > 0 {
				obslog.L().Info("queue_sweep", zap.Int("paired", len(res.Games)), zap.Int("timed_out", len(res.TimedOut)))
			}
		}
	}
}
