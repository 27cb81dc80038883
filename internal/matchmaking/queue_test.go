package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/checkers-server/internal/domain"
	"github.com/park285/checkers-server/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

type backend interface {
	Store
	LoadGame(ctx context.Context, id string) (*domain.Game, error)
}

func eachBackend(t *testing.T, fn func(t *testing.T, s backend)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemory()) })
	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis: %v", err)
		}
		t.Cleanup(mr.Close)
		rs, err := store.OpenRedis(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour)
		if err != nil {
			t.Fatalf("OpenRedis: %v", err)
		}
		t.Cleanup(func() { _ = rs.Close() })
		fn(t, rs)
	})
}

func newTestQueue(s Store, clock *fakeClock, swap bool) *Queue {
	var mu sync.Mutex
	n := 0
	return NewQueue(s,
		WithTimeout(time.Minute),
		WithClock(clock.Now),
		WithIDs(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("game-%d", n)
		}),
		WithSeatPicker(func() bool { return swap }),
	)
}

func TestCheckPairsTwoWaitingUsers(t *testing.T) {
	eachBackend(t, func(t *testing.T, s backend) {
		ctx := context.Background()
		clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		q := newTestQueue(s, clock, false)

		if _, err := q.Join(ctx, 100); err != nil {
			t.Fatalf("join A: %v", err)
		}
		res, err := q.Check(ctx, 100)
		if err != nil || res.Status != StatusWaiting {
			t.Fatalf("A alone should wait: %+v %v", res, err)
		}
		clock.Advance(5 * time.Second)
		if _, err := q.Join(ctx, 200); err != nil {
			t.Fatalf("join B: %v", err)
		}

		ra, err := q.Check(ctx, 100)
		if err != nil || !ra.Matched() || ra.GameID == "" {
			t.Fatalf("A should be matched: %+v %v", ra, err)
		}
		rb, err := q.Check(ctx, 200)
		if err != nil || !rb.Matched() {
			t.Fatalf("B should be matched: %+v %v", rb, err)
		}
		if ra.GameID != rb.GameID {
			t.Fatalf("game ids differ: %q vs %q", ra.GameID, rb.GameID)
		}
		g, err := s.LoadGame(ctx, ra.GameID)
		if err != nil {
			t.Fatalf("LoadGame: %v", err)
		}
		if g.Player1ID != 100 || g.Player2ID != 200 || g.Status != domain.StatusInProgress {
			t.Fatalf("unexpected game: %+v", g)
		}

		if _, err := q.Check(ctx, 100); !errors.Is(err, domain.ErrNotQueued) {
			t.Fatalf("consumed match should clear the entry, got %v", err)
		}
	})
}

func TestSeatSwap(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := newTestQueue(s, clock, true)
	_, _ = q.Join(ctx, 1)
	_, _ = q.Join(ctx, 2)
	res, err := q.Check(ctx, 2)
	if err != nil || !res.Matched() {
		t.Fatalf("Check: %+v %v", res, err)
	}
	g, _ := s.LoadGame(ctx, res.GameID)
	if g.Player1ID != 2 || g.Player2ID != 1 {
		t.Fatalf("expected swapped seats: %+v", g)
	}
}

func TestJoinTwiceAndLeave(t *testing.T) {
	eachBackend(t, func(t *testing.T, s backend) {
		ctx := context.Background()
		clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		q := newTestQueue(s, clock, false)

		if err := q.Leave(ctx, 1); err != nil {
			t.Fatalf("leave without entry should succeed: %v", err)
		}
		if _, err := q.Join(ctx, 0); !errors.Is(err, domain.ErrInvalidArgs) {
			t.Fatalf("expected ErrInvalidArgs, got %v", err)
		}
		if _, err := q.Join(ctx, 1); err != nil {
			t.Fatalf("Join: %v", err)
		}
		if _, err := q.Join(ctx, 1); !errors.Is(err, domain.ErrAlreadyQueued) {
			t.Fatalf("expected ErrAlreadyQueued, got %v", err)
		}
		if err := q.Leave(ctx, 1); err != nil {
			t.Fatalf("Leave: %v", err)
		}
		if _, err := q.Check(ctx, 1); !errors.Is(err, domain.ErrNotQueued) {
			t.Fatalf("expected ErrNotQueued after leave, got %v", err)
		}
		if _, err := q.Join(ctx, 1); err != nil {
			t.Fatalf("rejoin: %v", err)
		}

		// A match the user has not read yet survives a repeated join.
		if _, err := q.Join(ctx, 2); err != nil {
			t.Fatalf("Join 2: %v", err)
		}
		sw, err := q.Sweep(ctx)
		if err != nil || len(sw.Games) != 1 {
			t.Fatalf("Sweep: %+v %v", sw, err)
		}
		if _, err := q.Join(ctx, 1); !errors.Is(err, domain.ErrAlreadyQueued) {
			t.Fatalf("join over an unread match: got %v", err)
		}
		res, err := q.Check(ctx, 1)
		if err != nil || !res.Matched() || res.GameID != sw.Games[0] {
			t.Fatalf("check after refused join: %+v %v", res, err)
		}
		if _, err := q.Join(ctx, 1); err != nil {
			t.Fatalf("join once the match was read: %v", err)
		}
	})
}

func TestLonelyUserTimesOut(t *testing.T) {
	eachBackend(t, func(t *testing.T, s backend) {
		ctx := context.Background()
		clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		q := newTestQueue(s, clock, false)
		if _, err := q.Join(ctx, 1); err != nil {
			t.Fatalf("Join: %v", err)
		}
		var last CheckResult
		for i := 0; i < 10; i++ {
			res, err := q.Check(ctx, 1)
			if err != nil {
				t.Fatalf("Check #%d: %v", i, err)
			}
			last = res
			if res.TimedOut() {
				break
			}
			if res.Status != StatusWaiting {
				t.Fatalf("unexpected status: %+v", res)
			}
			clock.Advance(10 * time.Second)
		}
		if !last.TimedOut() || last.Wait < time.Minute {
			t.Fatalf("expected timeout outcome, got %+v", last)
		}
		if _, err := q.Check(ctx, 1); !errors.Is(err, domain.ErrNotQueued) {
			t.Fatalf("timed out user should be removed, got %v", err)
		}
		if w, _ := s.Waiting(ctx); len(w) != 0 {
			t.Fatalf("queue should be empty: %+v", w)
		}
	})
}

func TestSweepExpiresAndPairsFIFO(t *testing.T) {
	eachBackend(t, func(t *testing.T, s backend) {
		ctx := context.Background()
		clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		q := newTestQueue(s, clock, false)

		_, _ = q.Join(ctx, 1)
		clock.Advance(50 * time.Second)
		for _, uid := range []int64{2, 3, 4, 5} {
			_, _ = q.Join(ctx, uid)
			clock.Advance(time.Second)
		}
		clock.Advance(10 * time.Second) // user 1 is now past the timeout

		res, err := q.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if len(res.TimedOut) != 1 || res.TimedOut[0] != 1 {
			t.Fatalf("expected user 1 timed out: %+v", res)
		}
		if len(res.Games) != 2 {
			t.Fatalf("expected two games: %+v", res)
		}
		g1, _ := s.LoadGame(ctx, res.Games[0])
		g2, _ := s.LoadGame(ctx, res.Games[1])
		if g1.Player1ID != 2 || g1.Player2ID != 3 || g2.Player1ID != 4 || g2.Player2ID != 5 {
			t.Fatalf("pairs not FIFO: %+v %+v", g1, g2)
		}

		r1, err := q.Check(ctx, 1)
		if err != nil || !r1.TimedOut() {
			t.Fatalf("swept user should see a timeout: %+v %v", r1, err)
		}
		r4, err := q.Check(ctx, 4)
		if err != nil || r4.GameID != res.Games[1] {
			t.Fatalf("user 4 should see its game: %+v %v", r4, err)
		}
	})
}

func TestConcurrentChecksNeverHalfPair(t *testing.T) {
	eachBackend(t, func(t *testing.T, s backend) {
		ctx := context.Background()
		clock := &fakeClock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		q := newTestQueue(s, clock, false)
		const n = 6
		for uid := int64(1); uid <= n; uid++ {
			if _, err := q.Join(ctx, uid); err != nil {
				t.Fatalf("Join %d: %v", uid, err)
			}
		}

		var mu sync.Mutex
		told := map[string][]int64{}
		var wg sync.WaitGroup
		for uid := int64(1); uid <= n; uid++ {
			wg.Add(1)
			go func(uid int64) {
				defer wg.Done()
				res, err := q.Check(ctx, uid)
				if err != nil && !errors.Is(err, domain.ErrTryAgain) {
					t.Errorf("Check %d: %v", uid, err)
					return
				}
				if res.Matched() {
					mu.Lock()
					told[res.GameID] = append(told[res.GameID], uid)
					mu.Unlock()
				}
			}(uid)
		}
		wg.Wait()
		sw, err := q.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}

		// Every user learns its game either from its own check or from the
		// entry still pending for it.
		for uid := int64(1); uid <= n; uid++ {
			e, err := s.Entry(ctx, uid)
			if err != nil {
				t.Fatalf("Entry %d: %v", uid, err)
			}
			if e != nil && e.State == domain.QueueMatched {
				told[e.GameID] = append(told[e.GameID], uid)
			}
		}

		seen := map[int64]string{}
		for id, users := range told {
			g, err := s.LoadGame(ctx, id)
			if err != nil {
				t.Fatalf("reported game %s missing: %v", id, err)
			}
			if len(users) != 2 {
				t.Fatalf("game %s reported to %v, want exactly its two players", id, users)
			}
			for _, uid := range users {
				if uid != g.Player1ID && uid != g.Player2ID {
					t.Fatalf("user %d told about game %s it does not play in", uid, id)
				}
				if prev, dup := seen[uid]; dup {
					t.Fatalf("user %d paired twice: %s and %s", uid, prev, id)
				}
				seen[uid] = id
			}
		}
		for _, id := range sw.Games {
			if _, ok := told[id]; !ok {
				t.Fatalf("swept game %s reaches nobody", id)
			}
		}
		if len(seen) != n {
			t.Fatalf("expected all %d users paired, got %v", n, seen)
		}
	})
}
