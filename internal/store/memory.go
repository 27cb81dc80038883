package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/checkers-server/internal/domain"
)

// Memory is an in-process store used when no Redis is configured and in
// tests. Games are serialised per id; the queue shares one lock.
type Memory struct {
	mu      sync.Mutex
	games   map[string]*domain.Game
	moves   map[string][]domain.MoveRecord
	locks   map[string]*gameLock
	byUser  map[int64][]string
	entries map[int64]*domain.QueueEntry
	seq     int64
}

func NewMemory() *Memory {
	return &Memory{
		games:   make(map[string]*domain.Game),
		moves:   make(map[string][]domain.MoveRecord),
		locks:   make(map[string]*gameLock),
		byUser:  make(map[int64][]string),
		entries: make(map[int64]*domain.QueueEntry),
	}
}

// gameLock serialises updates of one game. refs counts holders and waiters
// so the entry can be dropped once nobody uses it.
type gameLock struct {
	sync.Mutex
	refs int
}

func (m *Memory) lockGame(id string) *gameLock {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &gameLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()
	l.Lock()
	return l
}

func (m *Memory) unlockGame(id string, l *gameLock) {
	l.Unlock()
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, id)
	}
	m.mu.Unlock()
}

// putGameLocked requires m.mu held.
func (m *Memory) putGameLocked(g *domain.Game) error {
	if _, exists := m.games[g.ID]; exists {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	m.games[g.ID] = g.Clone()
	for _, uid := range []int64{g.Player1ID, g.Player2ID} {
		if uid != domain.BotID {
			m.byUser[uid] = append(m.byUser[uid], g.ID)
		}
	}
	return nil
}

func (m *Memory) CreateGame(ctx context.Context, g *domain.Game) error {
	if g == nil || strings.TrimSpace(g.ID) == "" {
		return domain.ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putGameLocked(g)
}

func (m *Memory) LoadGame(ctx context.Context, id string) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) UpdateGame(ctx context.Context, id string, fn func(g *domain.Game) ([]domain.MoveRecord, error)) (*domain.Game, error) {
	l := m.lockGame(id)
	defer m.unlockGame(id, l)

	cur, err := m.LoadGame(ctx, id)
	if err != nil {
		return nil, err
	}
	recs, err := fn(cur)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.games[id] = cur.Clone()
	m.moves[id] = append(m.moves[id], recs...)
	m.mu.Unlock()
	return cur, nil
}

func (m *Memory) Moves(ctx context.Context, id string) ([]domain.MoveRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MoveRecord(nil), m.moves[id]...), nil
}

func (m *Memory) GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]*domain.Game, 0, len(m.byUser[userID]))
	for _, id := range m.byUser[userID] {
		if g, ok := m.games[id]; ok {
			list = append(list, g.Clone())
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (m *Memory) Join(ctx context.Context, userID int64, now time.Time) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[userID].Pending() {
		return nil, domain.ErrAlreadyQueued
	}
	m.seq++
	e := &domain.QueueEntry{UserID: userID, JoinedAt: now, Seq: m.seq, State: domain.QueueWaiting, UpdatedAt: now}
	m.entries[userID] = e
	cp := *e
	return &cp, nil
}

func (m *Memory) Cancel(ctx context.Context, userID int64, reason string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[userID]
	if !e.Active() {
		return false, nil
	}
	e.State = domain.QueueCancelled
	e.CancelReason = reason
	e.UpdatedAt = now
	return true, nil
}

func (m *Memory) Entry(ctx context.Context, userID int64) (*domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ClearEntry(ctx context.Context, userID int64, state domain.QueueState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok && e.State == state {
		delete(m.entries, userID)
	}
	return nil
}

func (m *Memory) Waiting(ctx context.Context) ([]domain.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QueueEntry
	for _, e := range m.entries {
		if e.Active() {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (m *Memory) Pair(ctx context.Context, a, b int64, build func(a, b domain.QueueEntry) (*domain.Game, error)) (*domain.Game, error) {
	if a == b {
		return nil, domain.ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ea, eb := m.entries[a], m.entries[b]
	if !ea.Active() || !eb.Active() {
		return nil, domain.ErrStaleEntries
	}
	g, err := build(*ea, *eb)
	if err != nil {
		return nil, err
	}
	if err := m.putGameLocked(g); err != nil {
		return nil, err
	}
	for _, e := range []*domain.QueueEntry{ea, eb} {
		e.State = domain.QueueMatched
		e.GameID = g.ID
		e.UpdatedAt = g.CreatedAt
	}
	return g.Clone(), nil
}
