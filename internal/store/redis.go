package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/checkers-server/internal/domain"
)

const defaultTTL = 24 * time.Hour

// Redis keeps games, move logs and the queue in Redis. Every
// read-validate-write runs under WATCH so concurrent writers fail instead of
// interleaving.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// OpenRedis dials redisURL and verifies the connection.
func OpenRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, ttl), nil
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func gameKey(id string) string       { return "ck:game:" + strings.TrimSpace(id) }
func movesKey(id string) string      { return gameKey(id) + ":moves" }
func idxUserKey(userID int64) string { return "ck:index:user:" + strconv.FormatInt(userID, 10) }
func entryKey(userID int64) string   { return "ck:queue:entry:" + strconv.FormatInt(userID, 10) }
func member(userID int64) string     { return strconv.FormatInt(userID, 10) }

const (
	waitingKey = "ck:queue:waiting"
	seqKey     = "ck:queue:seq"
)

// Games

func (s *Redis) stageGame(ctx context.Context, pipe redis.Pipeliner, g *domain.Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	pipe.Set(ctx, gameKey(g.ID), raw, s.ttl)
	for _, uid := range []int64{g.Player1ID, g.Player2ID} {
		if uid == domain.BotID {
			continue
		}
		pipe.SAdd(ctx, idxUserKey(uid), g.ID)
		pipe.Expire(ctx, idxUserKey(uid), s.ttl)
	}
	return nil
}

// CreateGame writes g only if no record exists under its id. The existence
// check and the write commit together, so readers never see a partial game.
func (s *Redis) CreateGame(ctx context.Context, g *domain.Game) error {
	if g == nil || strings.TrimSpace(g.ID) == "" {
		return domain.ErrInvalidArgs
	}
	key := gameKey(g.ID)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("game %s already exists", g.ID)
		}
		pipe := tx.TxPipeline()
		if err := s.stageGame(ctx, pipe, g); err != nil {
			return err
		}
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	return txErr(err)
}

func decodeGame(raw []byte) (*domain.Game, error) {
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &g, nil
}

func (s *Redis) LoadGame(ctx context.Context, id string) (*domain.Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeGame(raw)
}

// UpdateGame loads the game, lets fn mutate it and commits the new record
// together with the returned move records. Nothing is written when fn fails.
func (s *Redis) UpdateGame(ctx context.Context, id string, fn func(g *domain.Game) ([]domain.MoveRecord, error)) (*domain.Game, error) {
	key := gameKey(id)
	var out *domain.Game
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return domain.ErrGameNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decodeGame(raw)
		if err != nil {
			return err
		}
		recs, err := fn(cur)
		if err != nil {
			return err
		}
		newRaw, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("marshal game: %w", err)
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		if len(recs) > 0 {
			vals := make([]any, 0, len(recs))
			for i := range recs {
				b, err := json.Marshal(&recs[i])
				if err != nil {
					return fmt.Errorf("marshal move: %w", err)
				}
				vals = append(vals, b)
			}
			pipe.RPush(ctx, movesKey(id), vals...)
			pipe.Expire(ctx, movesKey(id), s.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = cur
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Redis) Moves(ctx context.Context, id string) ([]domain.MoveRecord, error) {
	raws, err := s.rdb.LRange(ctx, movesKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.MoveRecord, 0, len(raws))
	for _, r := range raws {
		var m domain.MoveRecord
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode move: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// GamesByUser returns the user's games, most recently updated first.
func (s *Redis) GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	ids, err := s.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*domain.Game
	for _, id := range ids {
		g, err := s.LoadGame(ctx, id)
		if errors.Is(err, domain.ErrGameNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

// Queue

func decodeEntry(raw []byte) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode queue entry: %w", err)
	}
	return &e, nil
}

func getEntry(ctx context.Context, c redis.Cmdable, userID int64) (*domain.QueueEntry, error) {
	raw, err := c.Get(ctx, entryKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntry(raw)
}

func (s *Redis) stageEntry(ctx context.Context, pipe redis.Pipeliner, e *domain.QueueEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	pipe.Set(ctx, entryKey(e.UserID), raw, s.ttl)
	return nil
}

func txErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrConflict
	}
	return err
}

func (s *Redis) Join(ctx context.Context, userID int64, now time.Time) (*domain.QueueEntry, error) {
	var out *domain.QueueEntry
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := getEntry(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cur.Pending() {
			return domain.ErrAlreadyQueued
		}
		seq, err := tx.Incr(ctx, seqKey).Result()
		if err != nil {
			return err
		}
		e := &domain.QueueEntry{UserID: userID, JoinedAt: now, Seq: seq, State: domain.QueueWaiting, UpdatedAt: now}
		pipe := tx.TxPipeline()
		if err := s.stageEntry(ctx, pipe, e); err != nil {
			return err
		}
		pipe.ZAdd(ctx, waitingKey, redis.Z{Score: float64(seq), Member: member(userID)})
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = e
		return nil
	}, entryKey(userID))
	if err != nil {
		return nil, txErr(err)
	}
	return out, nil
}

// Cancel moves a waiting entry to Cancelled with reason. It reports false
// when the user had no waiting entry.
func (s *Redis) Cancel(ctx context.Context, userID int64, reason string, now time.Time) (bool, error) {
	cancelled := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := getEntry(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !cur.Active() {
			return nil
		}
		cur.State = domain.QueueCancelled
		cur.CancelReason = reason
		cur.UpdatedAt = now
		pipe := tx.TxPipeline()
		if err := s.stageEntry(ctx, pipe, cur); err != nil {
			return err
		}
		pipe.ZRem(ctx, waitingKey, member(userID))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		cancelled = true
		return nil
	}, entryKey(userID))
	if err != nil {
		return false, txErr(err)
	}
	return cancelled, nil
}

func (s *Redis) Entry(ctx context.Context, userID int64) (*domain.QueueEntry, error) {
	return getEntry(ctx, s.rdb, userID)
}

// ClearEntry deletes the user's entry if it is still in state.
func (s *Redis) ClearEntry(ctx context.Context, userID int64, state domain.QueueState) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := getEntry(ctx, tx, userID)
		if err != nil || cur == nil || cur.State != state {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Del(ctx, entryKey(userID))
		_, err = pipe.Exec(ctx)
		return err
	}, entryKey(userID))
	return txErr(err)
}

// Waiting returns waiting entries in FIFO order. Members whose entry key
// has expired are dropped from the waiting set.
func (s *Redis) Waiting(ctx context.Context) ([]domain.QueueEntry, error) {
	members, err := s.rdb.ZRange(ctx, waitingKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.QueueEntry, 0, len(members))
	for _, m := range members {
		uid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			_ = s.rdb.ZRem(ctx, waitingKey, m).Err()
			continue
		}
		e, err := getEntry(ctx, s.rdb, uid)
		if err != nil {
			return nil, err
		}
		if e == nil {
			if err := s.pruneWaiting(ctx, uid); err != nil {
				return nil, err
			}
			continue
		}
		if !e.Active() {
			continue
		}
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// pruneWaiting removes userID from the waiting set while its entry key is
// still absent. A concurrent Join wins and keeps its member.
func (s *Redis) pruneWaiting(ctx context.Context, userID int64) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := getEntry(ctx, tx, userID)
		if err != nil || cur != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.ZRem(ctx, waitingKey, member(userID))
		_, err = pipe.Exec(ctx)
		return err
	}, entryKey(userID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Pair atomically marks both entries Matched and creates the game returned
// by build. Either everything commits or nothing does.
func (s *Redis) Pair(ctx context.Context, a, b int64, build func(a, b domain.QueueEntry) (*domain.Game, error)) (*domain.Game, error) {
	if a == b {
		return nil, domain.ErrInvalidArgs
	}
	var out *domain.Game
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		ea, err := getEntry(ctx, tx, a)
		if err != nil {
			return err
		}
		eb, err := getEntry(ctx, tx, b)
		if err != nil {
			return err
		}
		if !ea.Active() || !eb.Active() {
			return domain.ErrStaleEntries
		}
		g, err := build(*ea, *eb)
		if err != nil {
			return err
		}
		exists, err := tx.Exists(ctx, gameKey(g.ID)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("game %s already exists", g.ID)
		}
		for _, e := range []*domain.QueueEntry{ea, eb} {
			e.State = domain.QueueMatched
			e.GameID = g.ID
			e.UpdatedAt = g.CreatedAt
		}
		pipe := tx.TxPipeline()
		if err := s.stageGame(ctx, pipe, g); err != nil {
			return err
		}
		if err := s.stageEntry(ctx, pipe, ea); err != nil {
			return err
		}
		if err := s.stageEntry(ctx, pipe, eb); err != nil {
			return err
		}
		pipe.ZRem(ctx, waitingKey, member(a), member(b))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = g
		return nil
	}, entryKey(a), entryKey(b), waitingKey)
	if err != nil {
		return nil, txErr(err)
	}
	return out, nil
}

// ParseRedisURL converts redis://[:pass@]host:port/db into client options.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
