package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/checkers-server/internal/archive"
	"github.com/park285/checkers-server/internal/checkers"
	"github.com/park285/checkers-server/internal/domain"
	"github.com/park285/checkers-server/internal/obslog"
)

// Store is the persistence port for games and their move logs.
// UpdateGame must run fn and the write as one atomic unit per game id and
// report domain.ErrConflict when a concurrent writer won.
type Store interface {
	CreateGame(ctx context.Context, g *domain.Game) error
	LoadGame(ctx context.Context, id string) (*domain.Game, error)
	UpdateGame(ctx context.Context, id string, fn func(g *domain.Game) ([]domain.MoveRecord, error)) (*domain.Game, error)
	Moves(ctx context.Context, id string) ([]domain.MoveRecord, error)
	GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error)
}

// Publisher receives one GameFinished per finished game.
type Publisher interface {
	Publish(ctx context.Context, ev domain.GameFinished) error
}

// Archiver keeps finished games beyond the live store's lifetime.
type Archiver interface {
	SaveResult(ctx context.Context, g *domain.Game, moves []domain.MoveRecord) error
	RecentGames(ctx context.Context, userID int64, limit int) ([]archive.Record, error)
}

// Manager owns the turn state machine of every game.
type Manager struct {
	store   Store
	events  Publisher
	archive Archiver
	bot     *Bot
	now     func() time.Time
	newID   func() string

	finishTimeout time.Duration
}

// DefaultFinishTimeout bounds each post-commit side effect of a finished game.
const DefaultFinishTimeout = 5 * time.Second

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDs(newID func() string) Option { return func(m *Manager) { m.newID = newID } }

func WithEvents(p Publisher) Option { return func(m *Manager) { m.events = p } }

func WithBot(b *Bot) Option { return func(m *Manager) { m.bot = b } }

// WithFinishTimeout sets the budget given separately to archiving and to
// publishing a finished game.
func WithFinishTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.finishTimeout = d
		}
	}
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,

		finishTimeout: DefaultFinishTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bot == nil {
		m.bot = NewBot(0)
	}
	return m
}

// AttachArchive wires the repository that finished games are copied into.
func (m *Manager) AttachArchive(a Archiver) {
	if m != nil {
		m.archive = a
	}
}

// MoveOutcome is the result of an accepted move.
type MoveOutcome struct {
	Game     *domain.Game
	Captured *checkers.Position
	Promoted bool
	// Reply is the automated opponent's answer, when one was played.
	Reply *domain.MoveRecord
}

// CreateGame starts a game with player 1 to move. player2 = 0 requests the
// automated opponent.
func (m *Manager) CreateGame(ctx context.Context, player1, player2 int64) (*domain.Game, error) {
	if player1 <= 0 || player2 < 0 || player1 == player2 {
		return nil, domain.ErrInvalidArgs
	}
	g := domain.NewGame(m.newID(), player1, player2, m.now())
	if err := m.store.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_create",
		zap.String("game_id", g.ID),
		zap.Int64("player1_id", player1),
		zap.Int64("player2_id", player2),
		zap.Bool("bot", g.AgainstBot()),
	)
	return g, nil
}

func (m *Manager) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	return m.store.LoadGame(ctx, id)
}

// Moves returns the move log in sequence order.
func (m *Manager) Moves(ctx context.Context, id string) ([]domain.MoveRecord, error) {
	if _, err := m.store.LoadGame(ctx, id); err != nil {
		return nil, err
	}
	return m.store.Moves(ctx, id)
}

// LegalMoves lists the moves available to the player to move; none once the
// game is finished.
func (m *Manager) LegalMoves(ctx context.Context, id string) ([]checkers.Move, error) {
	g, err := m.store.LoadGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Finished() {
		return []checkers.Move{}, nil
	}
	return checkers.LegalMoves(g.Board, g.CurrentPlayer), nil
}

func (m *Manager) GamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	return m.store.GamesByUser(ctx, userID)
}

// History returns archived games for userID; empty without an archive.
func (m *Manager) History(ctx context.Context, userID int64, limit int) ([]archive.Record, error) {
	if m.archive == nil {
		return []archive.Record{}, nil
	}
	recs, err := m.archive.RecentGames(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []archive.Record{}
	}
	return recs, nil
}

// SubmitMove validates and applies one move for moverID. Against the
// automated opponent its reply is applied in the same commit.
func (m *Manager) SubmitMove(ctx context.Context, gameID string, moverID int64, from, to checkers.Position) (*MoveOutcome, error) {
	out, err := domain.RetryOnce(func() (*MoveOutcome, error) {
		res := &MoveOutcome{}
		g, err := m.store.UpdateGame(ctx, gameID, func(g *domain.Game) ([]domain.MoveRecord, error) {
			if g.Finished() {
				return nil, domain.ErrGameAlreadyFinished
			}
			seat := g.SeatOf(moverID)
			if seat == checkers.NoPlayer || seat != g.CurrentPlayer {
				return nil, domain.ErrNotYourTurn
			}
			now := m.now()
			rec, err := play(g, seat, moverID, from, to, now)
			if err != nil {
				return nil, err
			}
			res.Captured, res.Promoted = rec.CapturedAt, rec.Promoted
			recs := []domain.MoveRecord{rec}
			if !g.Finished() && g.AgainstBot() && g.CurrentPlayer == checkers.Player2 {
				mv, ok := m.bot.Choose(g.Board, checkers.Player2)
				if ok {
					reply, err := play(g, checkers.Player2, domain.BotID, mv.From, mv.To, now)
					if err != nil {
						return nil, err
					}
					res.Reply = &reply
					recs = append(recs, reply)
				}
			}
			return recs, nil
		})
		if err != nil {
			return nil, err
		}
		res.Game = g
		return res, nil
	})
	if err != nil {
		if domain.Recoverable(err) {
			obslog.L().Debug("game_move_rejected",
				zap.String("game_id", gameID),
				zap.Int64("user_id", moverID),
				zap.String("reason", domain.ReasonOf(err)),
			)
		}
		return nil, err
	}
	obslog.L().Info("game_move",
		zap.String("game_id", gameID),
		zap.Int64("user_id", moverID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Bool("captured", out.Captured != nil),
		zap.String("status", string(out.Game.Status)),
	)
	if out.Game.Finished() {
		m.finalize(ctx, out.Game)
	}
	return out, nil
}

// play validates and applies a move by seat on g, then either finishes the
// game or hands the turn over.
func play(g *domain.Game, seat checkers.Player, playerID int64, from, to checkers.Position, now time.Time) (domain.MoveRecord, error) {
	v, err := checkers.ValidateMove(g.Board, from, to, seat)
	if err != nil {
		return domain.MoveRecord{}, err
	}
	before, _, _ := g.Board.PieceAt(from)
	next, err := checkers.ApplyMove(g.Board, from, to, v.Captured)
	if err != nil {
		return domain.MoveRecord{}, err
	}
	after, _, _ := next.PieceAt(to)

	g.Board = next
	g.MoveCount++
	g.UpdatedAt = now
	rec := domain.MoveRecord{
		GameID:     g.ID,
		Seq:        g.MoveCount,
		PlayerID:   playerID,
		From:       from,
		To:         to,
		Captured:   v.IsCapture(),
		CapturedAt: v.Captured,
		Promoted:   before.Rank != after.Rank,
		At:         now,
	}

	opp := seat.Opponent()
	if checkers.IsTerminal(next, opp) {
		method := domain.MethodNoMoves
		if next.Count(opp) == 0 {
			method = domain.MethodNoPieces
		}
		g.Finish(playerID, method, now)
	} else {
		g.CurrentPlayer = opp
	}
	return rec, nil
}

// Resign finishes the game in favour of the other participant regardless of
// whose turn it is.
func (m *Manager) Resign(ctx context.Context, gameID string, userID int64) (*domain.Game, error) {
	g, err := domain.RetryOnce(func() (*domain.Game, error) {
		return m.store.UpdateGame(ctx, gameID, func(g *domain.Game) ([]domain.MoveRecord, error) {
			if g.Finished() {
				return nil, domain.ErrGameAlreadyFinished
			}
			seat := g.SeatOf(userID)
			if seat == checkers.NoPlayer {
				return nil, domain.ErrNotParticipant
			}
			g.Finish(g.PlayerID(seat.Opponent()), domain.MethodResignation, m.now())
			return nil, nil
		})
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("game_resign",
		zap.String("game_id", gameID),
		zap.Int64("user_id", userID),
		zap.Int64("winner_id", *g.WinnerID),
	)
	m.finalize(ctx, g)
	return g, nil
}

// finalize runs the once-per-game side effects of a committed finish. The
// game is already persisted; failures here are logged, not returned. Each
// side effect gets its own budget detached from the caller's cancellation.
func (m *Manager) finalize(ctx context.Context, g *domain.Game) {
	ev := domain.FinishedEvent(g)
	obslog.L().Info("game_finished",
		zap.String("game_id", g.ID),
		zap.Int64("winner_id", ev.WinnerID),
		zap.String("method", g.FinishMethod),
		zap.Int("moves", g.MoveCount),
	)
	base := context.WithoutCancel(ctx)
	if m.archive != nil {
		actx, cancel := context.WithTimeout(base, m.finishTimeout)
		moves, err := m.store.Moves(actx, g.ID)
		if err == nil {
			err = m.archive.SaveResult(actx, g, moves)
		}
		cancel()
		if err != nil {
			obslog.L().Warn("game_archive_failed", zap.String("game_id", g.ID), zap.Error(err))
		}
	}
	if m.events != nil {
		pctx, cancel := context.WithTimeout(base, m.finishTimeout)
		err := m.events.Publish(pctx, ev)
		cancel()
		if err != nil {
			obslog.L().Warn("game_finished_publish_failed", zap.String("game_id", g.ID), zap.Error(err))
		}
	}
}
