package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/checkers-server/internal/checkers"
	"github.com/park285/checkers-server/internal/domain"
	"github.com/park285/checkers-server/internal/matchmaking"
	"github.com/park285/checkers-server/internal/msgcat"
	"github.com/park285/checkers-server/internal/session"
	"github.com/park285/checkers-server/pkg/checkersdto"
)

// UserHeader carries the caller's identity, set by the fronting proxy.
const UserHeader = "X-User-Id"

const (
	reasonUnauthenticated = "unauthenticated"
	reasonNotFound        = "not_found"
)

// Server exposes game and queue operations over HTTP.
type Server struct {
	games   *session.Manager
	queue   *matchmaking.Queue
	msgs    *msgcat.Catalog
	logger  *zap.Logger
	timeout time.Duration
	srv     *fasthttp.Server
}

func NewServer(games *session.Manager, queue *matchmaking.Queue, msgs *msgcat.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	s := &Server{games: games, queue: queue, msgs: msgs, logger: logger, timeout: 10 * time.Second}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "checkers-server",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handle routes one request.
func (s *Server) Handle(rc *fasthttp.RequestCtx) {
	started := time.Now()
	defer func() {
		s.logger.Debug("http_request",
			zap.ByteString("method", rc.Method()),
			zap.ByteString("path", rc.Path()),
			zap.Int("status", rc.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}()

	path := strings.Trim(string(rc.Path()), "/")
	parts := strings.Split(path, "/")
	get, post := rc.IsGet(), rc.IsPost()

	if path == "healthz" && get {
		s.writeJSON(rc, fasthttp.StatusOK, checkersdto.Result{Success: true})
		return
	}

	uid, ok := userID(rc)
	if !ok {
		s.fail(rc, fasthttp.StatusUnauthorized, reasonUnauthenticated)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch {
	case parts[0] == "games" && len(parts) == 1 && post:
		s.createGame(ctx, rc, uid)
	case parts[0] == "games" && len(parts) == 2 && get:
		s.getGame(ctx, rc, parts[1])
	case parts[0] == "games" && len(parts) == 3 && parts[2] == "moves" && post:
		s.submitMove(ctx, rc, parts[1], uid)
	case parts[0] == "games" && len(parts) == 3 && parts[2] == "moves" && get:
		s.moves(ctx, rc, parts[1])
	case parts[0] == "games" && len(parts) == 4 && parts[2] == "moves" && parts[3] == "legal" && get:
		s.legalMoves(ctx, rc, parts[1])
	case parts[0] == "games" && len(parts) == 3 && parts[2] == "resign" && post:
		s.resign(ctx, rc, parts[1], uid)
	case path == "queue/join" && post:
		s.queueJoin(ctx, rc, uid)
	case path == "queue/leave" && post:
		s.queueLeave(ctx, rc, uid)
	case path == "queue/check" && get:
		s.queueCheck(ctx, rc, uid)
	case parts[0] == "users" && len(parts) == 3 && parts[2] == "games" && get:
		s.history(ctx, rc, parts[1])
	case parts[0] == "users" && len(parts) == 4 && parts[2] == "games" && parts[3] == "live" && get:
		s.liveGames(ctx, rc, parts[1])
	default:
		s.fail(rc, fasthttp.StatusNotFound, reasonNotFound)
	}
}

func userID(rc *fasthttp.RequestCtx) (int64, bool) {
	raw := strings.TrimSpace(string(rc.Request.Header.Peek(UserHeader)))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) createGame(ctx context.Context, rc *fasthttp.RequestCtx, uid int64) {
	var req checkersdto.CreateGameRequest
	if len(rc.PostBody()) > 0 {
		if err := json.Unmarshal(rc.PostBody(), &req); err != nil {
			s.fail(rc, fasthttp.StatusBadRequest, domain.ReasonInvalidArgs)
			return
		}
	}
	g, err := s.games.CreateGame(ctx, uid, req.Player2ID)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusCreated, checkersdto.CreateGameResponse{Result: ok(), GameID: g.ID})
}

func (s *Server) getGame(ctx context.Context, rc *fasthttp.RequestCtx, id string) {
	g, err := s.games.GetGame(ctx, id)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.GameResponse{Result: ok(), GameState: gameState(g)})
}

func (s *Server) submitMove(ctx context.Context, rc *fasthttp.RequestCtx, id string, uid int64) {
	var req checkersdto.MoveRequest
	if err := json.Unmarshal(rc.PostBody(), &req); err != nil {
		s.fail(rc, fasthttp.StatusBadRequest, domain.ReasonInvalidArgs)
		return
	}
	out, err := s.games.SubmitMove(ctx, id, uid, checkers.Pos(req.FromRow, req.FromCol), checkers.Pos(req.ToRow, req.ToCol))
	if err != nil {
		s.failErr(rc, err)
		return
	}
	resp := checkersdto.MoveResponse{
		Result:    ok(),
		GameState: gameState(out.Game),
		Captured:  squarePtr(out.Captured),
		Promoted:  out.Promoted,
	}
	if out.Reply != nil {
		r := moveEntry(*out.Reply)
		resp.Reply = &r
	}
	s.writeJSON(rc, fasthttp.StatusOK, resp)
}

func (s *Server) moves(ctx context.Context, rc *fasthttp.RequestCtx, id string) {
	recs, err := s.games.Moves(ctx, id)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	list := make([]checkersdto.MoveEntry, 0, len(recs))
	for _, m := range recs {
		list = append(list, moveEntry(m))
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.MovesResponse{Result: ok(), Moves: list})
}

func (s *Server) legalMoves(ctx context.Context, rc *fasthttp.RequestCtx, id string) {
	moves, err := s.games.LegalMoves(ctx, id)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	list := make([]checkersdto.LegalMove, 0, len(moves))
	for _, m := range moves {
		list = append(list, legalMove(m))
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.LegalMovesResponse{Result: ok(), Moves: list})
}

func (s *Server) resign(ctx context.Context, rc *fasthttp.RequestCtx, id string, uid int64) {
	g, err := s.games.Resign(ctx, id, uid)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.GameResponse{Result: ok(), GameState: gameState(g)})
}

func (s *Server) queueJoin(ctx context.Context, rc *fasthttp.RequestCtx, uid int64) {
	if _, err := s.queue.Join(ctx, uid); err != nil {
		s.failErr(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.QueueResponse{Result: ok()})
}

func (s *Server) queueLeave(ctx context.Context, rc *fasthttp.RequestCtx, uid int64) {
	if err := s.queue.Leave(ctx, uid); err != nil {
		s.failErr(rc, err)
		return
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.QueueResponse{Result: ok()})
}

func (s *Server) queueCheck(ctx context.Context, rc *fasthttp.RequestCtx, uid int64) {
	res, err := s.queue.Check(ctx, uid)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	resp := checkersdto.QueueResponse{
		Result:      ok(),
		Matched:     res.Matched(),
		GameID:      res.GameID,
		WaitSeconds: int64(res.Wait / time.Second),
		TimedOut:    res.TimedOut(),
	}
	switch res.Status {
	case matchmaking.StatusMatched:
		resp.Message, _ = s.msgs.Render("queue.matched", map[string]any{"GameID": res.GameID})
	case matchmaking.StatusTimedOut:
		resp.Message, _ = s.msgs.Render("queue.timed_out", nil)
	default:
		resp.Message, _ = s.msgs.Render("queue.waiting", map[string]any{"Seconds": resp.WaitSeconds})
	}
	s.writeJSON(rc, fasthttp.StatusOK, resp)
}

func (s *Server) history(ctx context.Context, rc *fasthttp.RequestCtx, rawID string) {
	target, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || target <= 0 {
		s.fail(rc, fasthttp.StatusBadRequest, domain.ReasonInvalidArgs)
		return
	}
	limit := rc.QueryArgs().GetUintOrZero("limit")
	recs, err := s.games.History(ctx, target, limit)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	list := make([]checkersdto.HistoryEntry, 0, len(recs))
	for _, r := range recs {
		list = append(list, historyEntry(r))
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.HistoryResponse{Result: ok(), Games: list})
}

func (s *Server) liveGames(ctx context.Context, rc *fasthttp.RequestCtx, rawID string) {
	target, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || target <= 0 {
		s.fail(rc, fasthttp.StatusBadRequest, domain.ReasonInvalidArgs)
		return
	}
	games, err := s.games.GamesByUser(ctx, target)
	if err != nil {
		s.failErr(rc, err)
		return
	}
	list := make([]checkersdto.GameState, 0, len(games))
	for _, g := range games {
		list = append(list, *gameState(g))
	}
	s.writeJSON(rc, fasthttp.StatusOK, checkersdto.GameListResponse{Result: ok(), Games: list})
}

func ok() checkersdto.Result { return checkersdto.Result{Success: true} }

// statusFor maps a reason code onto an HTTP status.
func statusFor(reason string) int {
	switch reason {
	case domain.ReasonInvalidArgs:
		return fasthttp.StatusBadRequest
	case domain.ReasonNotParticipant:
		return fasthttp.StatusForbidden
	case domain.ReasonGameNotFound:
		return fasthttp.StatusNotFound
	case domain.ReasonNotYourTurn, domain.ReasonGameAlreadyFinished, domain.ReasonAlreadyQueued, domain.ReasonNotQueued:
		return fasthttp.StatusConflict
	case domain.ReasonTryAgain:
		return fasthttp.StatusServiceUnavailable
	case domain.ReasonInternal:
		return fasthttp.StatusInternalServerError
	}
	return fasthttp.StatusUnprocessableEntity
}

func (s *Server) failErr(rc *fasthttp.RequestCtx, err error) {
	reason := domain.ReasonOf(err)
	if !domain.Recoverable(err) {
		s.logger.Error("http_internal_error", zap.ByteString("path", rc.Path()), zap.Error(err))
	}
	var deadline interface{ Timeout() bool }
	if errors.As(err, &deadline) && deadline.Timeout() {
		reason = domain.ReasonTryAgain
	}
	s.fail(rc, statusFor(reason), reason)
}

func (s *Server) fail(rc *fasthttp.RequestCtx, status int, reason string) {
	s.writeJSON(rc, status, checkersdto.Result{
		Success:     false,
		ErrorReason: reason,
		Message:     s.msgs.Reason(reason, nil),
	})
}

func (s *Server) writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("http_encode_failed", zap.Error(err))
		rc.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBody(b)
}
