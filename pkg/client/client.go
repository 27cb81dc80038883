package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/checkers-server/pkg/checkersdto"
)

// HeaderProvider allows injecting per-request headers.
type HeaderProvider func() map[string]string

// Client calls the checkers HTTP API as one user.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	userID  int64

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, userID int64, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		userID:         userID,
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a copy of c acting as another user.
func (c *Client) As(userID int64) *Client {
	cp := *c
	cp.userID = userID
	return &cp
}

func (c *Client) Health(ctx context.Context) error {
	var out checkersdto.Result
	return c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true)
}

func (c *Client) CreateGame(ctx context.Context, player2ID int64) (string, error) {
	var out checkersdto.CreateGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", checkersdto.CreateGameRequest{Player2ID: player2ID}, &out, false); err != nil {
		return "", err
	}
	return out.GameID, nil
}

func (c *Client) Game(ctx context.Context, gameID string) (*checkersdto.GameState, error) {
	var out checkersdto.GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(gameID), nil, &out, true); err != nil {
		return nil, err
	}
	return out.GameState, nil
}

func (c *Client) Move(ctx context.Context, gameID string, req checkersdto.MoveRequest) (*checkersdto.MoveResponse, error) {
	var out checkersdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(gameID)+"/moves", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Moves(ctx context.Context, gameID string) ([]checkersdto.MoveEntry, error) {
	var out checkersdto.MovesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(gameID)+"/moves", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Moves, nil
}

func (c *Client) LegalMoves(ctx context.Context, gameID string) ([]checkersdto.LegalMove, error) {
	var out checkersdto.LegalMovesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/games/"+url.PathEscape(gameID)+"/moves/legal", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Moves, nil
}

func (c *Client) Resign(ctx context.Context, gameID string) (*checkersdto.GameState, error) {
	var out checkersdto.GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games/"+url.PathEscape(gameID)+"/resign", nil, &out, false); err != nil {
		return nil, err
	}
	return out.GameState, nil
}

func (c *Client) Join(ctx context.Context) error {
	var out checkersdto.QueueResponse
	return c.doJSON(ctx, fasthttp.MethodPost, "/queue/join", nil, &out, false)
}

func (c *Client) Leave(ctx context.Context) error {
	var out checkersdto.QueueResponse
	return c.doJSON(ctx, fasthttp.MethodPost, "/queue/leave", nil, &out, false)
}

func (c *Client) Check(ctx context.Context) (*checkersdto.QueueResponse, error) {
	var out checkersdto.QueueResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/queue/check", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, userID int64, limit int) ([]checkersdto.HistoryEntry, error) {
	path := "/users/" + strconv.FormatInt(userID, 10) + "/games"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out checkersdto.HistoryResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

func (c *Client) LiveGames(ctx context.Context, userID int64) ([]checkersdto.GameState, error) {
	var out checkersdto.GameListResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/users/"+strconv.FormatInt(userID, 10)+"/games/live", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// doJSON sends in as JSON and decodes the reply into out. A rejected
// outcome in the body is returned as checkersdto.DomainError.
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.userID > 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(c.userID, 10))
	}
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			var tag checkersdto.Result
			decodeErr := json.Unmarshal(resp.Body(), &tag)
			switch {
			case status >= 200 && status < 300:
				if out != nil {
					if err := json.Unmarshal(resp.Body(), out); err != nil {
						return fmt.Errorf("decode response: %w", err)
					}
				}
				return nil
			case decodeErr == nil && tag.ErrorReason != "":
				lastErr = tag.Err()
			default:
				lastErr = fmt.Errorf("checkers api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			}
			if !shouldRetryStatus(status) {
				return lastErr
			}
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	own := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
