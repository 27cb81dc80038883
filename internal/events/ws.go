package events

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/checkers-server/internal/domain"
)

type WSState int

const (
	WSDisconnected WSState = iota
	WSConnecting
	WSConnected
	WSReconnecting
	WSFailed
)

// Frame is the envelope written to the event stream.
type Frame struct {
	Type string              `json:"type"`
	Data domain.GameFinished `json:"data"`
}

// WSSink streams events over a long-lived WebSocket, redialling with
// backoff when the connection drops.
type WSSink struct {
	url     string
	headers HeaderProvider
	logger  *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state WSState

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type WSOption func(*WSSink)

func WithWSHeaders(h HeaderProvider) WSOption { return func(s *WSSink) { s.headers = h } }

func WithReconnectAttempts(n int) WSOption { return func(s *WSSink) { s.maxReconnectAttempts = n } }

func WithPingInterval(d time.Duration) WSOption { return func(s *WSSink) { s.pingInterval = d } }

func NewWSSink(url string, logger *zap.Logger, opts ...WSOption) *WSSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WSSink{
		url:                  strings.TrimSpace(url),
		logger:               logger,
		state:                WSDisconnected,
		maxReconnectAttempts: 5,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WSSink) State() WSState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the stream. On failure a background redial is scheduled
// and the dial error is returned.
func (s *WSSink) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == WSConnected || s.state == WSConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state = WSConnecting
	s.mu.Unlock()

	if err := s.dial(ctx); err != nil {
		s.setState(WSFailed)
		s.scheduleReconnect()
		return err
	}
	return nil
}

func (s *WSSink) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, s.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	if err != nil {
		return err
	}
	// Incoming frames are not used; CloseRead keeps control frames flowing.
	readCtx := conn.CloseRead(context.Background())

	s.mu.Lock()
	if s.isStopping() {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return errNotConnected
	}
	s.conn = conn
	s.state = WSConnected
	s.mu.Unlock()
	s.logger.Info("event_stream_connected", zap.String("url", s.url))

	s.wg.Add(1)
	go s.watch(readCtx, conn)
	return nil
}

// watch pings conn until it closes, then triggers a redial.
func (s *WSSink) watch(readCtx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-readCtx.Done():
			s.drop(conn, "read closed")
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				s.drop(conn, "ping failure")
				return
			}
		}
	}
}

func (s *WSSink) drop(conn *websocket.Conn, reason string) {
	if s.isStopping() {
		return
	}
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = WSDisconnected
	s.mu.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	s.logger.Warn("event_stream_dropped", zap.String("reason", reason))
	s.scheduleReconnect()
}

func (s *WSSink) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 || s.isStopping() {
		return
	}
	s.setState(WSReconnecting)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}
			if err := s.dial(context.Background()); err == nil {
				return
			}
		}
		s.setState(WSFailed)
		s.logger.Error("event_stream_reconnect_failed", zap.String("url", s.url))
	}()
}

// Publish writes one frame. Writes are serialised.
func (s *WSSink) Publish(ctx context.Context, ev domain.GameFinished) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.state != WSConnected {
		return errNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, s.conn, Frame{Type: "game_finished", Data: ev})
}

func (s *WSSink) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = WSDisconnected
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *WSSink) setState(st WSState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *WSSink) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *WSSink) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headers == nil {
		return hdr
	}
	for k, v := range s.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
