package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/park285/checkers-server/internal/api"
	"github.com/park285/checkers-server/internal/archive"
	"github.com/park285/checkers-server/internal/config"
	"github.com/park285/checkers-server/internal/events"
	"github.com/park285/checkers-server/internal/matchmaking"
	"github.com/park285/checkers-server/internal/msgcat"
	"github.com/park285/checkers-server/internal/session"
	"github.com/park285/checkers-server/internal/store"
)

var (
	_ session.Store     = (*store.Redis)(nil)
	_ session.Store     = (*store.Memory)(nil)
	_ matchmaking.Store = (*store.Redis)(nil)
	_ matchmaking.Store = (*store.Memory)(nil)
	_ session.Archiver  = (*archive.Repository)(nil)
	_ session.Publisher = (events.Sink)(nil)
)

// Backend is a store serving both games and the queue.
type Backend interface {
	session.Store
	matchmaking.Store
}

type Deps struct {
	Backend  Backend
	Games    *session.Manager
	Queue    *matchmaking.Queue
	Archive  *archive.Repository
	Events   events.Sink
	Messages *msgcat.Catalog
	Server   *api.Server

	closers []func(ctx context.Context) error
}

// New wires every component from cfg. Without REDIS_URL games live in
// memory; without DATABASE_URL the archive is disabled.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	ttl := time.Duration(cfg.GameTTLSec) * time.Second
	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := store.OpenRedis(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		d.Backend = rs
		d.closers = append(d.closers, func(context.Context) error { return rs.Close() })
	} else {
		logger.Warn("store_memory", zap.String("reason", "REDIS_URL not set; games are not persisted"))
		d.Backend = store.NewMemory()
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("init archive: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			_ = d.Close(ctx)
			return nil, fmt.Errorf("archive schema: %w", err)
		}
		d.Archive = repo
		d.closers = append(d.closers, func(context.Context) error { return repo.Close() })
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = msgs

	d.Events = buildEvents(ctx, cfg, logger, d)

	d.Games = session.NewManager(d.Backend,
		session.WithEvents(d.Events),
		session.WithBot(session.NewBot(cfg.BotSeed)),
	)
	if d.Archive != nil {
		d.Games.AttachArchive(d.Archive)
	}
	d.Queue = matchmaking.NewQueue(d.Backend,
		matchmaking.WithTimeout(time.Duration(cfg.QueueTimeoutSec)*time.Second),
	)
	d.Server = api.NewServer(d.Games, d.Queue, d.Messages, logger)
	return d, nil
}

func buildEvents(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, d *Deps) events.Sink {
	var headers events.HeaderProvider
	if cfg.EventsToken != "" {
		headers = func() map[string]string { return map[string]string{"Authorization": "Bearer " + cfg.EventsToken} }
	}
	var httpSink *events.HTTPSink
	if cfg.EventsHTTPURL != "" {
		httpSink = events.NewHTTPSink(cfg.EventsHTTPURL, events.WithHeaderProvider(headers))
	}
	var wsSink *events.WSSink
	mode := strings.ToLower(cfg.EventsMode)
	if cfg.EventsWSURL != "" && (mode == string(events.ModeWS) || mode == string(events.ModeAll)) {
		wsSink = events.NewWSSink(cfg.EventsWSURL, logger, events.WithWSHeaders(headers))
		if err := wsSink.Connect(ctx); err != nil {
			logger.Warn("event_stream_connect_failed", zap.Error(err))
		}
		d.closers = append(d.closers, wsSink.Close)
	}
	return events.NewSink(cfg.EventsMode, httpSink, wsSink, logger)
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close(ctx context.Context) error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, d.closers[i](ctx))
	}
	d.closers = nil
	return err
}
