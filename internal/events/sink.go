package events

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/park285/checkers-server/internal/domain"
)

// Sink delivers GameFinished events to the stats collaborator.
type Sink interface {
	Publish(ctx context.Context, ev domain.GameFinished) error
}

type Mode string

const (
	ModeLog  Mode = "log"
	ModeHTTP Mode = "http"
	ModeWS   Mode = "ws"
	ModeAll  Mode = "all"
)

// NewSink builds the sink for mode. The log sink is always part of the
// result; http and ws are added when their endpoint is configured.
func NewSink(mode string, httpSink *HTTPSink, wsSink *WSSink, logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	sinks := Multi{NewLogSink(logger)}
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModeHTTP:
		if httpSink != nil {
			sinks = append(sinks, httpSink)
		}
	case ModeWS:
		if wsSink != nil {
			sinks = append(sinks, wsSink)
		}
	case ModeAll:
		if httpSink != nil {
			sinks = append(sinks, httpSink)
		}
		if wsSink != nil {
			sinks = append(sinks, wsSink)
		}
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

// LogSink writes each event to the structured log.
type LogSink struct{ logger *zap.Logger }

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, ev domain.GameFinished) error {
	s.logger.Info("game_finished_event",
		zap.String("game_id", ev.GameID),
		zap.Int64("winner_id", ev.WinnerID),
		zap.Int64("player1_id", ev.Player1ID),
		zap.Int64("player2_id", ev.Player2ID),
		zap.String("method", ev.Method),
	)
	return nil
}

// Multi publishes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev domain.GameFinished) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Publish(ctx, ev))
	}
	return err
}

var errNotConnected = errors.New("event stream not connected")
