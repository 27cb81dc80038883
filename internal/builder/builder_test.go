package builder

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/checkers-server/internal/config"
	"github.com/park285/checkers-server/internal/store"
)

func TestNewInMemory(t *testing.T) {
	d, err := New(context.Background(), &config.AppConfig{HTTPAddr: ":0", EventsMode: "log", QueueTimeoutSec: 60}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close(context.Background())
	if _, ok := d.Backend.(*store.Memory); !ok {
		t.Fatalf("expected memory backend, got %T", d.Backend)
	}
	if d.Games == nil || d.Queue == nil || d.Server == nil || d.Archive != nil {
		t.Fatalf("incomplete deps: %+v", d)
	}
	g, err := d.Games.CreateGame(context.Background(), 1, 0)
	if err != nil || !g.AgainstBot() {
		t.Fatalf("CreateGame: %+v %v", g, err)
	}
}

func TestNewWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cfg := &config.AppConfig{
		HTTPAddr:        ":0",
		RedisURL:        fmt.Sprintf("redis://%s/0", mr.Addr()),
		GameTTLSec:      60,
		EventsMode:      "log",
		QueueTimeoutSec: 60,
	}
	d, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := d.Backend.(*store.Redis); !ok {
		t.Fatalf("expected redis backend, got %T", d.Backend)
	}
	if _, err := d.Queue.Join(context.Background(), 42); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewRejectsBadRedis(t *testing.T) {
	_, err := New(context.Background(), &config.AppConfig{RedisURL: "http://nope", EventsMode: "log"}, nil)
	if err == nil {
		t.Fatalf("expected error for bad redis url")
	}
}
