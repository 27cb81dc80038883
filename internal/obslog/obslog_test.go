package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkers.log")
	l, err := New(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("game_create", zap.String("game_id", "g1"))
	_ = l.Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"game_create"`) || !strings.Contains(string(raw), `"game_id":"g1"`) {
		t.Fatalf("unexpected log content: %s", raw)
	}
}

func TestSetLoggerRestores(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := SetLogger(zap.New(core))
	L().Info("queue_join")
	restore()
	L().Info("after_restore")
	if logs.Len() != 1 || logs.All()[0].Message != "queue_join" {
		t.Fatalf("unexpected entries: %+v", logs.All())
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	opts := OptionsFromEnv()
	if opts.File != "" || opts.Format != "json" || !opts.Console {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
