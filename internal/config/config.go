package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	GameTTLSec  int    `yaml:"game_ttl_sec"`

	QueueTimeoutSec int `yaml:"queue_timeout_sec"`
	QueueSweepSec   int `yaml:"queue_sweep_sec"`

	EventsMode    string `yaml:"events_mode"`
	EventsHTTPURL string `yaml:"events_http_url"`
	EventsWSURL   string `yaml:"events_ws_url"`
	EventsToken   string `yaml:"events_token"`

	MessagesDir string `yaml:"messages_dir"`
	BotSeed     int64  `yaml:"bot_seed"`
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:        ":8080",
		GameTTLSec:      7 * 24 * 3600,
		QueueTimeoutSec: 120,
		QueueSweepSec:   5,
		EventsMode:      "log",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CHECKERS_CONFIG if set, then environment variables.
func Load() (*AppConfig, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CHECKERS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.EventsMode, "EVENTS_MODE")
	setString(&cfg.EventsHTTPURL, "EVENTS_HTTP_URL")
	setString(&cfg.EventsWSURL, "EVENTS_WS_URL")
	setString(&cfg.EventsToken, "EVENTS_TOKEN")
	setString(&cfg.MessagesDir, "MESSAGES_DIR")

	setPositiveInt(&cfg.GameTTLSec, "GAME_TTL_SEC")
	setPositiveInt(&cfg.QueueTimeoutSec, "QUEUE_TIMEOUT_SEC")
	setPositiveInt(&cfg.QueueSweepSec, "QUEUE_SWEEP_SEC")

	if v := strings.TrimSpace(os.Getenv("BOT_SEED")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.BotSeed = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setPositiveInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	switch strings.ToLower(c.EventsMode) {
	case "log":
	case "http":
		if c.EventsHTTPURL == "" {
			return errors.New("EVENTS_HTTP_URL is required when EVENTS_MODE=http")
		}
	case "ws":
		if c.EventsWSURL == "" {
			return errors.New("EVENTS_WS_URL is required when EVENTS_MODE=ws")
		}
	case "all":
		if c.EventsHTTPURL == "" || c.EventsWSURL == "" {
			return errors.New("EVENTS_HTTP_URL and EVENTS_WS_URL are required when EVENTS_MODE=all")
		}
	default:
		return fmt.Errorf("unknown EVENTS_MODE %q", c.EventsMode)
	}
	if c.QueueSweepSec > c.QueueTimeoutSec {
		return errors.New("QUEUE_SWEEP_SEC must not exceed QUEUE_TIMEOUT_SEC")
	}
	return nil
}
