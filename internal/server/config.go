// Package server provides the WebSocket transport for the chat service: the
// hub that fans events out to live connections, the per-connection read/write
// pumps, HTTP routing, and runtime configuration.
package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string        `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	Rooms           []string      `envconfig:"CHAT_ROOMS" default:"devops,cloud computing,covid19,sports,nodeJS"`
	DataDir         string        `envconfig:"BADGER_FILEPATH" default:"chat-data"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
	RateLimitRefill time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
}

// RateLimit collects the per-connection throttling parameters.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: c.RateLimitBurst, RefillInterval: c.RateLimitRefill}
}

// LoadConfig reads configuration from the environment, falling back to
// defaults for anything unset, and sanitizes the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read configuration: %w", err)
	}
	return cfg.sanitized(), nil
}

// DefaultConfig returns the configuration the server ships with, ignoring the
// environment.
func DefaultConfig() Config {
	cfg := Config{
		Port:            ":8080",
		AllowedOrigins:  []string{"http://localhost:5173"},
		MaxMessageSize:  4096,
		Rooms:           []string{"devops", "cloud computing", "covid19", "sports", "nodeJS"},
		DataDir:         "chat-data",
		LogLevel:        "info",
		RateLimitBurst:  20,
		RateLimitRefill: time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	return cfg.sanitized()
}

func (c Config) sanitized() Config {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}

	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins

	rooms := make([]string, 0, len(c.Rooms))
	for _, room := range c.Rooms {
		if trimmed := strings.TrimSpace(room); trimmed != "" {
			rooms = append(rooms, trimmed)
		}
	}
	c.Rooms = rooms

	return c
}

// SlogLevel maps the configured log level string onto a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
