// Package config loads the process configuration: defaults, then the YAML
// config file, then environment variables, then caller overrides, each layer
// winning over the previous one. Metadata records which layer supplied every
// value.
package config

import (
	"fmt"
	"strings"
	"time"

	"astra/internal/observability"
)

// Default file locations probed when no explicit path is configured.
const (
	DefaultConfigFile = "astra.yaml"
	DefaultDBPath     = "db/astra.db"
)

// Config captures every user-configurable setting.
type Config struct {
	Environment   string               `yaml:"environment"`
	Telegram      TelegramConfig       `yaml:"telegram"`
	Server        ServerConfig         `yaml:"server"`
	Database      DatabaseConfig       `yaml:"database"`
	Session       SessionConfig        `yaml:"session"`
	Broadcast     BroadcastConfig      `yaml:"broadcast"`
	Observability observability.Config `yaml:"observability"`
}

// TelegramConfig configures the Telegram channel. The channel runs when a
// token is present and Enabled has not been forced off.
type TelegramConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Token              string  `yaml:"token"`
	AdminIDs           []int64 `yaml:"admin_ids"`
	PollTimeoutSeconds int     `yaml:"poll_timeout_seconds"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
	DedupCacheSize     int     `yaml:"dedup_cache_size"`
}

// IsAdmin reports whether the numeric user ID belongs to an administrator.
func (t TelegramConfig) IsAdmin(id int64) bool {
	for _, admin := range t.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig locates the sqlite database file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig tunes the conversation session store.
type SessionConfig struct {
	TimeoutSeconds         int `yaml:"timeout_seconds"`
	ShardCount             int `yaml:"shard_count"`
	JanitorIntervalSeconds int `yaml:"janitor_interval_seconds"`
}

// Timeout returns the absolute session lifetime.
func (s SessionConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// JanitorInterval returns how often expired sessions are swept.
func (s SessionConfig) JanitorInterval() time.Duration {
	return time.Duration(s.JanitorIntervalSeconds) * time.Second
}

// BroadcastConfig tunes the daily horoscope broadcast. DailyHour is the UTC
// hour of the run; -1 disables the schedule without disabling the admin
// /broadcast command.
type BroadcastConfig struct {
	DailyHour   int `yaml:"daily_hour"`
	MaxUsers    int `yaml:"max_users"`
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when no file, environment, or
// override says otherwise.
func Default() Config {
	return Config{
		Environment: "development",
		Telegram: TelegramConfig{
			Enabled:            true,
			PollTimeoutSeconds: 30,
			RateLimitRPS:       1.0,
			RateLimitBurst:     3,
			DedupCacheSize:     1024,
		},
		Server: ServerConfig{
			Enabled:        true,
			Host:           "0.0.0.0",
			Port:           8080,
			RateLimitRPS:   5.0,
			RateLimitBurst: 10,
		},
		Database: DatabaseConfig{
			Path: DefaultDBPath,
		},
		Session: SessionConfig{
			TimeoutSeconds:         300,
			ShardCount:             16,
			JanitorIntervalSeconds: 60,
		},
		Broadcast: BroadcastConfig{
			DailyHour:   9,
			MaxUsers:    1000,
			Concurrency: 8,
		},
		Observability: observability.DefaultConfig(),
	}
}

// Validate checks cross-field consistency. A missing Telegram token merely
// disables the channel; it only becomes an error when the channel was forced
// on with nothing else to run.
func (c *Config) Validate() error {
	if c.Telegram.Token != "" && len(c.Telegram.Token) < 10 {
		return fmt.Errorf("telegram token looks malformed (%d chars)", len(c.Telegram.Token))
	}
	for _, id := range c.Telegram.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("admin id %d is not a positive Telegram user id", id)
		}
	}
	if c.Session.TimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be positive, got %d", c.Session.TimeoutSeconds)
	}
	if c.Session.ShardCount <= 0 {
		return fmt.Errorf("session shard count must be positive, got %d", c.Session.ShardCount)
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Broadcast.DailyHour < -1 || c.Broadcast.DailyHour > 23 {
		return fmt.Errorf("broadcast hour %d out of range (-1 disables, 0-23 schedules)", c.Broadcast.DailyHour)
	}
	if c.Broadcast.MaxUsers <= 0 {
		return fmt.Errorf("broadcast max users must be positive, got %d", c.Broadcast.MaxUsers)
	}
	if c.Broadcast.Concurrency <= 0 {
		return fmt.Errorf("broadcast concurrency must be positive, got %d", c.Broadcast.Concurrency)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path is required")
	}
	switch strings.ToLower(c.Observability.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Observability.Logging.Level)
	}
	return nil
}

// TelegramActive reports whether the Telegram channel should run.
func (c *Config) TelegramActive() bool {
	return c.Telegram.Enabled && c.Telegram.Token != ""
}
