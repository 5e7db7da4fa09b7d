// Package config defines the top-level configuration for the trade console
// and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADECONSOLE_* environment variables.
type Config struct {
	Remote   RemoteConfig  `toml:"remote"`
	Poll     PollConfig    `toml:"poll"`
	Control  ControlConfig `toml:"control"`
	Server   ServerConfig  `toml:"server"`
	Redis    RedisConfig   `toml:"redis"`
	Notify   NotifyConfig  `toml:"notify"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// RemoteConfig points at the trading process control API.
type RemoteConfig struct {
	BaseURL  string   `toml:"base_url"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	Timeout  duration `toml:"timeout"`
}

// PollConfig controls the refresh cycle.
type PollConfig struct {
	Interval     duration `toml:"interval"`
	FetchTimeout duration `toml:"fetch_timeout"`
	HistoryLimit int      `toml:"history_limit"`
	LogLimit     int      `toml:"log_limit"`
	EquityWindow int      `toml:"equity_window"`
}

// ControlConfig holds operator command settings.
type ControlConfig struct {
	// LockTTL is the base hold time of the command lock. Each remote call a
	// command makes extends it by remote.timeout.
	LockTTL duration `toml:"lock_ttl"`
}

// RedisConfig holds Redis connection parameters. An empty Addr selects the
// in-process caches.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// APIKeyHash is a bcrypt hash of the operator key; preferred over APIKey.
	APIKeyHash string   `toml:"api_key_hash"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Label prefixes every notification title, e.g. the bot name.
	Label string `toml:"label"`
	// DigestCron schedules the daily digest; empty disables it.
	DigestCron string `toml:"digest_cron"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Remote: RemoteConfig{
			BaseURL: "http://127.0.0.1:8080/api/v1",
			Timeout: duration{8 * time.Second},
		},
		Poll: PollConfig{
			Interval:     duration{10 * time.Second},
			FetchTimeout: duration{8 * time.Second},
			HistoryLimit: 50,
			LogLimit:     50,
			EquityWindow: 50,
		},
		Control: ControlConfig{
			LockTTL: duration{2 * time.Minute},
		},
		Server: ServerConfig{
			Port:        8081,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			Events: []string{
				"connection_lost",
				"connection_restored",
				"force_exit",
				"emergency_stop",
				"daily_digest",
			},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Remote
	if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("remote: base_url must be an absolute URL, got %q", c.Remote.BaseURL))
	}
	if (c.Remote.Username == "") != (c.Remote.Password == "") {
		errs = append(errs, "remote: username and password must be set together")
	}
	if c.Remote.Timeout.Duration <= 0 {
		errs = append(errs, "remote: timeout must be > 0")
	}

	// Poll
	if c.Poll.Interval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("poll: interval must be >= 1s, got %s", c.Poll.Interval.Duration))
	}
	if c.Poll.FetchTimeout.Duration <= 0 {
		errs = append(errs, "poll: fetch_timeout must be > 0")
	}
	if c.Poll.HistoryLimit < 1 {
		errs = append(errs, "poll: history_limit must be >= 1")
	}
	if c.Poll.LogLimit < 1 {
		errs = append(errs, "poll: log_limit must be >= 1")
	}
	if c.Poll.EquityWindow < 1 {
		errs = append(errs, "poll: equity_window must be >= 1")
	}

	// Control
	if c.Control.LockTTL.Duration <= 0 {
		errs = append(errs, "control: lock_ttl must be > 0")
	}

	// Server
	if strings.EqualFold(c.Mode, "server") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.DigestCron != "" {
		if _, err := cron.ParseStandard(c.Notify.DigestCron); err != nil {
			errs = append(errs, fmt.Sprintf("notify: invalid digest_cron %q: %v", c.Notify.DigestCron, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
