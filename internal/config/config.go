// Package config holds the process-wide configuration for sentrybot,
// loaded from flags, environment variables and an optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config is the composition-root configuration value. It is built once at
// startup and passed by reference to every subsystem; nothing reaches for a
// package-level global to read it.
type Config struct {
	// transport
	BotToken string

	// persistence
	DatabaseDriver     string // "postgres" or "sqlite"
	DatabaseConnection string // SQL DSN
	RedisConnection    string // cache DSN

	// webhook
	WebhookEnable bool
	WebhookURL    string
	WebhookListen string

	// logging
	LogLevel        string
	PrometheusHook  string

	// timing
	CacheTimeout        time.Duration
	AntifloodWaitCount  int
	AntifloodWaitTime   time.Duration
	IgnoreChatTime      time.Duration
	TaskDeadline        time.Duration
	CaptchaTimeout      time.Duration

	// admin
	SudoUsers    []int64
	SupportUsers []int64

	// modules
	ModulesEnabled  []string
	ModulesDisabled []string
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		DatabaseDriver:     "postgres",
		CacheTimeout:       48 * time.Hour,
		AntifloodWaitCount: 10,
		AntifloodWaitTime:  30 * time.Second,
		IgnoreChatTime:     5 * time.Minute,
		TaskDeadline:       30 * time.Second,
		CaptchaTimeout:     5 * time.Minute,
		LogLevel:           "info",
	}
}

// FromEnv overlays environment variables (prefixed SENTRYBOT_) onto the
// receiver.
func (c *Config) FromEnv() {
	c.BotToken = envOr("SENTRYBOT_BOT_TOKEN", c.BotToken)
	c.DatabaseDriver = envOr("SENTRYBOT_DRIVER", c.DatabaseDriver)
	c.DatabaseConnection = envOr("SENTRYBOT_PERSISTENCE_DATABASE_CONNECTION", c.DatabaseConnection)
	c.RedisConnection = envOr("SENTRYBOT_PERSISTENCE_REDIS_CONNECTION", c.RedisConnection)

	c.WebhookEnable = envBool("SENTRYBOT_WEBHOOK_ENABLE", c.WebhookEnable)
	c.WebhookURL = envOr("SENTRYBOT_WEBHOOK_URL", c.WebhookURL)
	c.WebhookListen = envOr("SENTRYBOT_WEBHOOK_LISTEN", c.WebhookListen)

	c.LogLevel = envOr("SENTRYBOT_LOGGING_LOG_LEVEL", c.LogLevel)
	c.PrometheusHook = envOr("SENTRYBOT_LOGGING_PROMETHEUS_HOOK", c.PrometheusHook)

	c.CacheTimeout = envDuration("SENTRYBOT_TIMING_CACHE_TIMEOUT", c.CacheTimeout)
	c.AntifloodWaitCount = envInt("SENTRYBOT_TIMING_ANTIFLOODWAIT_COUNT", c.AntifloodWaitCount)
	c.AntifloodWaitTime = envDuration("SENTRYBOT_TIMING_ANTIFLOODWAIT_TIME", c.AntifloodWaitTime)
	c.IgnoreChatTime = envDuration("SENTRYBOT_TIMING_IGNORE_CHAT_TIME", c.IgnoreChatTime)
	c.CaptchaTimeout = envDuration("SENTRYBOT_TIMING_CAPTCHA_TIMEOUT", c.CaptchaTimeout)

	c.SudoUsers = envInt64List("SENTRYBOT_ADMIN_SUDO_USERS", c.SudoUsers)
	c.SupportUsers = envInt64List("SENTRYBOT_ADMIN_SUPPORT_USERS", c.SupportUsers)

	c.ModulesEnabled = envList("SENTRYBOT_MODULES_ENABLED", c.ModulesEnabled)
	c.ModulesDisabled = envList("SENTRYBOT_MODULES_DISABLED", c.ModulesDisabled)
}

// Validate checks that the minimum configuration required to start the
// service is present.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("bot_token is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.DatabaseConnection == "" {
		return errors.New("persistence.database_connection is required")
	}
	if c.WebhookEnable && c.WebhookURL == "" {
		return errors.New("webhook.url is required when webhook.enable is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// bare integers are treated as seconds, matching the documented "(seconds)" keys
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt64List(key string, fallback []int64) []int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
