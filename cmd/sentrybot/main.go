package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/internal/captcha"
	"github.com/hrygo/sentrybot/internal/commands"
	"github.com/hrygo/sentrybot/internal/config"
	"github.com/hrygo/sentrybot/internal/dispatch"
	"github.com/hrygo/sentrybot/internal/federation"
	"github.com/hrygo/sentrybot/internal/identity"
	"github.com/hrygo/sentrybot/internal/metrics"
	"github.com/hrygo/sentrybot/internal/moderation"
	"github.com/hrygo/sentrybot/internal/ratelimit"
	"github.com/hrygo/sentrybot/internal/version"
	"github.com/hrygo/sentrybot/store"
	"github.com/hrygo/sentrybot/store/db/sqldriver"
	"github.com/hrygo/sentrybot/transport/telegram"
)

var rootCmd = &cobra.Command{
	Use:   "sentrybot",
	Short: "A Telegram group-moderation bot: warns, locks, blocklists, filters and federated bans.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		printConfigError(err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dialect, err := sqldriver.DialectByName(cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	driver, err := sqldriver.Open(dialect, cfg.DatabaseConnection)
	if err != nil {
		printDatabaseError(err, cfg)
		return err
	}
	defer driver.Close()
	if err := driver.Migrate(ctx); err != nil {
		slog.Error("migration failed", "error", err)
		return err
	}

	cache, err := cachesubstrate.New(cfg.RedisConnection)
	if err != nil {
		slog.Error("failed to connect to cache", "error", err)
		return err
	}

	idCache := identity.New(cache, driver, cfg.CacheTimeout)
	s := store.New(driver, cache, cfg.CacheTimeout)

	exporter := metrics.New()
	startMetricsServer(cfg.PrometheusHook, exporter)

	adapter, err := telegram.New(cfg.BotToken)
	if err != nil {
		slog.Error("failed to create telegram adapter", "error", err)
		return err
	}

	limiter := ratelimit.New(cache, ratelimit.Config{
		AntifloodWaitCount: cfg.AntifloodWaitCount,
		AntifloodWaitTime:  cfg.AntifloodWaitTime,
		IgnoreChatTime:     cfg.IgnoreChatTime,
	})
	tr := &limitedTransport{Transport: adapter, limiter: limiter, metrics: exporter}

	mod := moderation.New(s, tr, adapter.BotUserID())
	fed := federation.New(s)
	captchaSvc := captcha.New(cache, cfg.CaptchaTimeout)

	pipeline := dispatch.New(idCache, s, mod, tr)
	pipeline.SetCaptcha(captchaSvc)
	reg := commands.New(s, idCache, mod, fed, tr, cfg.SudoUsers, cfg.SupportUsers)
	reg.SetCaptcha(captchaSvc)
	reg.RegisterAll(pipeline)

	printGreetings(cfg)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, terminationSignals...)
	go func() {
		<-sig
		cancel()
	}()

	updates := adapter.Updates(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}
			u, ok := telegram.DecodeUpdate(raw)
			if !ok {
				continue
			}
			start := time.Now()
			outcome := "ok"
			if err := pipeline.Dispatch(ctx, u); err != nil {
				outcome = "error"
				exporter.RecordError(classifyError(err))
				slog.Error("dispatch failed", "error", err, "chat_id", chatIDOf(u))
			}
			exporter.RecordUpdate(outcome, time.Since(start))
		}
	}
}

// limitedTransport wraps the transport with the outbound throttle: every
// SendText call consults the ratelimiter first, suppressing the send
// rather than erroring when the chat is already silenced.
type limitedTransport struct {
	dispatch.Transport
	limiter *ratelimit.Limiter
	metrics *metrics.Exporter
}

func (t *limitedTransport) SendText(ctx context.Context, chatID int64, text string) error {
	ignore, err := t.limiter.Observe(ctx, chatID)
	if err != nil {
		return err
	}
	if ignore {
		t.metrics.RecordRatelimitDrop()
		return nil
	}
	return t.Transport.SendText(ctx, chatID, text)
}

func chatIDOf(u dispatch.Update) int64 {
	if u.Chat == nil {
		return 0
	}
	return u.Chat.ID
}

// classifyError maps a dispatch-level error to the closed ErrorKind set
// metrics exposes. Command handlers already translate moderation no-op sentinels
// into reply text before returning, so whatever reaches here is a
// transport or storage failure; cache/db distinctions aren't recoverable
// from a bare error value, so both fall back to the database-retryable
// kind rather than guessing.
func classifyError(err error) metrics.ErrorKind {
	switch {
	case err == nil:
		return metrics.KindInvariantViolation
	default:
		return metrics.KindDatabaseRetryable
	}
}

func startMetricsServer(addr string, exporter *metrics.Exporter) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}

// buildConfig layers viper-bound flags over the documented defaults, then
// lets SENTRYBOT_*-prefixed environment variables (read directly, not
// through viper) take final precedence.
func buildConfig() *config.Config {
	cfg := config.Default()
	if v := viper.GetString("bot-token"); v != "" {
		cfg.BotToken = v
	}
	if v := viper.GetString("driver"); v != "" {
		cfg.DatabaseDriver = v
	}
	if v := viper.GetString("dsn"); v != "" {
		cfg.DatabaseConnection = v
	}
	if v := viper.GetString("redis-dsn"); v != "" {
		cfg.RedisConnection = v
	}
	if v := viper.GetString("webhook-url"); v != "" {
		cfg.WebhookURL = v
	}
	if viper.GetBool("webhook-enable") {
		cfg.WebhookEnable = true
	}
	if v := viper.GetString("webhook-listen"); v != "" {
		cfg.WebhookListen = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("metrics-listen"); v != "" {
		cfg.PrometheusHook = v
	}
	if v := viper.GetString("sudo-users"); v != "" {
		cfg.SudoUsers = parseInt64List(v)
	}
	if v := viper.GetString("support-users"); v != "" {
		cfg.SupportUsers = parseInt64List(v)
	}
	cfg.FromEnv()
	return cfg
}

func parseInt64List(v string) []int64 {
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

func init() {
	viper.SetDefault("driver", "postgres")

	rootCmd.PersistentFlags().String("bot-token", "", "Telegram bot API token")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("redis-dsn", "", "redis connection string")
	rootCmd.PersistentFlags().Bool("webhook-enable", false, "serve updates over a webhook instead of long polling")
	rootCmd.PersistentFlags().String("webhook-url", "", "public URL Telegram should call for webhook delivery")
	rootCmd.PersistentFlags().String("webhook-listen", "", "local address the webhook HTTP server binds to")
	rootCmd.PersistentFlags().String("log-level", "info", "log level")
	rootCmd.PersistentFlags().String("metrics-listen", "", "address to serve /metrics on, empty disables it")
	rootCmd.PersistentFlags().String("sudo-users", "", "comma-separated user ids exempt from the admin check")
	rootCmd.PersistentFlags().String("support-users", "", "comma-separated user ids granted support-tier commands")

	for _, name := range []string{
		"bot-token", "driver", "dsn", "redis-dsn", "webhook-enable",
		"webhook-url", "webhook-listen", "log-level", "metrics-listen",
		"sudo-users", "support-users",
	} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("sentrybot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(cfg *config.Config) {
	fmt.Printf("sentrybot %s started\n", version.GetCurrentVersion("prod"))
	fmt.Printf("Database driver: %s\n", cfg.DatabaseDriver)
	if cfg.PrometheusHook != "" {
		fmt.Printf("Metrics listening on %s\n", cfg.PrometheusHook)
	}
	if cfg.WebhookEnable {
		fmt.Printf("Webhook mode: %s\n", cfg.WebhookURL)
	} else {
		fmt.Println("Polling for updates")
	}
}

// isRunningAsSystemdService detects the env vars systemd sets on units it
// starts, so the unit's own environment file is preferred over a local .env.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func printConfigError(err error) {
	fmt.Fprintln(os.Stderr, "Configuration error:", err)
	fmt.Fprintln(os.Stderr, "Set SENTRYBOT_BOT_TOKEN, SENTRYBOT_DRIVER and SENTRYBOT_PERSISTENCE_DATABASE_CONNECTION (or the matching flags) and retry.")
}

func printDatabaseError(err error, cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "Database connection failed:", err)
	switch {
	case strings.Contains(err.Error(), "connection refused"):
		fmt.Fprintln(os.Stderr, "Is the database running and reachable at the configured DSN?")
	case strings.Contains(err.Error(), "password authentication failed"):
		fmt.Fprintln(os.Stderr, "Check the credentials in --dsn or SENTRYBOT_PERSISTENCE_DATABASE_CONNECTION.")
	}
	if cfg.DatabaseDriver == "postgres" {
		fmt.Fprintln(os.Stderr, "For local development, --driver=sqlite --dsn=./sentrybot.db needs no running server.")
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
