// Package metrics implements the observability surface: an HTTP metrics
// endpoint exposing process counters and per-error-kind counts. Grounded
// on `ai/metrics/prometheus.go`'s pattern — the same Namespace/Subsystem-
// scoped vectors registered once via MustRegister and served through
// promhttp — narrowed to the dispatch/moderation counters this bot needs
// instead of an AI-chat metric set.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "sentrybot"
)

// Exporter is the process-wide metrics handle. One Exporter is built at
// startup and shared across every component that reports a counter.
type Exporter struct {
	registry *prometheus.Registry

	updatesTotal    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec // keyed by the closed ErrorKind set
	moderationTotal *prometheus.CounterVec // per ActionType
	locksTriggered  *prometheus.CounterVec // per LockType
	ratelimitDrops  prometheus.Counter
	taskDuration    *prometheus.HistogramVec
	cacheOutages    prometheus.Counter
}

// New builds an Exporter with a fresh registry.
func New() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{
		registry: registry,
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "updates_total",
			Help:      "Total inbound updates processed, by outcome.",
		}, []string{"outcome"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Total errors, by error kind.",
		}, []string{"kind"}),
		moderationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "actions_total",
			Help:      "Total moderation actions applied, by action type.",
		}, []string{"action"}),
		locksTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "locks_triggered_total",
			Help:      "Total lock-type triggers observed, regardless of whether the chat had that lock configured.",
		}, []string{"lock_type"}),
		ratelimitDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "suppressed_total",
			Help:      "Total outbound sends suppressed by the ratelimiter.",
		}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "task_duration_seconds",
			Help:      "Per-update dispatch task duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		cacheOutages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "outages_total",
			Help:      "Total cache operations that fell through to SQL because Redis was unavailable.",
		}),
	}

	registry.MustRegister(
		e.updatesTotal,
		e.errorsTotal,
		e.moderationTotal,
		e.locksTriggered,
		e.ratelimitDrops,
		e.taskDuration,
		e.cacheOutages,
	)
	return e
}

// ErrorKind is the closed set of error kinds, each incrementing its own
// labeled counter.
type ErrorKind string

const (
	KindInvalidArgs         ErrorKind = "invalid_args"
	KindUserNotFound        ErrorKind = "user_not_found"
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindCannotActOnBot      ErrorKind = "cannot_act_on_bot"
	KindCannotActOnAdmin    ErrorKind = "cannot_act_on_admin"
	KindTargetMissing       ErrorKind = "target_missing"
	KindConversationCorrupt ErrorKind = "conversation_corrupt"
	KindTransportRetryable  ErrorKind = "transport_retryable"
	KindCacheUnavailable    ErrorKind = "cache_unavailable"
	KindDatabaseRetryable   ErrorKind = "database_retryable"
	KindParseError          ErrorKind = "parse_error"
	KindTimeout             ErrorKind = "timeout"
	KindInvariantViolation  ErrorKind = "invariant_violation"
)

// RecordUpdate increments the dispatch outcome counter and observes the
// task's wall-clock duration.
func (e *Exporter) RecordUpdate(outcome string, d time.Duration) {
	e.updatesTotal.WithLabelValues(outcome).Inc()
	e.taskDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordError increments the per-kind error counter: every error
// increments a metric keyed by its kind.
func (e *Exporter) RecordError(kind ErrorKind) {
	e.errorsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordModerationAction increments the per-action-type moderation
// counter, keyed by the store.ActionType string value.
func (e *Exporter) RecordModerationAction(action string) {
	e.moderationTotal.WithLabelValues(action).Inc()
}

// RecordLockTriggered increments the per-lock-type trigger counter.
func (e *Exporter) RecordLockTriggered(lockType string) {
	e.locksTriggered.WithLabelValues(lockType).Inc()
}

// RecordRatelimitDrop increments the suppressed-send counter.
func (e *Exporter) RecordRatelimitDrop() {
	e.ratelimitDrops.Inc()
}

// RecordCacheOutage increments the cache-outage counter.
func (e *Exporter) RecordCacheOutage() {
	e.cacheOutages.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
