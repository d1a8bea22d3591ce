package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, e *Exporter) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecordErrorIncrementsByKind(t *testing.T) {
	e := New()
	e.RecordError(KindPermissionDenied)
	e.RecordError(KindPermissionDenied)
	e.RecordError(KindTimeout)

	body := scrape(t, e)
	assert.Contains(t, body, `sentrybot_dispatch_errors_total{kind="permission_denied"} 2`)
	assert.Contains(t, body, `sentrybot_dispatch_errors_total{kind="timeout"} 1`)
}

func TestRecordUpdateObservesDurationAndOutcome(t *testing.T) {
	e := New()
	e.RecordUpdate("handled", 10*time.Millisecond)

	body := scrape(t, e)
	assert.Contains(t, body, `sentrybot_dispatch_updates_total{outcome="handled"} 1`)
	assert.Contains(t, body, `sentrybot_dispatch_task_duration_seconds_count{outcome="handled"} 1`)
}

func TestRecordModerationActionAndLockTrigger(t *testing.T) {
	e := New()
	e.RecordModerationAction("ban")
	e.RecordLockTriggered("url")

	body := scrape(t, e)
	assert.Contains(t, body, `sentrybot_moderation_actions_total{action="ban"} 1`)
	assert.Contains(t, body, `sentrybot_policy_locks_triggered_total{lock_type="url"} 1`)
}

func TestRecordRatelimitDropAndCacheOutage(t *testing.T) {
	e := New()
	e.RecordRatelimitDrop()
	e.RecordCacheOutage()

	body := scrape(t, e)
	assert.True(t, strings.Contains(body, "sentrybot_ratelimit_suppressed_total 1"))
	assert.True(t, strings.Contains(body, "sentrybot_cache_outages_total 1"))
}

func TestNewRegistersWithoutPanicTwice(t *testing.T) {
	// Each New() call builds its own registry, so building two independent
	// Exporters must never panic from a duplicate-collector registration.
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
