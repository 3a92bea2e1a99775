package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/metrics"
	"EarningsTracker/internal/usecase"
)

type fakeCycle struct {
	runs       []usecase.RunOptions
	summaryDay time.Time
	result     domain.CycleResult
}

func (f *fakeCycle) Run(_ context.Context, opts usecase.RunOptions) domain.CycleResult {
	f.runs = append(f.runs, opts)
	return f.result
}

func (f *fakeCycle) SendDailySummary(_ context.Context, day time.Time) domain.CycleResult {
	f.summaryDay = day
	return f.result
}

func newTestServer(cycle *fakeCycle) *Server {
	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveCycle("check", domain.OutcomeSent, time.Second)
	s := NewServer(cycle, Config{CronSecret: "s3cret"}, reg, nil)
	s.now = func() time.Time { return time.Date(2025, 7, 15, 0, 30, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCronRequiresSecret(t *testing.T) {
	t.Parallel()

	cycle := &fakeCycle{result: domain.Succeeded(domain.OutcomeNoNew, "no new reports")}
	s := newTestServer(cycle)

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/cron/check-earnings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/cron/check-earnings", "wrong").Code)
	assert.Empty(t, cycle.runs)

	rec := do(t, s, http.MethodPost, "/cron/check-earnings?force=true", "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, cycle.runs, 1)
	assert.True(t, cycle.runs[0].Force)

	var body domain.CycleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.OutcomeNoNew, body.Outcome)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestFailedCycleIsServerError(t *testing.T) {
	t.Parallel()

	cycle := &fakeCycle{result: domain.Failed(domain.OutcomeSendFailed, "send notification", nil)}
	rec := do(t, newTestServer(cycle), http.MethodGet, "/cron/check-earnings", "s3cret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "send_failed")
}

func TestDailySummaryDefaultsToYesterday(t *testing.T) {
	t.Parallel()

	cycle := &fakeCycle{result: domain.Succeeded(domain.OutcomeSent, "ok")}
	s := newTestServer(cycle)

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/cron/daily-summary", "s3cret").Code)
	assert.Equal(t, "2025-07-14", cycle.summaryDay.Format(domain.DateLayout))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/cron/daily-summary?date=2025-07-01", "s3cret").Code)
	assert.Equal(t, "2025-07-01", cycle.summaryDay.Format(domain.DateLayout))

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/cron/daily-summary?date=yesterday", "s3cret").Code)
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeCycle{})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "earnings_tracker_cycles_total"))
}
