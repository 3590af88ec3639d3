package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/clock"
)

func TestChecker_Statuses(t *testing.T) {
	c := NewChecker(0)
	c.Register("db", Ping(func(context.Context) error { return nil }))
	c.Register("cache", func(context.Context) Check { return Check{Status: StatusDegraded} })

	report := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "db", report.Checks["db"].Name)
	assert.Equal(t, StatusHealthy, report.Checks["db"].Status)

	c.Register("backend", Ping(func(context.Context) error { return errors.New("connection refused") }))
	report = c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "connection refused", report.Checks["backend"].Message)
}

func TestChecker_Cache(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	defer clock.Use(mock)()

	calls := 0
	c := NewChecker(5 * time.Second)
	c.Register("count", Ping(func(context.Context) error { calls++; return nil }))

	c.Check(context.Background())
	c.Check(context.Background())
	assert.Equal(t, 1, calls)

	mock.Advance(6 * time.Second)
	c.Check(context.Background())
	assert.Equal(t, 2, calls)
}

func TestHandlers(t *testing.T) {
	healthy := true
	c := NewChecker(0)
	c.Register("backend", Ping(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	healthy = false
	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "NOT READY", rec.Body.String())

	rec = httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
