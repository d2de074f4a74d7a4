package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	checkers := map[string]HealthChecker{
		"database": PingChecker{Target: pingFunc(func(context.Context) error { return nil })},
		"images":   PingChecker{Target: pingFunc(func(context.Context) error { return errors.New("bucket missing") })},
	}

	rec := httptest.NewRecorder()
	HealthHandler(checkers)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
	assert.Equal(t, "bucket missing", body.Checks["images"].Message)
}

func TestReadinessHandler(t *testing.T) {
	healthy := map[string]HealthChecker{
		"database": PingChecker{Target: pingFunc(func(context.Context) error { return nil })},
	}
	rec := httptest.NewRecorder()
	ReadinessHandler(healthy)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	down := map[string]HealthChecker{
		"database": PingChecker{Target: pingFunc(func(context.Context) error { return errors.New("down") })},
	}
	rec = httptest.NewRecorder()
	ReadinessHandler(down)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
