package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	name    string
	healthy bool
}

func (c *fakeChecker) Name() string                     { return c.name }
func (c *fakeChecker) Healthy(ctx context.Context) bool { return c.healthy }

func TestServer_Healthz_AllHealthy(t *testing.T) {
	s := New(DefaultConfig(), nil, nil, &fakeChecker{name: "db", healthy: true})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["healthy"])
}

func TestServer_Healthz_OneUnhealthy(t *testing.T) {
	s := New(DefaultConfig(), nil, nil,
		&fakeChecker{name: "db", healthy: true},
		&fakeChecker{name: "redis", healthy: false},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Status_IncludesCustomFields(t *testing.T) {
	status := func() map[string]interface{} {
		return map[string]interface{}{"signals_emitted": 3}
	}
	s := New(DefaultConfig(), nil, status)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "uptime_seconds")
	require.Equal(t, float64(3), body["signals_emitted"])
}

func TestServer_NotFound(t *testing.T) {
	s := New(DefaultConfig(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
