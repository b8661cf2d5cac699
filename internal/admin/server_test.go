package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grobertson/Rosey-Robot-sub001/internal/audit"
	"github.com/grobertson/Rosey-Robot-sub001/internal/domain"
	"github.com/grobertson/Rosey-Robot-sub001/internal/ratelimit"
)

func newTestServer(t *testing.T) (*httptest.Server, *audit.Counters, *ratelimit.Limiter) {
	t.Helper()
	counters := audit.NewCounters()
	limiter := ratelimit.New(ratelimit.Config{DefaultLimit: 30, Window: time.Minute})
	srv := NewServer(counters, limiter, slog.Default())
	ts := httptest.NewServer(srv.Router([]string{"*"}))
	t.Cleanup(ts.Close)
	return ts, counters, limiter
}

func get(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test server URL
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t)
	var body map[string]string
	resp := get(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoints(t *testing.T) {
	ts, counters, _ := newTestServer(t)
	counters.Observe("trivia", 12, false, false)
	counters.Observe("trivia", 40, true, false)

	var snap domain.MetricsSnapshot
	resp := get(t, ts.URL+"/v1/metrics", &snap)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), snap.Global.TotalRequests)
	assert.Contains(t, snap.Tenants, "trivia")

	var m domain.TenantMetrics
	resp = get(t, ts.URL+"/v1/metrics/trivia", &m)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), m.TotalErrors)

	resp = get(t, ts.URL+"/v1/metrics/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsReset(t *testing.T) {
	ts, counters, _ := newTestServer(t)
	counters.Observe("trivia", 5, false, false)
	counters.Observe("quotes", 5, false, false)

	resp, err := http.Post(ts.URL+"/v1/metrics/reset", "application/json",
		strings.NewReader(`{"tenant":"trivia"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, ok := counters.Tenant("trivia")
	assert.False(t, ok)
	_, ok = counters.Tenant("quotes")
	assert.True(t, ok)

	resp, err = http.Post(ts.URL+"/v1/metrics/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(0), counters.Snapshot().Global.TotalRequests)
}

func TestQuotaLifecycle(t *testing.T) {
	ts, _, limiter := newTestServer(t)

	var status ratelimit.Status
	resp := get(t, ts.URL+"/v1/tenants/trivia/ratelimit", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 30, status.Limit)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/tenants/trivia/ratelimit",
		strings.NewReader(`{"limit": 5}`))
	require.NoError(t, err)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&status))
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, 5, status.Limit)
	assert.Equal(t, 5, limiter.Status("trivia").Limit)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/v1/tenants/trivia/ratelimit", nil)
	require.NoError(t, err)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp3.StatusCode)
	assert.Equal(t, 30, limiter.Status("trivia").Limit)
}

func TestQuotaSetRejectsBadBodies(t *testing.T) {
	ts, _, _ := newTestServer(t)

	for _, body := range []string{`{}`, `{"limit": -1}`, `nope`} {
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/v1/tenants/trivia/ratelimit",
			strings.NewReader(body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}
