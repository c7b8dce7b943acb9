package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLiveEndpoint_NoChecks(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest("GET", "/livez", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec).Status)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	h.Start(context.Background(), time.Hour)
	defer h.Stop()

	// First run is synchronous-ish: give the goroutine a moment.
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.LiveEndpoint(rec, httptest.NewRequest("GET", "/livez", nil))
		return rec.Code == 503
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest("GET", "/livez", nil))
	resp := decodeStatus(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["db"])
}

func TestReadyEndpoint_ManualGate(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	require.Equal(t, 503, rec.Code)
	assert.Contains(t, decodeStatus(t, rec).Checks, "_readiness")

	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)

	// Draining flips it back.
	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
