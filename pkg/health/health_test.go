package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// toggle fails while its flag is set.
type toggle struct{ down atomic.Bool }

func (t *toggle) Ping(context.Context) error {
	if t.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func getStatus(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(h *Health, n int) {
	for _, c := range h.checks {
		for range n {
			c.run(context.Background())
		}
	}
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	h.AddLivenessCheck("goroutines", time.Second, passing)
	h.AddLivenessCheck("other", time.Second, passing)

	code, body := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, map[string]string{"goroutines": "ok", "other": "ok"}, body.Checks)
}

func TestLiveEndpoint_FailureThreshold(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("leak", time.Second, failing("too many goroutines"))

	runN(h, 2)
	code, _ := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below threshold")

	runN(h, 1)
	code, body := getStatus(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "too many goroutines", body.Checks["leak"])
}

func TestReadyEndpoint(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("kv", time.Second, passing)

	code, body := getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "not marked ready")
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])

	h.SetReady(true)
	code, body = getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	h.SetReady(false)
	code, _ = getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "draining")
}

func TestReadyEndpoint_IgnoresLiveness(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("leak", time.Second, failing("boom"))
	h.AddReadinessCheck("kv", time.Second, passing)
	h.SetReady(true)
	runN(h, 3)

	code, body := getStatus(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body.Checks, "leak")
}

func TestCustomThresholds(t *testing.T) {
	dep := &toggle{}
	h := New(nil)
	h.Add(Readiness, "upstream", time.Second, Thresholds{Failure: 1, Success: 2}, PingCheck(dep))
	h.SetReady(true)
	c := h.checks[0]
	ctx := context.Background()

	dep.down.Store(true)
	assert.True(t, c.run(ctx), "one failure flips")
	assert.False(t, h.IsReady())

	dep.down.Store(false)
	assert.False(t, c.run(ctx))
	assert.False(t, h.IsReady(), "needs two passes")
	assert.True(t, c.run(ctx))
	assert.True(t, h.IsReady())
}

func TestPingCheck(t *testing.T) {
	dep := &toggle{}
	require.NoError(t, PingCheck(dep)(context.Background()))

	dep.down.Store(true)
	require.ErrorContains(t, PingCheck(dep)(context.Background()), "connection refused")
}

func TestStart_RunsChecks(t *testing.T) {
	dep := &toggle{}
	dep.down.Store(true)
	h := New(zaptest.NewLogger(t))
	h.Add(Readiness, "kv", time.Second, Thresholds{Failure: 1, Success: 1}, PingCheck(dep))
	h.SetReady(true)

	h.Start(context.Background(), 10*time.Millisecond)
	t.Cleanup(h.Stop)

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)
	dep.down.Store(false)
	require.Eventually(t, h.IsReady, time.Second, 5*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("goroutines", time.Second, passing)
	h.Start(context.Background(), time.Hour)
	h.Stop()
	h.Stop()
}

func TestConcurrentEndpoints(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("kv", time.Second, passing)
	h.SetReady(true)
	h.Start(context.Background(), time.Millisecond)
	t.Cleanup(h.Stop)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
