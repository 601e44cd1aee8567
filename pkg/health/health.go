// Package health serves liveness and readiness endpoints.
//
// Registered checks run periodically in the background; endpoint handlers only
// read the last outcome. A check flips to unhealthy after FailureThreshold
// consecutive failures and back after SuccessThreshold consecutive passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Thresholds configure flapping protection of a check.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds are used by AddLivenessCheck and AddReadinessCheck.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      CheckFunc
	th      Thresholds

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the goroutine running the check.
	fails, passes int
}

// run executes the check once and reports whether its health flipped.
func (c *check) run(ctx context.Context) (flipped bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	was := c.healthy.Load()
	if err != nil {
		c.passes = 0
		c.fails++
		if c.fails >= c.th.Failure {
			c.healthy.Store(false)
		}
	} else {
		c.fails = 0
		c.passes++
		if c.passes >= c.th.Success {
			c.healthy.Store(true)
		}
	}
	return was != c.healthy.Load()
}

func (c *check) status() string {
	if c.healthy.Load() {
		return "ok"
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "unhealthy"
}

// Health holds the checks of the service.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// Add registers a check. Checks start out healthy.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, th Thresholds, fn CheckFunc) {
	c := &check{name: name, kind: kind, timeout: timeout, fn: fn, th: th}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// AddLivenessCheck registers a liveness check with DefaultThresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Liveness, name, timeout, DefaultThresholds, fn)
}

// AddReadinessCheck registers a readiness check with DefaultThresholds.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Readiness, name, timeout, DefaultThresholds, fn)
}

// Start runs every registered check immediately and then every interval,
// until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	for _, c := range checks {
		go h.loop(ctx, c, interval)
	}
}

func (h *Health) loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.run(ctx) {
			h.lg.Warn("Health check changed",
				zap.String("check", c.name),
				zap.Bool("healthy", c.healthy.Load()),
				zap.String("status", c.status()),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the background checks.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(Readiness) {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(kind Kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*check
	for _, c := range h.checks {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	resp, ok := report(h.snapshot(Liveness))
	write(w, resp, ok)
}

// ReadyEndpoint serves /readyz. A service not marked ready reports the
// pseudo check "_readiness".
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	resp, ok := report(h.snapshot(Readiness))
	if !h.ready.Load() {
		resp.Checks["_readiness"] = "service is not ready"
		resp.Status = "unhealthy"
		ok = false
	}
	write(w, resp, ok)
}

func report(checks []*check) (statusResponse, bool) {
	resp := statusResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
	ok := true
	for _, c := range checks {
		resp.Checks[c.name] = c.status()
		if !c.healthy.Load() {
			ok = false
		}
	}
	if !ok {
		resp.Status = "unhealthy"
	}
	return resp, ok
}

func write(w http.ResponseWriter, resp statusResponse, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
