// Package health serves the /livez and /readyz probes of the API server.
//
// Every dependency check runs in its own goroutine on a fixed interval and
// flips state only after a run of consecutive results, so a single slow ping
// does not take the server out of rotation. Checks registered as optional
// cover dependencies the storefront can run without (the catalog cache, the
// event stream): when they fail the probe reports "degraded" but stays 200.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind uint8

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks decide whether the server should receive traffic.
	Readiness
)

// Status is the overall probe outcome.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const (
	defaultTimeout          = 2 * time.Second
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1

	notReadyKey = "_readiness"
)

// Option customizes a registered check.
type Option func(*check)

// Timeout bounds a single run of the check.
func Timeout(d time.Duration) Option {
	return func(c *check) { c.timeout = d }
}

// Thresholds sets how many consecutive failures mark the check unhealthy and
// how many consecutive successes mark it healthy again.
func Thresholds(failure, success int) Option {
	return func(c *check) {
		c.failureThreshold = max(failure, 1)
		c.successThreshold = max(success, 1)
	}
}

// Optional makes a failing check degrade the probe instead of failing it.
func Optional() Option {
	return func(c *check) { c.optional = true }
}

// check is driven by exactly one goroutine. The counters are private to it;
// healthy and lastErr are read by probe handlers.
type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	optional         bool
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails     int
	successes int
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)

	if err != nil {
		c.successes = 0
		c.fails++
		if c.fails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.successes++
	if c.successes >= c.successThreshold {
		c.healthy.Store(true)
	}
}

func (c *check) failure() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Report is the evaluated state of one probe. Checks lists only the failing
// checks, keyed by name.
type Report struct {
	Status Status
	Checks map[string]string
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks [2][]*check
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check with the given probe. Checks start healthy.
func (h *Health) Add(kind Kind, name string, fn CheckFunc, opts ...Option) {
	c := &check{
		name:             name,
		timeout:          defaultTimeout,
		fn:               fn,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks[kind] = append(h.checks[kind], c)
	h.mu.Unlock()
}

// Start runs every registered check now and then once per interval until
// Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	all := slices.Concat(h.checks[Liveness], h.checks[Readiness])
	h.mu.Unlock()

	for _, c := range all {
		go poll(ctx, c, interval)
	}
}

func poll(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the check goroutines. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag. The server sets it after start-up
// and clears it when it begins draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the readiness probe would answer 200.
func (h *Health) IsReady() bool {
	return h.Ready().Status != StatusUnhealthy
}

// Live evaluates the liveness probe.
func (h *Health) Live() Report {
	return evaluate(h.snapshot(Liveness), nil)
}

// Ready evaluates the readiness probe.
func (h *Health) Ready() Report {
	var extra map[string]string
	if !h.ready.Load() {
		extra = map[string]string{notReadyKey: "service is not ready"}
	}
	return evaluate(h.snapshot(Readiness), extra)
}

func (h *Health) snapshot(kind Kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.checks[kind])
}

// evaluate folds check states into a report. extra entries always fail the
// probe.
func evaluate(checks []*check, extra map[string]string) Report {
	r := Report{Status: StatusOK, Checks: map[string]string{}}
	maps.Copy(r.Checks, extra)
	if len(extra) > 0 {
		r.Status = StatusUnhealthy
	}
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		r.Checks[c.name] = c.failure()
		switch {
		case !c.optional:
			r.Status = StatusUnhealthy
		case r.Status == StatusOK:
			r.Status = StatusDegraded
		}
	}
	return r
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Live())
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Ready())
}

// writeReport answers 503 only for an unhealthy probe. Failing checks are
// listed sorted by name.
func writeReport(w http.ResponseWriter, r Report) {
	code := http.StatusOK
	if r.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(r.Status))
	if len(r.Checks) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range slices.Sorted(maps.Keys(r.Checks)) {
			e.FieldStart(name)
			e.Str(r.Checks[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
