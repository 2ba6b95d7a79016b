package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const defaultLimitMessage = "too many requests, please slow down"

// RateLimitConfig configures a sliding window rate limit.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc extracts the limit key from a request. Defaults to the client IP.
	KeyFunc func(*http.Request) string
	// Store counts requests. Defaults to a process-local MemoryStore.
	Store RateStore
	// Message is the error message of a rejected request.
	Message string
}

// Quota is the outcome of one rate limit decision.
type Quota struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateStore counts requests per key over a sliding window.
type RateStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Quota, error)
}

// SlidingCount weights the previous fixed window by the share of it still
// covered by the sliding window ending at now.
func SlidingCount(prev, curr float64, start, now time.Time, window time.Duration) float64 {
	overlap := 1 - now.Sub(start).Seconds()/window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	return prev*overlap + curr
}

// QuotaFor builds the quota for a request that brought the sliding count to
// count.
func QuotaFor(limit int, count float64, start time.Time, window time.Duration) Quota {
	return Quota{
		Allowed:   count <= float64(limit),
		Remaining: max(int(float64(limit)-count), 0),
		ResetAt:   start.Add(window),
	}
}

type counter struct {
	start      time.Time
	prev, curr float64
}

// MemoryStore is a process-local RateStore. Windows are aligned to
// multiples of the window length so its decisions match RedisRateStore.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter)}
}

// Allow implements RateStore. Rejected requests are not counted.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Quota, error) {
	start := now.Truncate(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		c = &counter{start: start}
		s.counters[key] = c
	}
	switch d := start.Sub(c.start); {
	case d >= 2*window:
		c.prev, c.curr = 0, 0
	case d >= window:
		c.prev, c.curr = c.curr, 0
	}
	c.start = start

	q := QuotaFor(limit, SlidingCount(c.prev, c.curr+1, start, now, window), start, window)
	if q.Allowed {
		c.curr++
	}
	return q, nil
}

// Evict drops counters whose windows ended before now-window.
func (s *MemoryStore) Evict(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.counters {
		if now.Sub(c.start) >= 2*window {
			delete(s.counters, key)
		}
	}
}

// RateLimit returns a middleware enforcing cfg per key. Rejected requests get
// 429 with Retry-After; every response carries the X-RateLimit-* headers.
// A failing store lets the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Message == "" {
		cfg.Message = defaultLimitMessage
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			q, err := cfg.Store.Allow(ctx, cfg.KeyFunc(r), cfg.Max, cfg.Window, time.Now())
			if err != nil {
				zctx.From(ctx).Warn("Rate limit store", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.ResetAt.Unix(), 10))

			if !q.Allowed {
				retry := max(time.Until(q.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, cfg.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitWithCleanup is RateLimit over a MemoryStore that is swept every
// two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	store := NewMemoryStore()
	cfg.Store = store
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				store.Evict(now, cfg.Window)
			}
		}
	}()
	return RateLimit(cfg)
}

// ClientIP keys requests by the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionKey keys requests by the session cookie, falling back to the client
// IP for guests, so shoppers behind one address keep separate budgets.
func SessionKey(cookie string) func(*http.Request) string {
	return func(r *http.Request) string {
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return "session:" + c.Value
		}
		return "ip:" + ClientIP(r)
	}
}
