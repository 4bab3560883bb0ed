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
)

// RateLimitConfig configures a sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per Window and key.
	Max    int
	Window time.Duration
	// KeyFunc defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests from the limit and its headers.
	Skip func(*http.Request) bool
}

// window counts requests in the current fixed window and remembers the
// count of the one before it.
type window struct {
	start time.Time
	count float64
	prev  float64
}

// Decision is the outcome of one Limiter.Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter approximates a sliding window by weighting the previous fixed
// window with its overlap.
type Limiter struct {
	max  float64
	size time.Duration

	mu   sync.Mutex
	keys map[string]*window
}

// NewLimiter returns a limiter admitting limit requests per size and key.
func NewLimiter(limit int, size time.Duration) *Limiter {
	return &Limiter{
		max:  float64(limit),
		size: size,
		keys: make(map[string]*window),
	}
}

// Allow records a request for key at now if it fits in the limit.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.keys[key]
	if !ok {
		w = &window{start: now.Truncate(l.size)}
		l.keys[key] = w
	}
	switch age := now.Sub(w.start); {
	case age >= 2*l.size:
		w.start, w.count, w.prev = now.Truncate(l.size), 0, 0
	case age >= l.size:
		w.start, w.count, w.prev = w.start.Add(l.size), 0, w.count
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := w.prev*max(overlap, 0) + w.count
	d := Decision{Reset: w.start.Add(l.size)}
	if used >= l.max {
		return d
	}

	w.count++
	d.Allowed = true
	d.Remaining = max(int(l.max-used-1), 0)
	return d
}

// Sweep forgets keys idle for two windows.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.keys {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.keys, key)
		}
	}
}

// SweepEvery runs Sweep on a ticker until ctx is done.
func (l *Limiter) SweepEvery(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// RateLimit limits requests per key. Rejected requests get 429 with a JSON
// envelope under /api/ and plain text elsewhere; every counted response
// carries the X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(NewLimiter(cfg.Max, cfg.Window), cfg)
}

// RateLimitWithCleanup is RateLimit with a background sweep of idle keys
// that stops with ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg.Max, cfg.Window)
	go l.SweepEvery(ctx, 2*cfg.Window)
	return rateLimit(l, cfg)
}

func rateLimit(l *Limiter, cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Allow(keyFunc(r), time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			wait := max(time.Until(d.Reset), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, r, http.StatusTooManyRequests, "Too many requests")
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the host
// part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
