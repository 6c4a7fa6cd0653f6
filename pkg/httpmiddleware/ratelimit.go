package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max requests a single key may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc picks the budget a request is charged to. Defaults to the
	// peer address.
	KeyFunc func(*http.Request) string
}

// bucket counts hits in the window starting at start and in the one before.
type bucket struct {
	start time.Time
	prev  int
	curr  int
}

// limiter approximates a sliding window by weighting the previous fixed
// window by the share of it still inside the sliding one.
type limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(limit int, window time.Duration) *limiter {
	return &limiter{
		max:     limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// take charges one request to key. It reports how many requests remain and
// when the current window closes.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	switch {
	case b == nil:
		b = &bucket{start: start}
		l.buckets[key] = b
	case start.Sub(b.start) == l.window:
		b.start, b.prev, b.curr = start, b.curr, 0
	case start.After(b.start):
		b.start, b.prev, b.curr = start, 0, 0
	}

	reset = b.start.Add(l.window)
	weight := float64(reset.Sub(now)) / float64(l.window)
	used := int(float64(b.prev)*weight) + b.curr
	if used >= l.max {
		return 0, reset, false
	}
	b.curr++
	return max(l.max-used-1, 0), reset, true
}

// sweep drops buckets that can no longer affect a decision.
func (l *limiter) sweep() {
	cutoff := l.now().Truncate(l.window).Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.start.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// RateLimit rejects requests over cfg.Max per cfg.Window with 429 and sets
// X-RateLimit-* headers on every response. Idle keys are swept in the
// background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg.Max, cfg.Window)
	go func() {
		t := time.NewTicker(2 * cfg.Window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.sweep()
			}
		}
	}()
	return rateLimit(l, cfg.KeyFunc)
}

func rateLimit(l *limiter, key func(*http.Request) string) Middleware {
	if key == nil {
		key = peerHost
	}
	limit := strconv.Itoa(l.max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, reset, ok := l.take(key(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(reset.Sub(l.now()), 0)
				h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerKeyFunc keys requests by their bearer token so customers sharing an
// address get separate budgets. Anonymous requests are keyed by peer address.
func BearerKeyFunc(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
		return "token:" + token
	}
	return peerHost(r)
}

// peerHost is the host part of RemoteAddr. Forwarding headers are ignored:
// a client can set them to anything.
func peerHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
