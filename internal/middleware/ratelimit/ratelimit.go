// Package ratelimit bounds per-client mutation rates with a fixed
// one-minute window per IP.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"billtrack/internal/cache"
)

// Config tunes the limiter.
type Config struct {
	RequestsPerMinute int
	// MaxClients bounds how many IPs are tracked at once; the least
	// recently seen client is evicted first.
	MaxClients int
	// ClientTTL is how long an idle client window stays tracked.
	ClientTTL time.Duration
}

// DefaultConfig allows 60 mutations per minute per IP and tracks up to
// ten thousand idle clients for ten minutes.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		MaxClients:        10000,
		ClientTTL:         10 * time.Minute,
	}
}

type window struct {
	start    time.Time
	requests int
}

// Limiter counts requests per client IP in fixed one-minute windows. The
// windows live in a TTL'd LRU so a wide scan cannot grow memory without
// bound; idle entries fall out via the cache janitor.
type Limiter struct {
	mu      sync.Mutex
	windows *cache.LRU[*window]
	limit   int

	now func() time.Time
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = def.ClientTTL
	}
	return &Limiter{
		windows: cache.NewLRU[*window](cfg.MaxClients, cfg.ClientTTL),
		limit:   cfg.RequestsPerMinute,
		now:     time.Now,
	}
}

// Allow reports whether one more request from clientIP fits its window.
// A window older than a minute restarts instead of sliding.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(clientIP)
	if !ok || now.Sub(w.start) > time.Minute {
		l.windows.Set(clientIP, &window{start: now, requests: 1})
		return true
	}
	w.requests++
	l.windows.Set(clientIP, w)
	return w.requests <= l.limit
}

// ActiveClients returns the number of tracked client windows.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windows.Size()
}

// Sweeper exposes the window store for janitor registration.
func (l *Limiter) Sweeper() cache.Cleaner {
	return l.windows
}

// Middleware enforces the limit on mutating methods only; reads pass
// through uncounted. onLimit writes the rejection, defaulting to a plain
// 429 with Retry-After.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			clientIP := ""
			if extractIP != nil {
				clientIP = extractIP(r)
			}
			if !l.Allow(clientIP) {
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
