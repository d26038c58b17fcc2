// Package ratelimit throttles ingest requests per client IP.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	idleTimeout       = 10 * time.Minute
)

// Middleware returns chi-compatible middleware enforcing a token bucket of
// rps requests per second with the given burst for each client IP.
// A non-positive rps disables limiting.
func Middleware(rps float64, burst int) func(next http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := &limiter{rateVal: rate.Limit(rps), burst: burst, now: time.Now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiter struct {
	mu      sync.Mutex
	clients map[string]*entry
	rateVal rate.Limit
	burst   int
	now     func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (l *limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.clients == nil {
		l.clients = make(map[string]*entry)
	}
	e, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.cleanup()
		}
		e = &entry{limiter: rate.NewLimiter(l.rateVal, l.burst)}
		l.clients[ip] = e
	}
	e.lastSeen = l.now()
	return e.limiter.Allow()
}

// cleanup drops clients idle for longer than idleTimeout.
// Must be called with l.mu held.
func (l *limiter) cleanup() {
	cutoff := l.now().Add(-idleTimeout)
	for ip, e := range l.clients {
		if e.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
