package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a token bucket per client address.
type RateLimiter struct {
	perMinute int
	burst     int
	buckets   map[string]*tokenBucket
	mutex     sync.Mutex
	now       func() time.Time
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per client
// with bursts of up to burst requests.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		buckets:   make(map[string]*tokenBucket),
		now:       time.Now,
	}
}

// Middleware rejects requests over the limit with 429. It expects
// RemoteAddr to hold the client address, as chi's RealIP middleware leaves it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientHost(r.RemoteAddr)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow consumes a token for client and reports whether one was available.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	bucket, ok := rl.buckets[client]
	if !ok {
		bucket = &tokenBucket{tokens: rl.burst, lastRefill: now}
		rl.buckets[client] = bucket
	}

	refill := time.Minute / time.Duration(rl.perMinute)
	if added := int(now.Sub(bucket.lastRefill) / refill); added > 0 {
		bucket.tokens = min(rl.burst, bucket.tokens+added)
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(added) * refill)
	}

	rl.prune(now)

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// prune drops buckets idle long enough to be full again.
func (rl *RateLimiter) prune(now time.Time) {
	if len(rl.buckets) < 1024 {
		return
	}
	cutoff := now.Add(-10 * time.Minute)
	for client, bucket := range rl.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(rl.buckets, client)
		}
	}
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
