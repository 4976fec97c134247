// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
)

// # Rate Limiting

// RateLimitConfig sizes the token buckets. Zero values use the defaults in
// the constants package.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per crawler.
//
// Crawlers are told apart by the credential they present, so a fleet behind
// one NAT address does not share a bucket. Anonymous requests fall back to
// the client IP. Idle buckets are swept until the context is cancelled.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimiter builds a limiter and starts its sweeper.
func NewRateLimiter(context context.Context, cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = constants.DefaultRateLimitRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = constants.DefaultRateLimitBurst
	}

	limiter := &RateLimiter{
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	go limiter.sweep(context)
	return limiter
}

// Handler rejects requests over budget with 429 and a Retry-After hint.
func (limiter *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if wait, ok := limiter.take(clientKey(request)); !ok {
			writer.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(writer, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// take spends one token for key. When none is left it reports how long
// until the next one.
func (limiter *RateLimiter) take(key string) (time.Duration, bool) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	entry, found := limiter.buckets[key]
	if !found {
		entry = &bucket{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.buckets[key] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return time.Second, false
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return delay, false
	}
	return 0, true
}

func (limiter *RateLimiter) sweep(context context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			limiter.evictIdle(constants.RateLimitClientTTL)
		case <-context.Done():
			return
		}
	}
}

func (limiter *RateLimiter) evictIdle(ttl time.Duration) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	cutoff := limiter.now().Add(-ttl)
	for key, entry := range limiter.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(limiter.buckets, key)
		}
	}
}

// Len reports the number of live buckets.
func (limiter *RateLimiter) Len() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return len(limiter.buckets)
}

// clientKey fingerprints the presented credential, or falls back to the IP.
// Only a hash prefix is kept so raw keys never sit in memory as map keys.
func clientKey(request *http.Request) string {
	credential := request.Header.Get(constants.HeaderAPIKey)
	if credential == "" {
		credential = request.URL.Query().Get(constants.QueryParamAPIKey)
	}
	if credential == "" {
		credential = request.Header.Get(constants.HeaderAuthorization)
	}
	if credential == "" {
		return "ip:" + RealIP(request)
	}

	digest := sha256.Sum256([]byte(credential))
	return "cred:" + hex.EncodeToString(digest[:8])
}
