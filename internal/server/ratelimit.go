package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces sliding request windows and a daily upload quota per
// client.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	perHour   int
	dataDay   int64

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	requests []time.Time // within the last hour, oldest first
	day      time.Time   // midnight of the current quota day
	bytes    int64
}

// NewRateLimiter creates a limiter. Zero limits are unlimited.
func NewRateLimiter(perMinute, perHour int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		dataDay:   maxDataPerDay,
		clients:   make(map[string]*clientUsage),
		now:       time.Now,
	}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError when a limit would be exceeded.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.clients[client]
	if u == nil {
		u = &clientUsage{}
		rl.clients[client] = u
	}
	u.expire(now)

	if rl.perMinute > 0 {
		if recent := u.since(now.Add(-time.Minute)); len(recent) >= rl.perMinute {
			return &RateLimitError{Window: "minute", Limit: int64(rl.perMinute), RetryAfter: recent[0].Add(time.Minute).Sub(now)}
		}
	}
	if rl.perHour > 0 && len(u.requests) >= rl.perHour {
		return &RateLimitError{Window: "hour", Limit: int64(rl.perHour), RetryAfter: u.requests[0].Add(time.Hour).Sub(now)}
	}
	if rl.dataDay > 0 && u.bytes+size > rl.dataDay {
		return &RateLimitError{Window: "data", Limit: rl.dataDay, RetryAfter: u.day.AddDate(0, 0, 1).Sub(now)}
	}

	u.requests = append(u.requests, now)
	u.bytes += size
	return nil
}

// Usage reports the requests in the last hour and bytes uploaded today.
func (rl *RateLimiter) Usage(client string) (requests int, bytes int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	u := rl.clients[client]
	if u == nil {
		return 0, 0
	}
	u.expire(rl.now())
	return len(u.requests), u.bytes
}

func (u *clientUsage) expire(now time.Time) {
	cut := 0
	for cut < len(u.requests) && now.Sub(u.requests[cut]) >= time.Hour {
		cut++
	}
	u.requests = u.requests[cut:]

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !day.Equal(u.day) {
		u.day = day
		u.bytes = 0
	}
}

// since returns the requests newer than t.
func (u *clientUsage) since(t time.Time) []time.Time {
	for i, r := range u.requests {
		if r.After(t) {
			return u.requests[i:]
		}
	}
	return nil
}

// RateLimitError reports which window rejected a request.
type RateLimitError struct {
	Window     string // "minute", "hour" or "data"
	Limit      int64
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}
