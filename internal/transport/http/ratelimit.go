package http

import "time"

// rateLimiter is a fixed one-second window counter owned by one read loop.
type rateLimiter struct {
	limit   int
	counter int
	window  time.Time
	now     func() time.Time
}

func newRateLimiter(limit int, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{limit: limit, now: now}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if now.Sub(r.window) >= time.Second {
		r.window = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
