package service

import (
	"sync"
	"time"
)

// StartRateLimit caps how often a client may start benchmark runs. A start
// fans out into many judge calls, so a sliding per-IP window keeps a
// misbehaving client from flooding the queue.
type StartRateLimit struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	window   time.Duration
	maxReqs  int
}

// NewStartRateLimit creates a rate limiter allowing maxReqs starts per
// window and IP
func NewStartRateLimit(window time.Duration, maxReqs int) *StartRateLimit {
	return &StartRateLimit{
		requests: make(map[string][]time.Time),
		window:   window,
		maxReqs:  maxReqs,
	}
}

// Allow records a start attempt and reports whether it is within the limit
func (r *StartRateLimit) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if reqs, exists := r.requests[ip]; exists {
		var valid []time.Time
		for _, t := range reqs {
			if now.Sub(t) < r.window {
				valid = append(valid, t)
			}
		}
		r.requests[ip] = valid
	}

	if len(r.requests[ip]) >= r.maxReqs {
		return false
	}

	r.requests[ip] = append(r.requests[ip], now)
	return true
}
