package byoa

import (
	"sync"
	"time"
)

// DefaultRateLimit is the per-agent intent cap per window.
const DefaultRateLimit = 30

// rateWindow is the sliding-window length.
const rateWindow = time.Minute

// RateLimiter tracks per-agent sliding windows of intent timestamps.
// Entries older than the window are evicted on each check.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	now     func() time.Time
}

// NewRateLimiter creates a limiter capped at limit intents per minute
// per agent. Zero selects the default.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		now:     time.Now,
	}
}

// Allow records an attempt for the agent and reports whether it fits
// the window.
func (r *RateLimiter) Allow(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-rateWindow)

	window := r.windows[agentID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.limit {
		r.windows[agentID] = kept
		return false
	}
	r.windows[agentID] = append(kept, now)
	return true
}

// Remaining reports how many attempts the agent has left in the current
// window.
func (r *RateLimiter) Remaining(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-rateWindow)
	used := 0
	for _, t := range r.windows[agentID] {
		if t.After(cutoff) {
			used++
		}
	}
	if used >= r.limit {
		return 0
	}
	return r.limit - used
}

// Forget drops an agent's window, for revocation cleanup.
func (r *RateLimiter) Forget(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.windows, agentID)
}
