package safety

import (
	"sync"

	"golang.org/x/time/rate"
)

// ToolRateLimiter throttles tool-execution bursts per (organizationId,
// toolName) pair. It is an ambient reliability concern, not an approval
// gate: Allow never blocks and never rejects a call outright, it only
// reports whether the caller should slow down. A caller that ignores a
// false result still gets to execute; the limiter fails open.
type ToolRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewToolRateLimiter builds a limiter granting burst immediate calls per
// (org, tool) pair, refilling at rps calls/second thereafter. A zero or
// negative rps/burst falls back to a conservative default of 1 call/sec
// with a burst of 5, so a misconfigured caller still gets smoothing
// instead of an unbounded or permanently-empty bucket.
func NewToolRateLimiter(rps float64, burst int) *ToolRateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &ToolRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a call for (organizationID, tool) is within the
// current burst budget, consuming one token when it is. A false result is
// advisory: the loop may still choose to execute and rely on downstream
// approval/provider limits, but should prefer to delay and retry when one
// is available.
func (l *ToolRateLimiter) Allow(organizationID, tool string) bool {
	return l.limiterFor(organizationID, tool).Allow()
}

func (l *ToolRateLimiter) limiterFor(organizationID, tool string) *rate.Limiter {
	key := organizationID + "\x00" + tool

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}
