// Package capability implements CapabilityFacade (spec.md §4.8, C8): the
// narrow, rate-limited API a sandboxed app reaches host services through.
package capability

import (
	"sync"
	"time"
)

// Op identifies a rate-limited operation (spec.md §5's table).
type Op string

const (
	OpKVGet            Op = "kv_get"
	OpKVSet            Op = "kv_set"
	OpKVDelete         Op = "kv_delete"
	OpCommandExecution Op = "command_execution"
	OpCurrentUser      Op = "current_user"
)

type capSpec struct {
	perMinute int
	perBurst  int // 0 means "no burst cap", spec.md §5 leaves two rows blank
}

var specs = map[Op]capSpec{
	OpKVGet:            {perMinute: 100, perBurst: 20},
	OpKVSet:            {perMinute: 50, perBurst: 10},
	OpKVDelete:         {perMinute: 20, perBurst: 5},
	OpCommandExecution: {perMinute: 30},
	OpCurrentUser:      {perMinute: 60},
}

const cooldown = 30 * time.Second

// counter tracks one (app, op) pair's sliding-window usage, structurally
// the same shape as auth.RateLimiter's attemptRecord: a slice of recent
// timestamps plus a lockout deadline.
type counter struct {
	minuteHits []time.Time
	burstHits  []time.Time
	lockedUntil time.Time
	warnedAt    time.Time
}

// Limiter enforces the per-app, per-operation rate limits of spec.md §5.
// Counters are private to one app's limiter instance but shared across every
// session dispatching into that app concurrently, so every method takes the
// lock — correctness matters more than contention here given the caps
// involved (tens of ops per minute).
type Limiter struct {
	mu       sync.Mutex
	appID    string
	counters map[Op]*counter
}

// NewLimiter creates a Limiter for one app id.
func NewLimiter(appID string) *Limiter {
	return &Limiter{appID: appID, counters: make(map[Op]*counter)}
}

// Allow reports whether op may proceed right now, recording the attempt if
// so. On breach it returns false and logs a warning at most once per
// cooldown window (spec.md §5: "at most once per window").
func (l *Limiter) Allow(op Op) bool {
	spec, ok := specs[op]
	if !ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[op]
	if !ok {
		c = &counter{}
		l.counters[op] = c
	}

	now := time.Now()
	if c.lockedUntil.After(now) {
		return false
	}

	c.minuteHits = recent(c.minuteHits, now, time.Minute)
	if len(c.minuteHits) >= spec.perMinute {
		l.breach(c, now)
		return false
	}
	if spec.perBurst > 0 {
		c.burstHits = recent(c.burstHits, now, 5*time.Second)
		if len(c.burstHits) >= spec.perBurst {
			l.breach(c, now)
			return false
		}
		c.burstHits = append(c.burstHits, now)
	}
	c.minuteHits = append(c.minuteHits, now)
	return true
}

func (l *Limiter) breach(c *counter, now time.Time) {
	c.lockedUntil = now.Add(cooldown)
	if now.Sub(c.warnedAt) >= cooldown {
		warn(l.appID)
		c.warnedAt = now
	}
}

func recent(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := hits[:0]
	for _, h := range hits {
		if h.After(cutoff) {
			out = append(out, h)
		}
	}
	return out
}
