package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

// idleEvict is how long an unused per-key limiter is kept.
const idleEvict = 10 * time.Minute

type keyLimiter struct {
	lim      *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket: limit tokens refilled evenly over
// window, with a burst of limit.
type RateLimiter struct {
	mu     sync.Mutex
	keys   map[string]*keyLimiter
	now    func() time.Time
	lastGC time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{keys: make(map[string]*keyLimiter), now: time.Now}
}

// Allow reports whether one more request for key fits in limit per window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kl, ok := rl.keys[key]
	if !ok || kl.limit != limit || kl.window != window {
		every := rate.Every(window / time.Duration(limit))
		kl = &keyLimiter{lim: rate.NewLimiter(every, limit), limit: limit, window: window}
		rl.keys[key] = kl
	}
	kl.lastSeen = now
	rl.gc(now)
	return kl.lim.AllowN(now, 1), nil
}

func (rl *RateLimiter) gc(now time.Time) {
	if now.Sub(rl.lastGC) < idleEvict {
		return
	}
	rl.lastGC = now
	for k, kl := range rl.keys {
		if now.Sub(kl.lastSeen) > idleEvict {
			delete(rl.keys, k)
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
