package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces minimum spacing between dispatch starts: at least
// siteDelay between two dispatches to the same site, and at least
// globalDelay between any two dispatches. Each floor is a token bucket
// with burst 1, so the first dispatch through either is immediate.
//
// The per-site limiter map is the only shared mutable state and is
// guarded by a mutex; the limiters themselves are safe for concurrent
// use.
type RateLimiter struct {
	mu      sync.Mutex
	perSite map[string]*rate.Limiter

	global      *rate.Limiter
	siteDelay   time.Duration
	globalDelay time.Duration
}

// NewRateLimiter creates a limiter with the two spacing floors. A zero
// delay disables that floor.
func NewRateLimiter(siteDelay, globalDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		perSite:     make(map[string]*rate.Limiter),
		global:      rate.NewLimiter(every(globalDelay), 1),
		siteDelay:   siteDelay,
		globalDelay: globalDelay,
	}
}

// Wait blocks the calling worker until both spacing floors allow a
// dispatch to the given site. Both floors are measured against dispatch
// starts, so the tokens are only spent when site and global reservations
// clear in the same instant; a reservation that would commit one floor
// while the other still blocks is given back and retried after the
// longer remaining wait. Sequentially satisfying the floors instead
// would anchor the site floor at token grant and let an uneven global
// wait compress same-site spacing below siteDelay.
func (rl *RateLimiter) Wait(ctx context.Context, site string) error {
	siteLim := rl.siteLimiter(site)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		siteRes := siteLim.Reserve()
		globalRes := rl.global.Reserve()
		delay := siteRes.Delay()
		if d := globalRes.Delay(); d > delay {
			delay = d
		}
		if delay == 0 {
			return nil
		}
		siteRes.Cancel()
		globalRes.Cancel()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) siteLimiter(site string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.perSite[site]
	if !ok {
		lim = rate.NewLimiter(every(rl.siteDelay), 1)
		rl.perSite[site] = lim
	}
	return lim
}

// every converts a minimum spacing into a limiter rate. rate.Every(0)
// already means unlimited, which is exactly the disabled-floor case.
func every(d time.Duration) rate.Limit {
	return rate.Every(d)
}
