package scrape

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"filmlog/internal/config"
)

// Limiter is the politeness budget shared by every job in the process: a
// token bucket for sustained rate, a global in-flight ceiling, at most one
// in-flight request per username, and a site-wide cooldown deadline set when
// the site answers 429.
type Limiter struct {
	bucket *rate.Limiter
	slots  chan struct{}

	mu            sync.Mutex
	users         map[string]*userSlot
	cooldownUntil time.Time
	now           func() time.Time
}

type userSlot struct {
	ch   chan struct{}
	refs int
}

// NewLimiter builds a limiter from scraper config.
func NewLimiter(cfg *config.Config) *Limiter {
	concurrency := cfg.Scraper.GlobalConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	burst := cfg.Scraper.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(cfg.Scraper.RequestsPerSecond), burst),
		slots:  make(chan struct{}, concurrency),
		users:  make(map[string]*userSlot),
		now:    time.Now,
	}
}

// Acquire waits for the cooldown to pass, the username's slot, a global slot,
// and a rate token, in that order. The returned release must be called once
// the request finishes.
func (l *Limiter) Acquire(ctx context.Context, username string) (func(), error) {
	if err := l.WaitCooldown(ctx); err != nil {
		return nil, err
	}

	slot := l.userSlot(username)
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.dropUser(username)
		return nil, ctx.Err()
	}
	releaseUser := func() {
		<-slot.ch
		l.dropUser(username)
	}

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		releaseUser()
		return nil, ctx.Err()
	}
	releaseAll := func() {
		<-l.slots
		releaseUser()
	}

	if err := l.bucket.Wait(ctx); err != nil {
		releaseAll()
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// Cooldown pauses every caller of Acquire for at least d. Overlapping
// cooldowns keep the later deadline.
func (l *Limiter) Cooldown(d time.Duration) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(d)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
	return l.cooldownUntil
}

// CooldownRemaining returns how long callers will still be paused.
func (l *Limiter) CooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.cooldownUntil.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// WaitCooldown blocks until no cooldown is in effect.
func (l *Limiter) WaitCooldown(ctx context.Context) error {
	for {
		remaining := l.CooldownRemaining()
		if remaining <= 0 {
			return ctx.Err()
		}
		if err := sleepContext(ctx, remaining); err != nil {
			return err
		}
	}
}

// InFlight returns the number of requests currently holding a global slot.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}

func (l *Limiter) userSlot(username string) *userSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.users[username]
	if !ok {
		slot = &userSlot{ch: make(chan struct{}, 1)}
		l.users[username] = slot
	}
	slot.refs++
	return slot
}

func (l *Limiter) dropUser(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.users[username]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(l.users, username)
	}
}
