// Package throttle spaces outbound requests so the external endpoints we
// watch are never hit faster than a fixed per-family rate.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum delay between consecutive requests of a family.
// The first request of each family proceeds immediately.
type Pacer struct {
	mu       sync.Mutex
	limiters map[Family]*rate.Limiter
}

// NewPacer creates a Pacer from cfg. A zero interval disables pacing for
// that family.
func NewPacer(cfg Config) *Pacer {
	p := &Pacer{limiters: make(map[Family]*rate.Limiter)}
	for family, interval := range cfg.Intervals() {
		p.limiters[family] = newLimiter(interval)
	}
	return p
}

// Unpaced returns a Pacer that never waits. Useful for tests and dry runs.
func Unpaced() *Pacer {
	return NewPacer(Config{})
}

// Wait blocks until the next request of family may be sent.
func (p *Pacer) Wait(ctx context.Context, family Family) error {
	if p == nil {
		return ctx.Err()
	}
	return p.limiter(family).Wait(ctx)
}

// Set changes the interval of one family.
func (p *Pacer) Set(family Family, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters[family] = newLimiter(interval)
}

func (p *Pacer) limiter(family Family) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[family]
	if !ok {
		l = newLimiter(0)
		p.limiters[family] = l
	}
	return l
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
