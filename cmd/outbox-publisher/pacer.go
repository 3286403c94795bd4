package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// pacer spaces out polls. Consecutive failures double the wait up to the
// ceiling and any success returns it to base. Waits carry jitter so replicas drift apart.
type pacer struct {
	base, ceiling, current time.Duration
}

func newPacer(base, ceiling time.Duration) *pacer {
	return &pacer{base: base, ceiling: ceiling, current: base}
}

func (p *pacer) reset() { p.current = p.base }

func (p *pacer) idle() time.Duration { return jitter(p.base) }

func (p *pacer) failed() time.Duration {
	p.current = nextBackoff(p.current, p.base, p.ceiling)
	return jitter(p.current)
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, ceiling)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
