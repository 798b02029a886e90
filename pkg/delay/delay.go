// Package delay paces outbound calls with randomized waits and computes
// capped exponential backoff durations.
package delay

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultBackoffCap bounds every backoff wait.
const DefaultBackoffCap = 300 * time.Second

// Range is an inclusive window of whole seconds.
type Range struct {
	MinSeconds int
	MaxSeconds int
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Policy draws random delays and sleeps for them. A zero Policy is not usable,
// use New.
type Policy struct {
	rng   *rand.Rand
	sleep Sleeper
}

type Option func(*Policy)

// WithSleeper replaces the sleep implementation, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) {
		p.sleep = s
	}
}

// WithSource seeds the random draws deterministically.
func WithSource(src rand.Source) Option {
	return func(p *Policy) {
		p.rng = rand.New(src)
	}
}

func New(opts ...Option) *Policy {
	p := &Policy{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Draw returns a uniformly distributed whole number of seconds in
// [MinSeconds, MaxSeconds]. Negative bounds are clamped to zero and swapped
// bounds are reordered.
func (p *Policy) Draw(r Range) int {
	lo, hi := max(r.MinSeconds, 0), max(r.MaxSeconds, 0)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + p.rng.IntN(hi-lo+1)
}

// Index returns a uniformly random index in [0, n). n must be positive.
func (p *Policy) Index(n int) int {
	return p.rng.IntN(n)
}

// Random draws a delay from r and sleeps for it. It returns the number of
// seconds drawn, even when the sleep was cut short by ctx.
func (p *Policy) Random(ctx context.Context, r Range) (int, error) {
	seconds := p.Draw(r)
	return seconds, p.sleep(ctx, time.Duration(seconds)*time.Second)
}

// Wait sleeps for exactly d using the policy's sleeper.
func (p *Policy) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Backoff returns min(limit, base * 2^attempt). attempt is zero for the first
// retry. A non-positive limit falls back to DefaultBackoffCap.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if limit <= 0 {
		limit = DefaultBackoffCap
	}
	if base <= 0 {
		return 0
	}
	wait := base
	for i := 0; i < attempt; i++ {
		if wait >= limit {
			return limit
		}
		wait *= 2
	}
	return min(wait, limit)
}
