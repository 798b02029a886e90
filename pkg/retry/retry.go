// Package retry runs boolean operations with capped exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	BaseWait    time.Duration
	Cap         time.Duration
}

// Wait returns the backoff before retry number attempt (zero based).
func (p Policy) Wait(attempt int) time.Duration {
	return delay.Backoff(p.BaseWait, p.Cap, attempt)
}

// Operation reports success with its return value. It handles its own errors.
type Operation func(ctx context.Context) bool

// AttemptHook is called before each attempt, attempt is one based.
type AttemptHook func(attempt, maxAttempts int)

type Runner struct {
	sleep   delay.Sleeper
	log     logger.Logger
	onRetry AttemptHook
}

type Option func(*Runner)

func WithSleeper(s delay.Sleeper) Option {
	return func(r *Runner) {
		r.sleep = s
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithAttemptHook registers a callback invoked before every attempt.
func WithAttemptHook(h AttemptHook) Option {
	return func(r *Runner) {
		r.onRetry = h
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{sleep: delay.Sleep}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.GetLogger()
	}
	return r
}

// Run invokes op until it succeeds or policy.MaxAttempts invocations have
// been made, sleeping policy.Wait(i) after the i-th failure. It never sleeps
// after the final attempt. A cancelled ctx stops the loop early with false.
func (r *Runner) Run(ctx context.Context, name string, policy Policy, op Operation) bool {
	attempts := max(policy.MaxAttempts, 1)

	for attempt := 0; attempt < attempts; attempt++ {
		if r.onRetry != nil {
			r.onRetry(attempt+1, attempts)
		}
		r.log.Infof("%s (attempt %d/%d)", name, attempt+1, attempts)

		if op(ctx) {
			return true
		}
		if attempt == attempts-1 {
			break
		}

		wait := policy.Wait(attempt)
		r.log.Warnf("%s failed, waiting %v before retry", name, wait)
		if err := r.sleep(ctx, wait); err != nil {
			r.log.Warnf("%s retry aborted: %v", name, err)
			return false
		}
	}

	r.log.Errorf("%s failed after %d attempts", name, attempts)
	return false
}
