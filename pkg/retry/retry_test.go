package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

func init() {
	_ = logger.InitLogger()
}

type recordingSleeper struct {
	slept []time.Duration
	err   error
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return s.err
}

func TestRunSucceedsAfterTwoFailures(t *testing.T) {
	s := &recordingSleeper{}
	policy := Policy{MaxAttempts: 3, BaseWait: 5 * time.Second, Cap: 300 * time.Second}

	calls := 0
	ok := NewRunner(WithSleeper(s.sleep)).Run(context.Background(), "transfer", policy, func(context.Context) bool {
		calls++
		return calls == 3
	})

	assert.True(t, ok)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{policy.Wait(0), policy.Wait(1)}, s.slept)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, s.slept)
}

func TestRunFirstAttemptSuccessNeverSleeps(t *testing.T) {
	s := &recordingSleeper{}
	ok := NewRunner(WithSleeper(s.sleep)).Run(context.Background(), "op", Policy{MaxAttempts: 5, BaseWait: time.Second}, func(context.Context) bool {
		return true
	})
	assert.True(t, ok)
	assert.Empty(t, s.slept)
}

func TestRunExhaustsAttempts(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	ok := NewRunner(WithSleeper(s.sleep)).Run(context.Background(), "op", Policy{MaxAttempts: 4, BaseWait: time.Second, Cap: 3 * time.Second}, func(context.Context) bool {
		calls++
		return false
	})

	assert.False(t, ok)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, s.slept)
}

func TestRunTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	NewRunner(WithSleeper((&recordingSleeper{}).sleep)).Run(context.Background(), "op", Policy{}, func(context.Context) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}

func TestRunStopsWhenSleepIsCancelled(t *testing.T) {
	s := &recordingSleeper{err: context.Canceled}
	calls := 0
	ok := NewRunner(WithSleeper(s.sleep)).Run(context.Background(), "op", Policy{MaxAttempts: 3, BaseWait: time.Second}, func(context.Context) bool {
		calls++
		return false
	})
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestAttemptHook(t *testing.T) {
	var seen []int
	r := NewRunner(
		WithSleeper((&recordingSleeper{}).sleep),
		WithAttemptHook(func(attempt, max int) {
			assert.Equal(t, 2, max)
			seen = append(seen, attempt)
		}),
	)
	r.Run(context.Background(), "op", Policy{MaxAttempts: 2}, func(context.Context) bool { return false })
	assert.Equal(t, []int{1, 2}, seen)
}
