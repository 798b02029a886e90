package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

var ErrTimeout = errors.New("balance: timed out waiting for increase")

// Watcher polls a Reader until a balance exceeds a baseline.
type Watcher struct {
	reader Reader
	unit   currency.Unit
	sleep  delay.Sleeper
	now    func() time.Time
}

type WatcherOption func(*Watcher)

func WithSleeper(s delay.Sleeper) WatcherOption {
	return func(w *Watcher) {
		w.sleep = s
	}
}

// WithClock replaces time.Now when measuring the deadline.
func WithClock(now func() time.Time) WatcherOption {
	return func(w *Watcher) {
		w.now = now
	}
}

func WithUnit(u currency.Unit) WatcherOption {
	return func(w *Watcher) {
		w.unit = u
	}
}

func NewWatcher(reader Reader, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		reader: reader,
		unit:   currency.Native(""),
		sleep:  delay.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Baseline reads the current balance.
func (w *Watcher) Baseline(ctx context.Context, address string) (*big.Int, error) {
	return w.reader.BalanceAt(ctx, address)
}

// WaitForIncrease sleeps interval, reads the balance and returns true as soon
// as it is strictly greater than baseline. It gives up once maxWait has
// elapsed, after the poll that crossed the deadline. A nil baseline is read
// first. A failed read ends the wait.
func (w *Watcher) WaitForIncrease(ctx context.Context, address string, baseline *big.Int, maxWait, interval time.Duration, log logger.Logger) (bool, error) {
	log.Infof("Waiting for balance to increase after faucet claim")

	if baseline == nil {
		b, err := w.Baseline(ctx, address)
		if err != nil {
			log.Errorf("Error waiting for balance increase: %v", err)
			return false, err
		}
		baseline = b
		log.Infof("Initial balance: %s", w.unit.String(baseline))
	}

	start := w.now()
	var waited time.Duration
	for waited < maxWait {
		if err := w.sleep(ctx, interval); err != nil {
			return false, fmt.Errorf("balance wait interrupted: %w", err)
		}
		waited = w.now().Sub(start)

		current, err := w.reader.BalanceAt(ctx, address)
		if err != nil {
			log.Errorf("Error waiting for balance increase: %v", err)
			return false, err
		}
		log.Debugf("Current balance: %s (waited %ds)", w.unit.String(current), int(waited.Seconds()))

		if current.Cmp(baseline) > 0 {
			log.Infof("Balance increased from %s to %s", w.unit.Format(baseline), w.unit.String(current))
			return true, nil
		}
	}

	log.Warnf("Timeout waiting for balance to increase after %d seconds", int(maxWait.Seconds()))
	return false, ErrTimeout
}
