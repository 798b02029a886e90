// Package batch processes every wallet of a cycle in order: faucet claim,
// self-transfer with retries, then a randomized pause before the next wallet.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zama-ai/testnet-faucet-automation/pkg/claim"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/faucet"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/metrics"
	"github.com/zama-ai/testnet-faucet-automation/pkg/retry"
	"github.com/zama-ai/testnet-faucet-automation/pkg/wallet"
)

// Claimer runs one faucet claim workflow.
type Claimer interface {
	Run(ctx context.Context, credential, address string, log logger.Logger) claim.Result
}

// ClaimerFactory builds a Claimer whose HTTP traffic goes through proxy. An
// empty proxy means a direct connection.
type ClaimerFactory func(proxy string) (Claimer, error)

// Transferer performs the self-transfer step.
type Transferer interface {
	TransferToSelf(ctx context.Context, w *wallet.Wallet, log logger.Logger) bool
}

type Options struct {
	FaucetEnabled   bool
	TransferEnabled bool
	// AlreadyClaimedCooldown skips the faucet for a wallet that was told it
	// already claimed less than this long ago. Zero retries every cycle.
	AlreadyClaimedCooldown time.Duration
	Retry                  retry.Policy
	// StepDelay paces the gap between a wallet's faucet and transfer steps.
	StepDelay delay.Range
	// WalletPause is the gap between two wallets.
	WalletPause delay.Range
	Proxies     []string
}

// Summary describes one finished cycle.
type Summary struct {
	CycleID         string
	Started         time.Time
	Finished        time.Time
	Wallets         int
	Processed       int
	ClaimsConfirmed int
	ClaimsTimedOut  int
	ClaimsAborted   int
	AlreadyClaimed  int
	ClaimsSkipped   int
	TransfersOK     int
	TransfersFailed int
	Panics          int
}

func (s Summary) String() string {
	return fmt.Sprintf("cycle %s: %d/%d wallets, claims confirmed=%d timed_out=%d aborted=%d already_claimed=%d skipped=%d, transfers ok=%d failed=%d",
		s.CycleID, s.Processed, s.Wallets, s.ClaimsConfirmed, s.ClaimsTimedOut, s.ClaimsAborted, s.AlreadyClaimed,
		s.ClaimsSkipped, s.TransfersOK, s.TransfersFailed)
}

// Driver is reused across cycles so that the already-claimed cooldown
// survives between them. Run must not be called concurrently.
type Driver struct {
	opts       Options
	newClaimer ClaimerFactory
	transferer Transferer
	delays     *delay.Policy
	runner     *retry.Runner
	metrics    *metrics.Metrics
	now        func() time.Time

	mu           sync.Mutex
	claimedUntil map[string]time.Time
	last         *Summary
}

type Option func(*Driver)

func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

func NewDriver(opts Options, newClaimer ClaimerFactory, transferer Transferer, delays *delay.Policy, options ...Option) *Driver {
	d := &Driver{
		opts:         opts,
		newClaimer:   newClaimer,
		transferer:   transferer,
		delays:       delays,
		now:          time.Now,
		claimedUntil: make(map[string]time.Time),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.NewUnregistered()
	}
	d.runner = retry.NewRunner(
		retry.WithSleeper(delays.Wait),
		retry.WithAttemptHook(func(int, int) {
			d.metrics.RetryAttempts.WithLabelValues("self_transfer").Inc()
		}),
	)
	return d
}

// Run processes wallets in order. A cancelled ctx stops the cycle between
// steps; everything else is logged and the next wallet proceeds.
func (d *Driver) Run(ctx context.Context, wallets []*wallet.Wallet) Summary {
	sum := Summary{CycleID: uuid.NewString(), Started: d.now(), Wallets: len(wallets)}
	logger.Infof("Starting cycle %s with %d wallets", sum.CycleID, len(wallets))

	for i, w := range wallets {
		if ctx.Err() != nil {
			logger.Warnf("Cycle %s interrupted before wallet %s", sum.CycleID, w.Label())
			break
		}
		log := logger.Wallet(w.Index, w.Total, w.Address.Hex()).With("cycle", sum.CycleID)
		log.Infof("Processing wallet %s", w.Label())

		d.processWallet(ctx, w, log, &sum)
		sum.Processed++

		if i < len(wallets)-1 {
			seconds, err := d.delays.Random(ctx, d.opts.WalletPause)
			if err != nil {
				break
			}
			log.Infof("Waited %d seconds before next wallet", seconds)
		}
	}

	sum.Finished = d.now()
	d.record(sum)
	logger.Infof("Wallet processing completed: %s", sum)
	return sum
}

// Last returns the summary of the most recent cycle, if any.
func (d *Driver) Last() (Summary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return Summary{}, false
	}
	return *d.last, true
}

func (d *Driver) processWallet(ctx context.Context, w *wallet.Wallet, log logger.Logger, sum *Summary) {
	if d.opts.FaucetEnabled {
		if d.safely(log, "faucet", func() { d.claimStep(ctx, w, log, sum) }) {
			sum.Panics++
		}
	}

	if d.opts.TransferEnabled {
		if d.safely(log, "transfer", func() { d.transferStep(ctx, w, log, sum) }) {
			sum.Panics++
			sum.TransfersFailed++
		}
	}
}

func (d *Driver) claimStep(ctx context.Context, w *wallet.Wallet, log logger.Logger, sum *Summary) {
	address := w.Address.Hex()
	if until, ok := d.cooldown(address); ok {
		log.Infof("Faucet already claimed, skipping until %s", until.Format(time.RFC3339))
		sum.ClaimsSkipped++
		return
	}

	proxy := d.pickProxy()
	if proxy != "" {
		log.Infof("Using proxy: %s", proxy)
	}
	claimer, err := d.newClaimer(proxy)
	if err != nil {
		log.Errorf("Failed to set up faucet client: %v", err)
		sum.ClaimsAborted++
		return
	}

	res := claimer.Run(ctx, w.Credential, address, log)
	d.metrics.Claims.WithLabelValues(res.State.String()).Inc()
	if res.Submitted {
		d.metrics.FaucetOutcomes.WithLabelValues(res.Outcome.Kind.String()).Inc()
	}

	switch {
	case res.State == claim.StateConfirmed:
		sum.ClaimsConfirmed++
	case res.State == claim.StateTimedOut:
		sum.ClaimsTimedOut++
	case res.Submitted && res.Outcome.Kind == faucet.KindAlreadyClaimed:
		sum.AlreadyClaimed++
		d.startCooldown(address)
	default:
		sum.ClaimsAborted++
	}
	if res.State == claim.StateConfirmed || res.State == claim.StateTimedOut {
		d.metrics.BalanceWait.Observe(res.Waited.Seconds())
	}

	if w.Credential != "" {
		if _, err := d.delays.Random(ctx, d.opts.StepDelay); err != nil {
			log.Debugf("Delay before next operation interrupted: %v", err)
		}
	}
}

func (d *Driver) transferStep(ctx context.Context, w *wallet.Wallet, log logger.Logger, sum *Summary) {
	ok := d.runner.Run(ctx, "Transferring tokens", d.opts.Retry, func(ctx context.Context) bool {
		return d.transferer.TransferToSelf(ctx, w, log)
	})
	if ok {
		sum.TransfersOK++
		d.metrics.Transfers.WithLabelValues("success").Inc()
		return
	}
	sum.TransfersFailed++
	d.metrics.Transfers.WithLabelValues("failure").Inc()
}

// safely runs fn and reports whether it panicked.
func (d *Driver) safely(log logger.Logger, step string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Error in %s step: %v\n%s", step, r, debug.Stack())
			panicked = true
		}
	}()
	fn()
	return false
}

func (d *Driver) pickProxy() string {
	if len(d.opts.Proxies) == 0 {
		return ""
	}
	return d.opts.Proxies[d.delays.Index(len(d.opts.Proxies))]
}

func (d *Driver) cooldown(address string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.claimedUntil[address]
	if !ok {
		return time.Time{}, false
	}
	if !d.now().Before(until) {
		delete(d.claimedUntil, address)
		return time.Time{}, false
	}
	return until, true
}

func (d *Driver) startCooldown(address string) {
	if d.opts.AlreadyClaimedCooldown <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimedUntil[address] = d.now().Add(d.opts.AlreadyClaimedCooldown)
}

func (d *Driver) record(sum Summary) {
	d.mu.Lock()
	d.last = &sum
	d.mu.Unlock()

	d.metrics.LastCycle.Set(float64(sum.Finished.Unix()))
	d.metrics.CycleWallets.WithLabelValues("processed").Set(float64(sum.Processed))
	d.metrics.CycleWallets.WithLabelValues("claims_confirmed").Set(float64(sum.ClaimsConfirmed))
	d.metrics.CycleWallets.WithLabelValues("transfers_ok").Set(float64(sum.TransfersOK))
}
