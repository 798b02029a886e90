// Package claim drives one faucet claim for one wallet: baseline balance,
// identity exchange, submission and confirmation by balance increase.
package claim

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/zama-ai/testnet-faucet-automation/pkg/faucet"
	"github.com/zama-ai/testnet-faucet-automation/pkg/identity"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

type State int

const (
	StateIdle State = iota
	StateCapturingBaseline
	StateAuthenticating
	StateSubmitting
	StateAwaitingBalance
	StateConfirmed
	StateTimedOut
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateCapturingBaseline: "capturing_baseline",
	StateAuthenticating:    "authenticating",
	StateSubmitting:        "submitting",
	StateAwaitingBalance:   "awaiting_balance",
	StateConfirmed:         "confirmed",
	StateTimedOut:          "timed_out",
	StateAborted:           "aborted",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateTimedOut || s == StateAborted
}

// Exchanger turns a credential into a faucet session.
type Exchanger interface {
	Exchange(ctx context.Context, credential string, log logger.Logger) (*identity.Session, error)
}

// BalanceWatcher captures a baseline and waits for the balance to exceed it.
type BalanceWatcher interface {
	Baseline(ctx context.Context, address string) (*big.Int, error)
	WaitForIncrease(ctx context.Context, address string, baseline *big.Int, maxWait, interval time.Duration, log logger.Logger) (bool, error)
}

type Options struct {
	Enabled       bool
	MaxWait       time.Duration
	CheckInterval time.Duration
}

// Result describes how a run ended. Outcome is only meaningful once the run
// reached the submission step. Err holds the failure that caused an abort or
// timeout.
type Result struct {
	State     State
	Submitted bool
	Outcome   faucet.Outcome
	Waited    time.Duration
	Err       error
}

func (r Result) Confirmed() bool {
	return r.State == StateConfirmed
}

// Orchestrator runs the claim state machine. It holds no per-wallet state.
type Orchestrator struct {
	opts      Options
	exchanger Exchanger
	submitter faucet.Submitter
	watcher   BalanceWatcher
	onState   func(State)
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithStateHook is called on every transition, including the final one.
func WithStateHook(h func(State)) Option {
	return func(o *Orchestrator) {
		o.onState = h
	}
}

// WithClock replaces time.Now when measuring the balance wait.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(opts Options, exchanger Exchanger, submitter faucet.Submitter, watcher BalanceWatcher, options ...Option) *Orchestrator {
	o := &Orchestrator{opts: opts, exchanger: exchanger, submitter: submitter, watcher: watcher, now: time.Now}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Claim reports whether the faucet funds arrived.
func (o *Orchestrator) Claim(ctx context.Context, credential, address string, log logger.Logger) bool {
	return o.Run(ctx, credential, address, log).Confirmed()
}

// Run executes the full workflow. It never panics on collaborator errors and
// never retries; every failure ends in StateAborted or StateTimedOut.
func (o *Orchestrator) Run(ctx context.Context, credential, address string, log logger.Logger) Result {
	o.enter(StateIdle)
	if !o.opts.Enabled {
		log.Infof("Faucet claiming is disabled")
		return o.abort(Result{}, nil)
	}
	if credential == "" {
		log.Warnf("No Discord token for this wallet, skipping faucet")
		return o.abort(Result{}, nil)
	}

	log.Infof("Starting faucet claim process")

	o.enter(StateCapturingBaseline)
	baseline, err := o.watcher.Baseline(ctx, address)
	if err != nil {
		log.Errorf("Failed to read initial balance: %v", err)
		return o.abort(Result{}, err)
	}

	o.enter(StateAuthenticating)
	session, err := o.exchanger.Exchange(ctx, credential, log)
	if err != nil {
		log.Errorf("Failed to get faucet session token: %v", err)
		return o.abort(Result{}, err)
	}

	o.enter(StateSubmitting)
	outcome := o.submitter.Submit(ctx, session.Token, address, log)
	res := Result{Submitted: true, Outcome: outcome}
	switch outcome.Kind {
	case faucet.KindSuccess:
	case faucet.KindAlreadyClaimed:
		log.Warnf("Faucet already claimed for this wallet")
		return o.abort(res, nil)
	default:
		return o.abort(res, outcome.Err)
	}

	o.enter(StateAwaitingBalance)
	started := o.now()
	increased, err := o.watcher.WaitForIncrease(ctx, address, baseline, o.opts.MaxWait, o.opts.CheckInterval, log)
	res.Waited = o.now().Sub(started)
	if increased {
		log.Infof("Faucet claim successful, balance increased")
		res.State = StateConfirmed
	} else {
		log.Warnf("Faucet request sent but balance did not increase within %v", o.opts.MaxWait)
		res.State = StateTimedOut
		res.Err = err
	}
	o.enter(res.State)
	return res
}

func (o *Orchestrator) enter(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}

func (o *Orchestrator) abort(res Result, err error) Result {
	res.State = StateAborted
	res.Err = err
	o.enter(StateAborted)
	return res
}
