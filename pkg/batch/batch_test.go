package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zama-ai/testnet-faucet-automation/pkg/claim"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/faucet"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/metrics"
	"github.com/zama-ai/testnet-faucet-automation/pkg/retry"
	"github.com/zama-ai/testnet-faucet-automation/pkg/wallet"
)

func init() {
	_ = logger.InitLogger()
}

var testKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
}

type mockClaimer struct {
	runFunc func(credential, address string) claim.Result
}

func (m *mockClaimer) Run(_ context.Context, credential, address string, _ logger.Logger) claim.Result {
	return m.runFunc(credential, address)
}

type mockTransferer struct {
	calls        []string
	transferFunc func(w *wallet.Wallet) bool
}

func (m *mockTransferer) TransferToSelf(_ context.Context, w *wallet.Wallet, _ logger.Logger) bool {
	m.calls = append(m.calls, w.Address.Hex())
	if m.transferFunc != nil {
		return m.transferFunc(w)
	}
	return true
}

type harness struct {
	slept   []time.Duration
	now     time.Time
	claims  []string
	proxies []string
	metrics *metrics.Metrics
}

func (h *harness) policy() *delay.Policy {
	return delay.New(delay.WithSleeper(func(_ context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}))
}

func (h *harness) factory(result func(credential string) claim.Result) ClaimerFactory {
	return func(proxy string) (Claimer, error) {
		h.proxies = append(h.proxies, proxy)
		return &mockClaimer{runFunc: func(credential, address string) claim.Result {
			h.claims = append(h.claims, address)
			return result(credential)
		}}, nil
	}
}

func confirmed(string) claim.Result {
	return claim.Result{State: claim.StateConfirmed, Submitted: true, Outcome: faucet.Outcome{Kind: faucet.KindSuccess}}
}

func alreadyClaimed(string) claim.Result {
	return claim.Result{State: claim.StateAborted, Submitted: true, Outcome: faucet.Outcome{Kind: faucet.KindAlreadyClaimed}}
}

func testWallets(t *testing.T, n int, credentials ...string) []*wallet.Wallet {
	t.Helper()
	ws, err := wallet.Build(testKeys[:n], credentials)
	require.NoError(t, err)
	return ws
}

func baseOptions() Options {
	return Options{
		FaucetEnabled:   true,
		TransferEnabled: true,
		Retry:           retry.Policy{MaxAttempts: 3, BaseWait: 5 * time.Second, Cap: 300 * time.Second},
		StepDelay:       delay.Range{MinSeconds: 2, MaxSeconds: 2},
		WalletPause:     delay.Range{MinSeconds: 7, MaxSeconds: 7},
	}
}

func newHarnessDriver(h *harness, opts Options, result func(string) claim.Result, tr Transferer) *Driver {
	h.now = time.Unix(1_700_000_000, 0)
	h.metrics = metrics.NewUnregistered()
	return NewDriver(opts, h.factory(result), tr, h.policy(), WithClock(func() time.Time { return h.now }), WithMetrics(h.metrics))
}

func TestRunProcessesWalletsInOrder(t *testing.T) {
	h := &harness{}
	tr := &mockTransferer{}
	ws := testWallets(t, 3, "a", "b", "c")
	d := newHarnessDriver(h, baseOptions(), confirmed, tr)

	sum := d.Run(context.Background(), ws)

	order := []string{ws[0].Address.Hex(), ws[1].Address.Hex(), ws[2].Address.Hex()}
	assert.Equal(t, order, h.claims)
	assert.Equal(t, order, tr.calls)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 3, sum.ClaimsConfirmed)
	assert.Equal(t, 3, sum.TransfersOK)

	// step delay after each claim, pause between wallets but not after the last
	s, p := 2*time.Second, 7*time.Second
	assert.Equal(t, []time.Duration{s, p, s, p, s}, h.slept)

	_, err := uuid.Parse(sum.CycleID)
	assert.NoError(t, err)
	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, sum.CycleID, last.CycleID)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.Claims.WithLabelValues("confirmed")))
	assert.Equal(t, float64(h.now.Unix()), testutil.ToFloat64(h.metrics.LastCycle))
}

func TestRunRetriesTransferWithBackoff(t *testing.T) {
	h := &harness{}
	attempts := 0
	tr := &mockTransferer{transferFunc: func(*wallet.Wallet) bool {
		attempts++
		return attempts == 3
	}}
	opts := baseOptions()
	opts.FaucetEnabled = false
	d := newHarnessDriver(h, opts, confirmed, tr)

	sum := d.Run(context.Background(), testWallets(t, 1))
	assert.Equal(t, 1, sum.TransfersOK)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, h.slept)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.RetryAttempts.WithLabelValues("self_transfer")))
	assert.Empty(t, h.claims)
}

func TestRunTransferExhaustsRetries(t *testing.T) {
	h := &harness{}
	tr := &mockTransferer{transferFunc: func(*wallet.Wallet) bool { return false }}
	opts := baseOptions()
	opts.FaucetEnabled = false
	d := newHarnessDriver(h, opts, confirmed, tr)

	sum := d.Run(context.Background(), testWallets(t, 1))
	assert.Equal(t, 1, sum.TransfersFailed)
	assert.Len(t, tr.calls, 3)
}

func TestRunRecoversFromPanics(t *testing.T) {
	h := &harness{}
	tr := &mockTransferer{}
	d := newHarnessDriver(h, baseOptions(), func(string) claim.Result { panic("boom") }, tr)

	ws := testWallets(t, 2, "a", "b")
	sum := d.Run(context.Background(), ws)

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 2, sum.Panics)
	assert.Equal(t, 2, sum.TransfersOK, "a faucet failure must not prevent the transfer")
}

func TestRunFactoryErrorStillTransfers(t *testing.T) {
	h := &harness{}
	tr := &mockTransferer{}
	d := NewDriver(baseOptions(), func(string) (Claimer, error) { return nil, errors.New("bad proxy") }, tr, h.policy())

	sum := d.Run(context.Background(), testWallets(t, 1, "a"))
	assert.Equal(t, 1, sum.ClaimsAborted)
	assert.Equal(t, 1, sum.TransfersOK)
}

func TestAlreadyClaimedCooldown(t *testing.T) {
	h := &harness{}
	opts := baseOptions()
	opts.TransferEnabled = false
	opts.AlreadyClaimedCooldown = 24 * time.Hour
	d := newHarnessDriver(h, opts, alreadyClaimed, &mockTransferer{})
	ws := testWallets(t, 1, "a")

	first := d.Run(context.Background(), ws)
	assert.Equal(t, 1, first.AlreadyClaimed)

	h.now = h.now.Add(8 * time.Hour)
	second := d.Run(context.Background(), ws)
	assert.Equal(t, 1, second.ClaimsSkipped)
	assert.Len(t, h.claims, 1)

	h.now = h.now.Add(16 * time.Hour)
	third := d.Run(context.Background(), ws)
	assert.Equal(t, 1, third.AlreadyClaimed)
	assert.Len(t, h.claims, 2)
}

func TestAlreadyClaimedWithoutCooldownRetriesEveryCycle(t *testing.T) {
	h := &harness{}
	opts := baseOptions()
	opts.TransferEnabled = false
	d := newHarnessDriver(h, opts, alreadyClaimed, &mockTransferer{})
	ws := testWallets(t, 1, "a")

	d.Run(context.Background(), ws)
	d.Run(context.Background(), ws)
	assert.Len(t, h.claims, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.FaucetOutcomes.WithLabelValues("already_claimed")))
}

func TestRunPicksProxy(t *testing.T) {
	h := &harness{}
	opts := baseOptions()
	opts.Proxies = []string{"http://10.0.0.1:8080"}
	d := newHarnessDriver(h, opts, confirmed, &mockTransferer{})

	d.Run(context.Background(), testWallets(t, 2, "a", "b"))
	assert.Equal(t, []string{"http://10.0.0.1:8080", "http://10.0.0.1:8080"}, h.proxies)
}

func TestRunWithoutCredentialSkipsStepDelay(t *testing.T) {
	h := &harness{}
	opts := baseOptions()
	opts.TransferEnabled = false
	aborted := func(string) claim.Result { return claim.Result{State: claim.StateAborted} }
	d := newHarnessDriver(h, opts, aborted, &mockTransferer{})

	sum := d.Run(context.Background(), testWallets(t, 1))
	assert.Equal(t, 1, sum.ClaimsAborted)
	assert.Empty(t, h.slept)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	h := &harness{}
	ctx, cancel := context.WithCancel(context.Background())
	tr := &mockTransferer{transferFunc: func(*wallet.Wallet) bool {
		cancel()
		return true
	}}
	opts := baseOptions()
	opts.FaucetEnabled = false
	d := newHarnessDriver(h, opts, confirmed, tr)

	sum := d.Run(ctx, testWallets(t, 3))
	assert.Equal(t, 1, sum.Processed)
	assert.Len(t, tr.calls, 1)
}

func TestLastBeforeAnyCycle(t *testing.T) {
	d := NewDriver(baseOptions(), nil, &mockTransferer{}, delay.New())
	_, ok := d.Last()
	assert.False(t, ok)
}
