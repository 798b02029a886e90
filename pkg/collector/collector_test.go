package collector

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
)

// MockAccountCollector implements IAccountCollector for testing
type MockAccountCollector struct {
	CollectAccountBalanceFunc func(ctx context.Context, account *Account) (*BaseResult, error)
	CloseFunc                 func() error
}

func (m *MockAccountCollector) CollectAccountBalance(ctx context.Context, account *Account) (*BaseResult, error) {
	if m.CollectAccountBalanceFunc != nil {
		return m.CollectAccountBalanceFunc(ctx, account)
	}
	return nil, nil
}

func (m *MockAccountCollector) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func TestBaseCollector_CollectMetrics(t *testing.T) {
	tests := []struct {
		name       string
		accounts   []*Account
		timeout    time.Duration
		wantHealth []float64
	}{
		{
			name: "successful collection",
			accounts: []*Account{
				{Name: "wallet-1", Address: "address-1"},
				{Name: "wallet-2", Address: "address-2"},
			},
			timeout:    5 * time.Second,
			wantHealth: []float64{1, 1},
		},
		{
			name: "collection with timeout",
			accounts: []*Account{
				{Name: "wallet-1", Address: "address-1"},
			},
			timeout:    time.Nanosecond,
			wantHealth: []float64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockProcessor := &MockAccountCollector{
				CollectAccountBalanceFunc: func(ctx context.Context, account *Account) (*BaseResult, error) {
					if tt.timeout < time.Millisecond {
						<-ctx.Done()
						return nil, ctx.Err()
					}
					return &BaseResult{Network: "testnet", Account: *account, Value: 1.0, Health: 1.0}, nil
				},
			}

			collector := NewBaseCollector("testnet", currency.Native("ETH"), tt.accounts, nil, mockProcessor, WithCollectorTimeout(tt.timeout))
			results := collector.collectMetrics()
			require.Len(t, results, len(tt.accounts))

			sort.Slice(results, func(i, j int) bool {
				return results[i].Account.Address < results[j].Account.Address
			})
			for i, result := range results {
				assert.Equal(t, tt.accounts[i].Address, result.Account.Address)
				assert.Equal(t, "testnet", result.Network)
				assert.Equal(t, tt.wantHealth[i], result.Health)
			}
		})
	}
}

func TestBaseCollector_Collect(t *testing.T) {
	accounts := []*Account{
		{Name: "wallet-1", Address: "0x1"},
		{Name: "wallet-2", Address: "0x2"},
	}
	mockProcessor := &MockAccountCollector{
		CollectAccountBalanceFunc: func(_ context.Context, account *Account) (*BaseResult, error) {
			if account.Address == "0x2" {
				return nil, errors.New("rpc unavailable")
			}
			return &BaseResult{Network: "testnet", Account: *account, Value: 1.5, Health: 1.0}, nil
		},
	}
	collector := NewBaseCollector("testnet", currency.Native("tZKJ"), accounts, map[string]string{"chain_id": "18880"}, mockProcessor)

	expected := `
# HELP testnet_wallet_balance Native balance of managed testnet wallets
# TYPE testnet_wallet_balance gauge
testnet_wallet_balance{account_name="wallet-1",address="0x1",chain_id="18880",network="testnet",unit="tZKJ"} 1.5
# HELP testnet_wallet_health 1 when the wallet balance could be read
# TYPE testnet_wallet_health gauge
testnet_wallet_health{account_name="wallet-1",address="0x1",chain_id="18880",network="testnet"} 1
testnet_wallet_health{account_name="wallet-2",address="0x2",chain_id="18880",network="testnet"} 0
`
	assert.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected)))
	assert.Equal(t, "testnet", collector.Name())
	assert.NoError(t, collector.Close())
}
