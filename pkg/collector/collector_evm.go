package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/zama-ai/testnet-faucet-automation/pkg/balance"
	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

// EVMCollector reads native balances through a shared balance.Reader.
type EVMCollector struct {
	network string
	reader  balance.Reader
	unit    currency.Unit
	labels  map[string]string
	timeout time.Duration
}

// EVMCollectorOption defines functional options for EVMCollector
type EVMCollectorOption func(*EVMCollector)

func WithEVMLabels(labels map[string]string) EVMCollectorOption {
	return func(ec *EVMCollector) {
		ec.labels = labels
	}
}

func WithEVMTimeout(timeout time.Duration) EVMCollectorOption {
	return func(ec *EVMCollector) {
		ec.timeout = timeout
	}
}

// NewEVMCollector builds a BaseCollector over accounts. The reader is owned by
// the caller and is not closed by the collector.
func NewEVMCollector(network string, reader balance.Reader, unit currency.Unit, accounts []*Account, opts ...EVMCollectorOption) *BaseCollector {
	evmCollector := &EVMCollector{
		network: network,
		reader:  reader,
		unit:    unit,
		timeout: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(evmCollector)
	}

	return NewBaseCollector(
		network,
		unit,
		accounts,
		evmCollector.labels,
		evmCollector,
		WithCollectorTimeout(evmCollector.timeout),
	)
}

func (ec *EVMCollector) CollectAccountBalance(ctx context.Context, account *Account) (*BaseResult, error) {
	wei, err := ec.reader.BalanceAt(ctx, account.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", account.Address, err)
	}

	converted := ec.unit.Float(wei)
	logger.Debugf("balance for %s: %s wei (%s)", account.Address, wei.String(), ec.unit.String(wei))

	return &BaseResult{
		Network: ec.network,
		Account: *account,
		Value:   converted,
		Health:  1.0,
	}, nil
}

func (ec *EVMCollector) Close() error {
	return nil
}
