package collector

import (
	"context"
	"sync"
	"time"

	"github.com/carlmjohnson/flowmatic"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

const (
	DefaultMaxConcurrency = 10
)

// Account is one wallet exported by the collector.
type Account struct {
	Name    string
	Address string
}

type BaseResult struct {
	Network string
	Account Account
	Value   float64
	Health  float64
}

// BaseCollector provides enhanced common functionality for all collectors
type BaseCollector struct {
	network      string
	metrics      *prometheus.GaugeVec
	health       *prometheus.GaugeVec
	processor    IAccountCollector
	timeout      time.Duration
	accounts     []*Account
	collectMutex sync.Mutex
}

// CollectorOption defines functional options for BaseCollector
type CollectorOption func(*BaseCollector)

// WithCollectorTimeout sets the timeout for collection operations
func WithCollectorTimeout(timeout time.Duration) CollectorOption {
	return func(c *BaseCollector) {
		c.timeout = timeout
	}
}

// IAccountCollector fetches the balance of a single account.
type IAccountCollector interface {
	CollectAccountBalance(ctx context.Context, account *Account) (*BaseResult, error)
	Close() error
}

// NewBaseCollector exports testnet_wallet_balance and testnet_wallet_health
// for every account. labels become constant labels on both gauges.
func NewBaseCollector(network string, unit currency.Unit, accounts []*Account, labels map[string]string, processor IAccountCollector, opts ...CollectorOption) *BaseCollector {
	constLabelsHealth := prometheus.Labels{"network": network}
	for k, v := range labels {
		constLabelsHealth[k] = v
	}
	constLabels := prometheus.Labels{"unit": unit.Symbol}
	for k, v := range constLabelsHealth {
		constLabels[k] = v
	}
	logger.Debugf("constLabels: %v", constLabels)

	collector := &BaseCollector{
		network:   network,
		processor: processor,
		timeout:   10 * time.Second,
		accounts:  accounts,
		metrics: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "testnet_wallet_balance",
				Help:        "Native balance of managed testnet wallets",
				ConstLabels: constLabels,
			},
			[]string{"address", "account_name"},
		),
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "testnet_wallet_health",
				Help:        "1 when the wallet balance could be read",
				ConstLabels: constLabelsHealth,
			},
			[]string{"address", "account_name"},
		),
	}

	for _, opt := range opts {
		opt(collector)
	}

	return collector
}

// collectMetrics reads all balances concurrently. A failed read yields a
// result with zero health.
func (c *BaseCollector) collectMetrics() []*BaseResult {
	results := make([]*BaseResult, 0, len(c.accounts))
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resultsChan := make(chan *BaseResult, len(c.accounts))

	err := flowmatic.Each(DefaultMaxConcurrency, c.accounts, func(account *Account) error {
		logger.Debugf("collecting metrics for account: %s", account.Address)

		result, err := c.processor.CollectAccountBalance(ctx, account)
		if err != nil {
			logger.Errorf("error collecting metrics for account %s: %v", account.Address, err)
			result = &BaseResult{
				Network: c.network,
				Account: *account,
				Health:  0,
			}
		}

		resultsChan <- result
		return nil
	})

	if err != nil {
		logger.Errorf("error in collection process: %v", err)
	}

	close(resultsChan)
	for result := range resultsChan {
		results = append(results, result)
	}

	return results
}

// Implement prometheus.Collector interface
func (c *BaseCollector) Describe(ch chan<- *prometheus.Desc) {
	c.metrics.Describe(ch)
	c.health.Describe(ch)
}

func (c *BaseCollector) Collect(ch chan<- prometheus.Metric) {
	c.collectMutex.Lock()
	defer c.collectMutex.Unlock()
	logger.Debugf("collecting wallet balances on %s", c.network)

	c.metrics.Reset()
	c.health.Reset()
	for _, result := range c.collectMetrics() {
		labels := prometheus.Labels{
			"address":      result.Account.Address,
			"account_name": result.Account.Name,
		}

		c.health.With(labels).Set(result.Health)
		if result.Health > 0 {
			c.metrics.With(labels).Set(result.Value)
		}
	}
	c.health.Collect(ch)
	c.metrics.Collect(ch)
}

func (c *BaseCollector) Name() string {
	return c.network
}

// Close implements proper cleanup
func (c *BaseCollector) Close() error {
	return c.processor.Close()
}
