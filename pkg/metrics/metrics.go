// Package metrics holds the Prometheus instruments updated by the batch driver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "testnet"

type Metrics struct {
	Claims         *prometheus.CounterVec
	FaucetOutcomes *prometheus.CounterVec
	Transfers      *prometheus.CounterVec
	RetryAttempts  *prometheus.CounterVec
	BalanceWait    prometheus.Histogram
	LastCycle      prometheus.Gauge
	CycleWallets   *prometheus.GaugeVec
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faucet_claims_total",
			Help:      "Faucet claim workflows by final state",
		}, []string{"state"}),
		FaucetOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faucet_outcomes_total",
			Help:      "Faucet API responses by outcome kind",
		}, []string{"kind"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_transfers_total",
			Help:      "Self-transfer steps by result",
		}, []string{"result"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Attempts made by retried operations",
		}, []string{"operation"}),
		BalanceWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_wait_seconds",
			Help:      "Time spent waiting for a balance increase after a faucet claim",
			Buckets:   []float64{5, 10, 30, 60, 120, 180, 240, 300, 600},
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time at which the last batch cycle finished",
		}),
		CycleWallets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_wallets",
			Help:      "Wallet counts of the last batch cycle by result",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Claims, m.FaucetOutcomes, m.Transfers, m.RetryAttempts, m.BalanceWait, m.LastCycle, m.CycleWallets)
	return m
}

// NewUnregistered is handy for tests and for runs without a metrics endpoint.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
