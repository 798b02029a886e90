package collector

import (
	"fmt"

	"github.com/zama-ai/testnet-faucet-automation/pkg/balance"
	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/wallet"
)

// AccountsFromWallets names each wallet by its position, e.g. "wallet-3".
func AccountsFromWallets(wallets []*wallet.Wallet) []*Account {
	accounts := make([]*Account, 0, len(wallets))
	for _, w := range wallets {
		accounts = append(accounts, &Account{
			Name:    fmt.Sprintf("wallet-%d", w.Index),
			Address: w.Address.Hex(),
		})
	}
	return accounts
}

// NewCollector builds the wallet balance collector for the configured network.
func NewCollector(cfg *config.Schema, reader balance.Reader, wallets []*wallet.Wallet) *BaseCollector {
	network := cfg.Global.Environment
	if network == "" {
		network = "testnet"
	}
	labels := map[string]string{}
	if cfg.Network.ChainID != 0 {
		labels["chain_id"] = fmt.Sprint(cfg.Network.ChainID)
	}

	logger.Infof("initializing wallet balance collector for %s (%d wallets)", network, len(wallets))
	return NewEVMCollector(
		network,
		reader,
		currency.Native(cfg.Network.CurrencySymbol),
		AccountsFromWallets(wallets),
		WithEVMLabels(labels),
	)
}
