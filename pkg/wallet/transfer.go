package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

// TransferGasLimit is the intrinsic gas of a plain value transfer.
const TransferGasLimit = 21000

var (
	ErrEmptyBalance     = errors.New("wallet: balance is zero")
	ErrInsufficientFund = errors.New("wallet: balance does not cover gas")
	ErrReceiptTimeout   = errors.New("wallet: timed out waiting for receipt")
	ErrTxReverted       = errors.New("wallet: transaction failed")
)

// EthClient is the subset of ethclient.Client used for transfers.
type EthClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type TransferOptions struct {
	// AmountPercentage of the balance is sent, 1 to 100.
	AmountPercentage int
	// GasPriceMultiplier scales the node's suggested gas price.
	GasPriceMultiplier  float64
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

type Transferer struct {
	client EthClient
	opts   TransferOptions
	unit   currency.Unit
	sleep  delay.Sleeper
	now    func() time.Time
}

type TransferOption func(*Transferer)

func WithSleeper(s delay.Sleeper) TransferOption {
	return func(t *Transferer) {
		t.sleep = s
	}
}

func WithClock(now func() time.Time) TransferOption {
	return func(t *Transferer) {
		t.now = now
	}
}

func WithUnit(u currency.Unit) TransferOption {
	return func(t *Transferer) {
		t.unit = u
	}
}

func NewTransferer(client EthClient, opts TransferOptions, options ...TransferOption) *Transferer {
	if opts.AmountPercentage <= 0 || opts.AmountPercentage > 100 {
		opts.AmountPercentage = 100
	}
	if opts.GasPriceMultiplier <= 0 {
		opts.GasPriceMultiplier = 1
	}
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	t := &Transferer{client: client, opts: opts, unit: currency.Native(""), sleep: delay.Sleep, now: time.Now}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// TransferToSelf sends part of the wallet's balance back to itself and waits
// for the receipt. It logs and swallows every failure.
func (t *Transferer) TransferToSelf(ctx context.Context, w *Wallet, log logger.Logger) bool {
	receipt, err := t.transfer(ctx, w, log)
	if err != nil {
		log.Errorf("Transfer failed: %v", err)
		return false
	}
	log.Infof("Transfer confirmed in block %s, tx: %s", receipt.BlockNumber, receipt.TxHash.Hex())
	return true
}

func (t *Transferer) transfer(ctx context.Context, w *Wallet, log logger.Logger) (*types.Receipt, error) {
	balance, err := t.client.BalanceAt(ctx, w.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	log.Infof("Current balance: %s", t.unit.String(balance))
	if balance.Sign() == 0 {
		return nil, ErrEmptyBalance
	}

	suggested, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	gasPrice := ScaleGasPrice(suggested, t.opts.GasPriceMultiplier)

	amount, err := TransferAmount(balance, gasPrice, t.opts.AmountPercentage)
	if err != nil {
		return nil, err
	}

	nonce, err := t.client.PendingNonceAt(ctx, w.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	chainID, err := t.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	to := w.Address
	tx, err := types.SignNewTx(w.Key, types.NewEIP155Signer(chainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      TransferGasLimit,
		To:       &to,
		Value:    amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	log.Infof("Sending %s to self, gas price %s wei", t.unit.String(amount), gasPrice)
	if err := t.client.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	log.Infof("Transaction sent: %s", tx.Hash().Hex())

	return t.waitReceipt(ctx, tx.Hash())
}

func (t *Transferer) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	deadline := t.now().Add(t.opts.ConfirmationTimeout)
	for {
		receipt, err := t.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("failed to get receipt: %w", err)
		}

		if !t.now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, hash.Hex())
		}
		if err := t.sleep(ctx, t.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

// ScaleGasPrice returns price * multiplier, truncated to whole wei.
func ScaleGasPrice(price *big.Int, multiplier float64) *big.Int {
	if multiplier == 1 {
		return new(big.Int).Set(price)
	}
	scaled := new(big.Float).Mul(new(big.Float).SetInt(price), big.NewFloat(multiplier))
	out, _ := scaled.Int(nil)
	return out
}

// TransferAmount returns pct% of balance, reduced so that balance still
// covers the transfer's gas.
func TransferAmount(balance, gasPrice *big.Int, pct int) (*big.Int, error) {
	fee := new(big.Int).Mul(gasPrice, big.NewInt(TransferGasLimit))
	amount := currency.Percent(balance, pct)

	if spendable := new(big.Int).Sub(balance, fee); amount.Cmp(spendable) > 0 {
		amount = spendable
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: balance %s, fee %s", ErrInsufficientFund, balance, fee)
	}
	return amount, nil
}
