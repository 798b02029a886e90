// Package balance reads native coin balances over JSON-RPC and waits for them
// to grow after a faucet claim.
package balance

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/zama-ai/testnet-faucet-automation/pkg/transport"
)

var ErrInvalidAddress = errors.New("balance: invalid address")

// Reader returns the current balance of an account in wei.
type Reader interface {
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, address string) (*big.Int, error)

func (f ReaderFunc) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	return f(ctx, address)
}

// BasicAuth is sent on every RPC request when set.
type BasicAuth struct {
	Username string
	Password string
}

type RPCOptions struct {
	URL           string
	HttpSSLVerify string
	Authorization *BasicAuth
	Timeout       time.Duration
}

// RPCReader reads balances from an Ethereum JSON-RPC endpoint.
type RPCReader struct {
	client *ethclient.Client
}

// DialRPC connects to the endpoint in opts. The HTTP client honours the SSL
// verification flag and optional basic auth.
func DialRPC(ctx context.Context, opts RPCOptions) (*RPCReader, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient, err := transport.NewClient(transport.Options{Timeout: timeout, SSLVerify: opts.HttpSSLVerify})
	if err != nil {
		return nil, err
	}

	rpcClient, err := rpc.DialOptions(ctx, opts.URL, rpc.WithHTTPClient(httpClient), rpc.WithHTTPAuth(func(h http.Header) error {
		if auth := opts.Authorization; auth != nil {
			creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
			h.Set("Authorization", "Basic "+creds)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	return &RPCReader{client: ethclient.NewClient(rpcClient)}, nil
}

// NewRPCReader wraps an existing client.
func NewRPCReader(client *ethclient.Client) *RPCReader {
	return &RPCReader{client: client}
}

func (r *RPCReader) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	balance, err := r.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", address, err)
	}
	return balance, nil
}

// Client exposes the underlying ethclient for callers that send transactions.
func (r *RPCReader) Client() *ethclient.Client {
	return r.client
}

func (r *RPCReader) Close() error {
	if r.client != nil {
		r.client.Close()
	}
	return nil
}
