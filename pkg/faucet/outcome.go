package faucet

import (
	"context"

	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

type Kind int

const (
	KindFailure Kind = iota
	KindSuccess
	KindAlreadyClaimed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindAlreadyClaimed:
		return "already_claimed"
	default:
		return "failure"
	}
}

// Outcome is the result of one claim submission. TxRef is set on success,
// Message and Detail when the wallet already claimed, Err on failure.
type Outcome struct {
	Kind    Kind
	TxRef   string
	Message string
	Detail  string
	Err     error
}

func failure(err error) Outcome {
	return Outcome{Kind: KindFailure, Err: err}
}

// Submitter defines the interface for a faucet client.
type Submitter interface {
	Submit(ctx context.Context, sessionToken, address string, log logger.Logger) Outcome
}
