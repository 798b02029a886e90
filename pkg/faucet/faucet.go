// Package faucet submits claims to the testnet faucet API and classifies its replies.
package faucet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/transport"
)

const (
	CodeSuccess        = 0
	CodeAlreadyClaimed = 2004
)

var ErrUnexpectedResponse = errors.New("faucet: unexpected response")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the faucet endpoint.
type Config struct {
	APIURL  string
	ChainID int64
	Delay   delay.Range
}

// ClaimRequest is the body posted to the faucet.
type ClaimRequest struct {
	ChainID int64  `json:"chain_id"`
	To      string `json:"to"`
}

// ClaimResponse is the faucet's application envelope. Code carries the
// result; the HTTP status is only checked for transport failures.
type ClaimResponse struct {
	Code    *int            `json:"code"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client submits claims to the faucet API.
type Client struct {
	cfg    Config
	http   Doer
	delays *delay.Policy
}

func NewClient(cfg Config, httpClient Doer, delays *delay.Policy) *Client {
	return &Client{cfg: cfg, http: httpClient, delays: delays}
}

// Submit asks the faucet to send funds to address. It never returns an error
// directly; failures are reported as a KindFailure outcome.
func (c *Client) Submit(ctx context.Context, sessionToken, address string, log logger.Logger) Outcome {
	log.Infof("Requesting tokens from faucet")

	seconds, err := c.delays.Random(ctx, c.cfg.Delay)
	if err != nil {
		return failure(fmt.Errorf("delay before faucet request: %w", err))
	}
	log.Debugf("Waited %ds before faucet request", seconds)

	payload, err := json.Marshal(ClaimRequest{ChainID: c.cfg.ChainID, To: address})
	if err != nil {
		return failure(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return failure(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		out := failure(&transport.Error{Op: "faucet request", Err: err})
		log.Errorf("Error requesting from faucet: %v", out.Err)
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out := failure(transport.StatusError("faucet request", resp))
		log.Errorf("Error requesting from faucet: %v", out.Err)
		return out
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		out := failure(&transport.Error{Op: "faucet request", StatusCode: resp.StatusCode, Err: err})
		log.Errorf("Error reading faucet response: %v", out.Err)
		return out
	}

	out := Classify(body)
	switch out.Kind {
	case KindSuccess:
		log.Infof("Faucet request successful, transaction: %s", out.TxRef)
	case KindAlreadyClaimed:
		log.Warnf("%s: %s", out.Message, out.Detail)
	default:
		log.Errorf("Unexpected response from faucet: %s", string(body))
	}
	return out
}

// Classify maps a faucet response body to an Outcome by its application code.
func Classify(body []byte) Outcome {
	var r ClaimResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return failure(fmt.Errorf("%w: %v", ErrUnexpectedResponse, err))
	}
	if r.Code == nil {
		return failure(fmt.Errorf("%w: missing code", ErrUnexpectedResponse))
	}

	switch *r.Code {
	case CodeSuccess:
		return Outcome{Kind: KindSuccess, TxRef: dataText(r.Data)}
	case CodeAlreadyClaimed:
		return Outcome{Kind: KindAlreadyClaimed, Message: r.Message, Detail: dataText(r.Data)}
	default:
		return failure(fmt.Errorf("%w: code %d: %s", ErrUnexpectedResponse, *r.Code, r.Message))
	}
}

// dataText renders the data field: JSON strings are unquoted, anything else
// is kept as raw JSON.
func dataText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
