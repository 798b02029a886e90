package faucet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/transport"
)

func init() {
	_ = logger.InitLogger()
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    Kind
		txRef   string
		message string
		detail  string
	}{
		{name: "success", body: `{"code":0,"data":"0xabc"}`, kind: KindSuccess, txRef: "0xabc"},
		{name: "success with object data", body: `{"code":0,"data":{"tx":"0x1"}}`, kind: KindSuccess, txRef: `{"tx":"0x1"}`},
		{name: "already claimed", body: `{"code":2004,"message":"already","data":"d"}`, kind: KindAlreadyClaimed, message: "already", detail: "d"},
		{name: "unknown code", body: `{"code":999}`, kind: KindFailure},
		{name: "missing code", body: `{"message":"ok"}`, kind: KindFailure},
		{name: "not json", body: `<html>bad gateway</html>`, kind: KindFailure},
		{name: "empty", body: ``, kind: KindFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify([]byte(tt.body))
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.txRef, out.TxRef)
			assert.Equal(t, tt.message, out.Message)
			assert.Equal(t, tt.detail, out.Detail)
			if tt.kind == KindFailure {
				assert.ErrorIs(t, out.Err, ErrUnexpectedResponse)
			} else {
				assert.NoError(t, out.Err)
			}
		})
	}
}

func TestSubmitSendsClaim(t *testing.T) {
	var (
		gotAuth string
		gotReq  ClaimRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"code":0,"data":"0xabc"}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	delays := delay.New(delay.WithSleeper(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	c := NewClient(Config{APIURL: srv.URL, ChainID: 18880, Delay: delay.Range{MinSeconds: 3, MaxSeconds: 3}}, srv.Client(), delays)

	out := c.Submit(context.Background(), "jwt-token", "0x1111111111111111111111111111111111111111", logger.GetLogger())
	assert.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, "0xabc", out.TxRef)
	assert.Equal(t, "Bearer jwt-token", gotAuth)
	assert.Equal(t, int64(18880), gotReq.ChainID)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", gotReq.To)
	assert.Equal(t, []time.Duration{3 * time.Second}, slept)
}

func TestSubmitWireFieldNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Contains(t, raw, "chain_id")
		assert.Contains(t, raw, "to")
		_, _ = w.Write([]byte(`{"code":2004,"message":"Already claimed","data":"retry in 8h"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL, ChainID: 1}, srv.Client(), delay.New(delay.WithSleeper(noSleep)))
	out := c.Submit(context.Background(), "t", "0xabc", logger.GetLogger())
	assert.Equal(t, KindAlreadyClaimed, out.Kind)
	assert.Equal(t, "Already claimed", out.Message)
	assert.Equal(t, "retry in 8h", out.Detail)
}

func TestSubmitTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":0,"data":"ignored"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL}, srv.Client(), delay.New(delay.WithSleeper(noSleep)))
	out := c.Submit(context.Background(), "t", "0xabc", logger.GetLogger())
	require.Equal(t, KindFailure, out.Kind)
	var te *transport.Error
	require.True(t, errors.As(out.Err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, te.Body, "ignored")

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	c = NewClient(Config{APIURL: url}, http.DefaultClient, delay.New(delay.WithSleeper(noSleep)))
	out = c.Submit(context.Background(), "t", "0xabc", logger.GetLogger())
	require.Equal(t, KindFailure, out.Kind)
	require.True(t, errors.As(out.Err, &te))
	assert.Zero(t, te.StatusCode)
}

func TestSubmitCancelledDelay(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL}, srv.Client(), delay.New(delay.WithSleeper(func(context.Context, time.Duration) error {
		return context.Canceled
	})))
	out := c.Submit(context.Background(), "t", "0xabc", logger.GetLogger())
	assert.Equal(t, KindFailure, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.False(t, called)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "already_claimed", KindAlreadyClaimed.String())
	assert.Equal(t, "failure", KindFailure.String())
}
