// Package identity trades a Discord user credential for a faucet session
// token via the OAuth authorize endpoint and the faucet's callback redirect.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/transport"
)

const DefaultAuthorizeEndpoint = "https://discord.com/api/v10/oauth2/authorize"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

var (
	ErrAuthResponseMalformed    = errors.New("identity: authorization response has no location")
	ErrMissingAuthorizationCode = errors.New("identity: no authorization code in location")
	ErrMissingSessionToken      = errors.New("identity: no session token in callback redirect")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session is the result of a successful exchange.
type Session struct {
	Username string
	Token    string
}

type Config struct {
	// AuthorizationURL is the OAuth consent URL of the faucet's Discord
	// application; its query parameters are replayed on every exchange.
	AuthorizationURL string
	// AuthorizeEndpoint receives the authorize POST.
	AuthorizeEndpoint string
	// CallbackURL is the faucet endpoint that turns a code into a redirect.
	CallbackURL string
	Delay       delay.Range
}

type authorizeRequest struct {
	Permissions     string `json:"permissions"`
	Authorize       bool   `json:"authorize"`
	IntegrationType int    `json:"integration_type"`
}

type authorizeResponse struct {
	Location string `json:"location"`
}

// Exchanger performs the two-step exchange. It keeps no per-call state and may
// be reused across wallets.
type Exchanger struct {
	authorizeEndpoint string
	authQuery         url.Values
	callbackURL       *url.URL
	pacing            delay.Range

	api      Doer
	callback Doer
	delays   *delay.Policy
}

// NewExchanger parses the configured URLs once. api is used for the authorize
// call; callback must not follow redirects.
func NewExchanger(cfg Config, api, callback Doer, delays *delay.Policy) (*Exchanger, error) {
	authURL, err := url.Parse(cfg.AuthorizationURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization url: %w", err)
	}
	callbackURL, err := url.Parse(cfg.CallbackURL)
	if err != nil || callbackURL.Host == "" {
		return nil, fmt.Errorf("invalid callback url %q", cfg.CallbackURL)
	}
	endpoint := cfg.AuthorizeEndpoint
	if endpoint == "" {
		endpoint = DefaultAuthorizeEndpoint
	}
	return &Exchanger{
		authorizeEndpoint: endpoint,
		authQuery:         authURL.Query(),
		callbackURL:       callbackURL,
		pacing:            cfg.Delay,
		api:               api,
		callback:          callback,
		delays:            delays,
	}, nil
}

// Exchange runs both steps for credential. Any failure is terminal for this
// call; the caller decides whether to try again later.
func (e *Exchanger) Exchange(ctx context.Context, credential string, log logger.Logger) (*Session, error) {
	log.Infof("Authenticating with Discord")
	if err := e.pace(ctx, log, "Discord authentication"); err != nil {
		return nil, err
	}
	code, err := e.authorize(ctx, credential)
	if err != nil {
		return nil, err
	}
	log.Infof("Got Discord authorization code: %s...", truncate(code, 10))

	if err := e.pace(ctx, log, "token exchange"); err != nil {
		return nil, err
	}
	location, err := e.redirectLocation(ctx, code)
	if err != nil {
		return nil, err
	}
	username, token, err := ExtractSessionToken(location)
	if err != nil {
		return nil, err
	}
	log.Infof("Obtained faucet session token for %s", username)
	return &Session{Username: username, Token: token}, nil
}

func (e *Exchanger) pace(ctx context.Context, log logger.Logger, label string) error {
	seconds, err := e.delays.Random(ctx, e.pacing)
	if err != nil {
		return fmt.Errorf("delay before %s: %w", label, err)
	}
	log.Debugf("Waited %ds before %s", seconds, label)
	return nil
}

func (e *Exchanger) authorize(ctx context.Context, credential string) (string, error) {
	payload, err := json.Marshal(authorizeRequest{Permissions: "0", Authorize: true, IntegrationType: 0})
	if err != nil {
		return "", fmt.Errorf("failed to marshal authorize request: %w", err)
	}

	endpoint, err := url.Parse(e.authorizeEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorize endpoint: %w", err)
	}
	endpoint.RawQuery = e.authQuery.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.7")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := e.api.Do(req)
	if err != nil {
		return "", &transport.Error{Op: "discord authorize", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", transport.StatusError("discord authorize", resp)
	}

	var body authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Location == "" {
		return "", ErrAuthResponseMalformed
	}
	return ExtractAuthorizationCode(body.Location)
}

func (e *Exchanger) redirectLocation(ctx context.Context, code string) (string, error) {
	u := *e.callbackURL
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += "code=" + code

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.callback.Do(req)
	if err != nil {
		return "", &transport.Error{Op: "faucet callback", Err: err}
	}
	defer resp.Body.Close()

	// 3xx up to 302 is the expected answer; the redirect is read, not followed.
	if resp.StatusCode < 200 || resp.StatusCode >= 303 {
		return "", transport.StatusError("faucet callback", resp)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", ErrMissingSessionToken
	}
	return location, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
