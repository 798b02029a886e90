package validation

import (
	"fmt"
	"net/url"

	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
)

type FaucetValidator struct {
	BaseValidator
}

func NewFaucetValidator() *FaucetValidator {
	return &FaucetValidator{}
}

// Validate only looks at the faucet endpoints when the faucet is enabled.
func (v *FaucetValidator) Validate(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors
	faucet := &cfg.Faucet
	if !faucet.Enabled() {
		return errors
	}

	errors = append(errors, v.validateAuthURL(faucet.AuthURL)...)
	errors = append(errors, v.ValidateHTTPURL("faucet.authorize_endpoint", faucet.AuthorizeEndpoint)...)
	errors = append(errors, v.ValidateHTTPURL("faucet.callback_url", faucet.CallbackURL)...)
	errors = append(errors, v.ValidateHTTPURL("faucet.api_url", faucet.APIURL)...)

	if faucet.CheckInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "faucet.check_interval",
			Message: "must be positive",
		})
	} else if faucet.CheckInterval > faucet.MaxWaitTime {
		errors = append(errors, ValidationError{
			Field:   "faucet.check_interval",
			Message: fmt.Sprintf("cannot exceed max_wait_time (%d ms)", faucet.MaxWaitTime),
		})
	}
	if faucet.ChainID <= 0 {
		errors = append(errors, ValidationError{
			Field:   "faucet.chain_id",
			Message: "must be positive",
		})
	}

	return errors
}

// validateAuthURL requires the OAuth query that is replayed against the
// authorize endpoint.
func (v *FaucetValidator) validateAuthURL(raw string) ValidationErrors {
	errors := v.ValidateHTTPURL("faucet.auth_url", raw)
	if len(errors) > 0 {
		return errors
	}

	parsedURL, _ := url.Parse(raw)
	if parsedURL.Query().Get("client_id") == "" {
		errors = append(errors, ValidationError{
			Field:   "faucet.auth_url",
			Message: "must carry a client_id query parameter",
		})
	}
	return errors
}
