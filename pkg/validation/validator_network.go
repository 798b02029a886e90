package validation

import (
	"net/url"

	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
)

type NetworkValidator struct {
	BaseValidator
}

func NewNetworkValidator() *NetworkValidator {
	return &NetworkValidator{}
}

func (v *NetworkValidator) Validate(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors
	network := &cfg.Network

	// Validate RPC address
	if errs := v.ValidateHTTPURL("network.rpcUrl", network.RpcURL); len(errs) > 0 {
		return append(errors, errs...)
	}

	// Validate SSL settings for HTTPS
	parsedURL, _ := url.Parse(network.RpcURL)
	if parsedURL.Scheme == "https" {
		if network.HttpSSLVerify != "true" && network.HttpSSLVerify != "false" {
			errors = append(errors, ValidationError{
				Field:   "network.httpSSLVerify",
				Message: "SSL verification must be either 'true' or 'false'",
			})
		}
	}

	if auth := network.Authorization; auth != nil {
		if auth.Username == "" || auth.Password == "" {
			errors = append(errors, ValidationError{
				Field:   "network.authorization",
				Message: "username and password must both be set",
			})
		}
	}

	return errors
}
