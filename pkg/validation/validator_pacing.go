package validation

import (
	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
)

// PacingValidator checks the random delay and wallet pause ranges.
type PacingValidator struct {
	BaseValidator
}

func NewPacingValidator() *PacingValidator {
	return &PacingValidator{}
}

func (v *PacingValidator) Validate(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, v.ValidateRange("delay", cfg.Delay.MinSeconds, cfg.Delay.MaxSeconds)...)
	errors = append(errors, v.ValidateRange("wallets.pause", cfg.Wallets.PauseMinSeconds, cfg.Wallets.PauseMaxSeconds)...)
	return errors
}
