package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

func init() {
	_ = logger.InitLogger()
}

const validYAML = `
global:
  metricsAddr: ":9090"
network:
  rpcUrl: "https://rpc1-testnet.expchain.ai"
faucet:
  auth_url: "https://discord.com/oauth2/authorize?client_id=123&response_type=code&scope=identify"
`

func loadConfig(t *testing.T, yamlContent string) *config.Schema {
	t.Helper()
	cfg, err := config.ReadConfigWithError(strings.NewReader(yamlContent))
	require.NoError(t, err)
	return cfg
}

func fields(t *testing.T, err error) []string {
	t.Helper()
	var errs ValidationErrors
	require.True(t, errors.As(err, &errs), "expected ValidationErrors, got %v", err)
	var out []string
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidConfig(t *testing.T) {
	cfg := loadConfig(t, validYAML)
	assert.NoError(t, NewConfigValidator().ValidateConfig(cfg))
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Schema)
		field  string
	}{
		{
			name:   "missing rpc url",
			mutate: func(cfg *config.Schema) { cfg.Network.RpcURL = "" },
			field:  "network.rpcUrl",
		},
		{
			name:   "rpc url with bad scheme",
			mutate: func(cfg *config.Schema) { cfg.Network.RpcURL = "ws://localhost:8546" },
			field:  "network.rpcUrl",
		},
		{
			name:   "ssl flag",
			mutate: func(cfg *config.Schema) { cfg.Network.HttpSSLVerify = "yes" },
			field:  "network.httpSSLVerify",
		},
		{
			name:   "partial authorization",
			mutate: func(cfg *config.Schema) { cfg.Network.Authorization = &config.Authorization{Username: "u"} },
			field:  "network.authorization",
		},
		{
			name:   "log level",
			mutate: func(cfg *config.Schema) { cfg.Global.LogLevel = "verbose" },
			field:  "global.logLevel",
		},
		{
			name:   "schedule",
			mutate: func(cfg *config.Schema) { cfg.Global.Schedule = "whenever" },
			field:  "global.schedule",
		},
		{
			name:   "metrics address",
			mutate: func(cfg *config.Schema) { cfg.Global.MetricsAddr = "9090" },
			field:  "global.metricsAddr",
		},
		{
			name:   "missing auth url",
			mutate: func(cfg *config.Schema) { cfg.Faucet.AuthURL = "" },
			field:  "faucet.auth_url",
		},
		{
			name:   "auth url without client id",
			mutate: func(cfg *config.Schema) { cfg.Faucet.AuthURL = "https://discord.com/oauth2/authorize?scope=identify" },
			field:  "faucet.auth_url",
		},
		{
			name:   "check interval above max wait",
			mutate: func(cfg *config.Schema) { cfg.Faucet.CheckInterval = cfg.Faucet.MaxWaitTime + 1 },
			field:  "faucet.check_interval",
		},
		{
			name:   "delay min above max",
			mutate: func(cfg *config.Schema) { cfg.Delay = config.Delay{MinSeconds: 15, MaxSeconds: 5} },
			field:  "delay",
		},
		{
			name:   "pause min above max",
			mutate: func(cfg *config.Schema) { cfg.Wallets.PauseMinSeconds = 30 },
			field:  "wallets.pause",
		},
		{
			name:   "too many retries",
			mutate: func(cfg *config.Schema) { cfg.MaxRetries = 50 },
			field:  "max_retries",
		},
		{
			name:   "transfer percentage",
			mutate: func(cfg *config.Schema) { cfg.Transfer.AmountPercentage = 150 },
			field:  "transfer.amount_percentage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, validYAML)
			tt.mutate(cfg)

			err := NewConfigValidator().ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, fields(t, err), tt.field)
		})
	}
}

func TestDisabledFaucetSkipsEndpointChecks(t *testing.T) {
	cfg := loadConfig(t, validYAML)
	disabled := false
	cfg.Faucet.EnableFaucet = &disabled
	cfg.Faucet.AuthURL = ""

	assert.NoError(t, NewConfigValidator().ValidateConfig(cfg))
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "delay", Message: "min (15) cannot exceed max (5)"},
		{Field: "global.logLevel", Message: "must be one of: debug, info, warn, error"},
	}
	assert.Equal(t, "delay: min (15) cannot exceed max (5); global.logLevel: must be one of: debug, info, warn, error", errs.Error())
}
