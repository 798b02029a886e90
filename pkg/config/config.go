package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/identity"
	"github.com/zama-ai/testnet-faucet-automation/pkg/retry"
)

const (
	DefaultFaucetAPIURL   = "https://faucet.expchain.ai/api/faucet"
	DefaultCallbackURL    = "https://faucet.expchain.ai/api/faucet/discord/callback"
	DefaultFaucetChainID  = 18880
	DefaultMaxRetries     = 3
	DefaultBaseWaitTime   = 5
	DefaultMaxWaitTimeMs  = 300000
	DefaultCheckInterval  = 5000
	DefaultDelayMin       = 5
	DefaultDelayMax       = 15
	DefaultRequestTimeout = 30
	DefaultSchedule       = "@every 8h"
)

type Schema struct {
	Global   Global   `yaml:"global"`
	Network  Network  `yaml:"network"`
	Faucet   Faucet   `yaml:"faucet"`
	Delay    Delay    `yaml:"delay"`
	Transfer Transfer `yaml:"transfer"`
	Wallets  Wallets  `yaml:"wallets"`

	MaxRetries   int `yaml:"max_retries" validate:"gte=1,lte=20"`
	BaseWaitTime int `yaml:"base_wait_time" validate:"gte=1,lte=300"` // seconds
}

type Global struct {
	Environment string `yaml:"environment"`
	MetricsAddr string `yaml:"metricsAddr" validate:"omitempty,hostname_port"`
	LogLevel    string `yaml:"logLevel"`
	// Schedule is a cron expression or descriptor, e.g. "@every 8h".
	Schedule   string `yaml:"schedule"`
	RunOnStart *bool  `yaml:"runOnStart"`
	LogConsole bool   `yaml:"logConsole"`
}

type Network struct {
	RpcURL         string         `yaml:"rpcUrl" validate:"required,url"`
	RpcURLEnv      string         `yaml:"rpcUrlEnv"`
	ChainID        int64          `yaml:"chainId" validate:"gte=0"`
	CurrencySymbol string         `yaml:"currencySymbol"`
	HttpSSLVerify  string         `yaml:"httpSSLVerify"`
	Authorization  *Authorization `yaml:"authorization"`
}

type Authorization struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"passwordEnv"`
}

type Faucet struct {
	EnableFaucet *bool `yaml:"enable_faucet"`
	// MaxRetries is accepted so older files still load. The claim workflow
	// is never retried as a whole.
	MaxRetries    int `yaml:"max_retries" validate:"gte=0"`
	MaxWaitTime   int `yaml:"max_wait_time" validate:"gte=0"`  // milliseconds
	CheckInterval int `yaml:"check_interval" validate:"gte=0"` // milliseconds

	AuthURL           string `yaml:"auth_url"`
	AuthURLEnv        string `yaml:"auth_url_env"`
	AuthorizeEndpoint string `yaml:"authorize_endpoint" validate:"omitempty,url"`
	CallbackURL       string `yaml:"callback_url" validate:"omitempty,url"`
	APIURL            string `yaml:"api_url" validate:"omitempty,url"`
	APIURLEnv         string `yaml:"api_url_env"`
	ChainID           int64  `yaml:"chain_id" validate:"gte=0"`
	Timeout           int    `yaml:"timeout" validate:"gte=0"` // seconds

	AlreadyClaimedCooldown time.Duration `yaml:"already_claimed_cooldown" validate:"gte=0"`
}

type Delay struct {
	MinSeconds int `yaml:"min_seconds" validate:"gte=0"`
	MaxSeconds int `yaml:"max_seconds" validate:"gte=0"`
}

type Transfer struct {
	EnableTransfer      bool          `yaml:"enable_transfer"`
	AmountPercentage    int           `yaml:"amount_percentage" validate:"gte=0,lte=100"`
	GasPriceMultiplier  float64       `yaml:"gas_price_multiplier" validate:"gte=0"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" validate:"gte=0"`
}

type Wallets struct {
	PrivateKeysFile string `yaml:"private_keys_file"`
	TokensFile      string `yaml:"tokens_file"`
	ProxiesFile     string `yaml:"proxies_file"`
	PauseMinSeconds int    `yaml:"pause_min_seconds" validate:"gte=0"`
	PauseMaxSeconds int    `yaml:"pause_max_seconds" validate:"gte=0"`
}

func (s *Schema) Normalize() error {
	if err := s.Global.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize global config: %w", err)
	}
	if err := s.Network.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize network config: %w", err)
	}
	if err := s.Faucet.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize faucet config: %w", err)
	}

	if s.MaxRetries == 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.BaseWaitTime == 0 {
		s.BaseWaitTime = DefaultBaseWaitTime
	}
	if s.Delay.MinSeconds == 0 && s.Delay.MaxSeconds == 0 {
		s.Delay = Delay{MinSeconds: DefaultDelayMin, MaxSeconds: DefaultDelayMax}
	}
	if s.Wallets.PauseMinSeconds == 0 && s.Wallets.PauseMaxSeconds == 0 {
		s.Wallets.PauseMinSeconds, s.Wallets.PauseMaxSeconds = DefaultDelayMin, DefaultDelayMax
	}
	if s.Wallets.PrivateKeysFile == "" {
		s.Wallets.PrivateKeysFile = "pk.txt"
	}
	if s.Wallets.TokensFile == "" {
		s.Wallets.TokensFile = "tokens.txt"
	}
	if s.Wallets.ProxiesFile == "" {
		s.Wallets.ProxiesFile = "proxy.txt"
	}
	if s.Transfer.AmountPercentage == 0 {
		s.Transfer.AmountPercentage = 100
	}
	if s.Transfer.GasPriceMultiplier == 0 {
		s.Transfer.GasPriceMultiplier = 1
	}
	if s.Transfer.ConfirmationTimeout == 0 {
		s.Transfer.ConfirmationTimeout = 2 * time.Minute
	}
	return nil
}

func (g *Global) Normalize() error {
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.Schedule == "" {
		g.Schedule = DefaultSchedule
	}
	if g.RunOnStart == nil {
		enabled := true
		g.RunOnStart = &enabled
	}
	return nil
}

func (n *Network) Normalize() error {
	if n.RpcURLEnv != "" {
		envValue := os.Getenv(n.RpcURLEnv)
		if envValue != "" {
			n.RpcURL = envValue
		}
	}
	if n.Authorization != nil && n.Authorization.PasswordEnv != "" {
		envValue := os.Getenv(n.Authorization.PasswordEnv)
		if envValue != "" {
			n.Authorization.Password = envValue
		}
	}
	if n.HttpSSLVerify == "" {
		n.HttpSSLVerify = "true"
	}
	if n.CurrencySymbol == "" {
		n.CurrencySymbol = "ETH"
	}
	return nil
}

func (f *Faucet) Normalize() error {
	if f.AuthURLEnv != "" {
		envValue := os.Getenv(f.AuthURLEnv)
		if envValue != "" {
			f.AuthURL = envValue
		}
	}
	if f.APIURLEnv != "" {
		envValue := os.Getenv(f.APIURLEnv)
		if envValue != "" {
			f.APIURL = envValue
		}
	}
	if f.EnableFaucet == nil {
		enabled := true
		f.EnableFaucet = &enabled
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = DefaultMaxRetries
	}
	if f.MaxWaitTime == 0 {
		f.MaxWaitTime = DefaultMaxWaitTimeMs
	}
	if f.CheckInterval == 0 {
		f.CheckInterval = DefaultCheckInterval
	}
	if f.AuthorizeEndpoint == "" {
		f.AuthorizeEndpoint = identity.DefaultAuthorizeEndpoint
	}
	if f.CallbackURL == "" {
		f.CallbackURL = DefaultCallbackURL
	}
	if f.APIURL == "" {
		f.APIURL = DefaultFaucetAPIURL
	}
	if f.ChainID == 0 {
		f.ChainID = DefaultFaucetChainID
	}
	if f.Timeout == 0 {
		f.Timeout = DefaultRequestTimeout
	}
	return nil
}

// Enabled reports whether the faucet step runs at all.
func (f *Faucet) Enabled() bool {
	return f.EnableFaucet != nil && *f.EnableFaucet
}

func (f *Faucet) MaxWait() time.Duration {
	return time.Duration(f.MaxWaitTime) * time.Millisecond
}

func (f *Faucet) Interval() time.Duration {
	return time.Duration(f.CheckInterval) * time.Millisecond
}

func (f *Faucet) RequestTimeout() time.Duration {
	return time.Duration(f.Timeout) * time.Second
}

func (s *Schema) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: s.MaxRetries,
		BaseWait:    time.Duration(s.BaseWaitTime) * time.Second,
		Cap:         delay.DefaultBackoffCap,
	}
}

func (s *Schema) DelayRange() delay.Range {
	return delay.Range{MinSeconds: s.Delay.MinSeconds, MaxSeconds: s.Delay.MaxSeconds}
}

func (s *Schema) PauseRange() delay.Range {
	return delay.Range{MinSeconds: s.Wallets.PauseMinSeconds, MaxSeconds: s.Wallets.PauseMaxSeconds}
}

// LoadEnv reads KEY=value pairs from the given dotenv files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// NewConfig opens and decodes the YAML file at path.
func NewConfig(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return ReadConfigWithError(f)
}

func ReadConfigWithError(r io.Reader) (*Schema, error) {
	config := &Schema{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := config.Normalize(); err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}
	return config, nil
}
