package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"

	"github.com/zama-ai/testnet-faucet-automation/pkg/balance"
	"github.com/zama-ai/testnet-faucet-automation/pkg/batch"
	"github.com/zama-ai/testnet-faucet-automation/pkg/claim"
	"github.com/zama-ai/testnet-faucet-automation/pkg/collector"
	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
	"github.com/zama-ai/testnet-faucet-automation/pkg/currency"
	"github.com/zama-ai/testnet-faucet-automation/pkg/delay"
	"github.com/zama-ai/testnet-faucet-automation/pkg/faucet"
	"github.com/zama-ai/testnet-faucet-automation/pkg/identity"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/metrics"
	"github.com/zama-ai/testnet-faucet-automation/pkg/scheduler"
	"github.com/zama-ai/testnet-faucet-automation/pkg/transport"
	"github.com/zama-ai/testnet-faucet-automation/pkg/validation"
	"github.com/zama-ai/testnet-faucet-automation/pkg/version"
	"github.com/zama-ai/testnet-faucet-automation/pkg/wallet"

	httpfiber "github.com/zama-ai/testnet-faucet-automation/pkg/server/http"
)

var (
	cfgPath     = flag.String("config", "config.yaml", "path to the config file")
	envPath     = flag.String("env", ".env", "optional dotenv file loaded before the config")
	showVersion = flag.Bool("version", false, "print version information")
	once        = flag.Bool("once", false, "run a single cycle and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		versionInfo := version.GetVersion()
		versionJSON, _ := json.Marshal(versionInfo)
		fmt.Println(string(versionJSON))
		return
	}

	if err := config.LoadEnv(*envPath); err != nil {
		panic(err)
	}
	cfg, err := config.NewConfig(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("failed to read config: %v", err))
	}

	// init logger
	level, err := zapcore.ParseLevel(cfg.Global.LogLevel)
	if err != nil {
		panic(fmt.Errorf("failed to parse log level: %v", err))
	}
	zapLogger, err := logger.NewLogger(cfg.Global.LogLevel, cfg.Global.LogConsole)
	if err != nil {
		panic(fmt.Errorf("failed to init logger: %v", err))
	}
	logger.SetLogger(zapLogger)
	logger.BridgeEthereumLogs(zapLogger.Logger, level)
	logger.Infof("Starting %s", version.GetVersion())

	// Validate configuration before any network operations
	configValidator := validation.NewConfigValidator()
	if err := configValidator.ValidateConfig(cfg); err != nil {
		logger.Fatalf("Configuration validation failed: %v", err)
	}
	logger.Infof("Configuration validated successfully")

	wallets, proxies := loadWallets(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	reader, err := balance.DialRPC(dialCtx, balance.RPCOptions{
		URL:           cfg.Network.RpcURL,
		HttpSSLVerify: cfg.Network.HttpSSLVerify,
		Authorization: basicAuth(cfg.Network.Authorization),
	})
	cancel()
	if err != nil {
		logger.Fatalf("Failed to connect to RPC %s: %v", cfg.Network.RpcURL, err)
	}
	defer reader.Close()

	unit := currency.Native(cfg.Network.CurrencySymbol)
	delays := delay.New()
	watcher := balance.NewWatcher(reader, balance.WithUnit(unit))
	transferer := wallet.NewTransferer(reader.Client(), wallet.TransferOptions{
		AmountPercentage:    cfg.Transfer.AmountPercentage,
		GasPriceMultiplier:  cfg.Transfer.GasPriceMultiplier,
		ConfirmationTimeout: cfg.Transfer.ConfirmationTimeout,
	}, wallet.WithUnit(unit))

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)
	balanceCollector := collector.NewCollector(cfg, reader, wallets)
	if err := promRegistry.Register(balanceCollector); err != nil {
		logger.Fatalf("Failed to register balance collector: %v", err)
	}

	driver := batch.NewDriver(batch.Options{
		FaucetEnabled:          cfg.Faucet.Enabled(),
		TransferEnabled:        cfg.Transfer.EnableTransfer,
		AlreadyClaimedCooldown: cfg.Faucet.AlreadyClaimedCooldown,
		Retry:                  cfg.RetryPolicy(),
		StepDelay:              cfg.DelayRange(),
		WalletPause:            cfg.PauseRange(),
		Proxies:                proxies,
	}, newClaimerFactory(cfg, watcher, delays), transferer, delays, batch.WithMetrics(m))

	var cycleScheduler *scheduler.CycleScheduler
	if !*once {
		cycleScheduler, err = scheduler.NewCycleScheduler(cfg.Global.Schedule, func(ctx context.Context) {
			driver.Run(ctx, wallets)
		}, scheduler.WithRunOnStart(*cfg.Global.RunOnStart))
		if err != nil {
			logger.Fatalf("Failed to create scheduler: %v", err)
		}
	}

	var server *httpfiber.Server
	if cfg.Global.MetricsAddr != "" {
		opts := []httpfiber.Option{httpfiber.WithRegistry(promRegistry), httpfiber.WithCycles(driver)}
		if cycleScheduler != nil {
			opts = append(opts, httpfiber.WithScheduler(cycleScheduler))
		}
		server = httpfiber.NewServer(cfg, opts...)
		go func() {
			if err := server.Run(); err != nil {
				logger.Fatalf("failed to run server: %v", err)
			}
		}()
	}

	if *once {
		summary := driver.Run(ctx, wallets)
		logger.Infof("Single cycle finished: %s", summary)
	} else {
		if err := cycleScheduler.Start(); err != nil {
			logger.Fatalf("Failed to start scheduler: %v", err)
		}
		logger.Infof("Next cycle at %s", cycleScheduler.GetNextRun().Format(time.RFC3339))
		<-ctx.Done()
	}

	// Graceful shutdown
	logger.Infof("Shutting down...")
	if cycleScheduler != nil {
		if err := cycleScheduler.Stop(); err != nil {
			logger.Errorf("Failed to stop scheduler: %v", err)
		}
	}
	if err := balanceCollector.Close(); err != nil {
		logger.Errorf("failed to close collector: %v", err)
	}
	if server != nil {
		server.Stop()
	}
	logger.Infof("Shutdown complete")
}

// loadWallets reads the key, credential and proxy files. Only the key file is
// mandatory; without credentials the faucet step is skipped for every wallet.
func loadWallets(cfg *config.Schema) ([]*wallet.Wallet, []string) {
	keys, err := wallet.LoadLines(cfg.Wallets.PrivateKeysFile)
	if err != nil {
		logger.Fatalf("Failed to read private keys: %v", err)
	}

	credentials, err := wallet.LoadLines(cfg.Wallets.TokensFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warnf("%s not found, faucet operations will be skipped", cfg.Wallets.TokensFile)
	case err != nil:
		logger.Fatalf("Failed to read Discord tokens: %v", err)
	default:
		logger.Infof("Loaded %d Discord tokens", len(credentials))
	}

	proxies, err := wallet.LoadLines(cfg.Wallets.ProxiesFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Infof("%s not found, proxies disabled", cfg.Wallets.ProxiesFile)
	case err != nil:
		logger.Fatalf("Failed to read proxies: %v", err)
	default:
		for _, p := range proxies {
			if _, err := transport.ParseProxy(p); err != nil {
				logger.Fatalf("Invalid proxy entry: %v", err)
			}
		}
		logger.Infof("Loaded %d proxies", len(proxies))
	}

	wallets, err := wallet.Build(keys, credentials)
	if err != nil {
		logger.Fatalf("Failed to load wallets: %v", err)
	}
	if len(credentials) > 0 && len(credentials) < len(wallets) {
		logger.Warnf("Only %d of %d wallets have a Discord token", len(credentials), len(wallets))
	}
	logger.Infof("Loaded %d wallets", len(wallets))
	return wallets, proxies
}

// newClaimerFactory builds a claim workflow per wallet whose faucet and
// Discord traffic go through the given proxy.
func newClaimerFactory(cfg *config.Schema, watcher claim.BalanceWatcher, delays *delay.Policy) batch.ClaimerFactory {
	return func(proxy string) (batch.Claimer, error) {
		api, err := transport.NewClient(transport.Options{Timeout: cfg.Faucet.RequestTimeout(), Proxy: proxy})
		if err != nil {
			return nil, err
		}
		callback, err := transport.NewClient(transport.Options{Timeout: cfg.Faucet.RequestTimeout(), Proxy: proxy, NoRedirects: true})
		if err != nil {
			return nil, err
		}

		exchanger, err := identity.NewExchanger(identity.Config{
			AuthorizationURL:  cfg.Faucet.AuthURL,
			AuthorizeEndpoint: cfg.Faucet.AuthorizeEndpoint,
			CallbackURL:       cfg.Faucet.CallbackURL,
			Delay:             cfg.DelayRange(),
		}, api, callback, delays)
		if err != nil {
			return nil, err
		}
		submitter := faucet.NewClient(faucet.Config{
			APIURL:  cfg.Faucet.APIURL,
			ChainID: cfg.Faucet.ChainID,
			Delay:   cfg.DelayRange(),
		}, api, delays)

		return claim.NewOrchestrator(claim.Options{
			Enabled:       cfg.Faucet.Enabled(),
			MaxWait:       cfg.Faucet.MaxWait(),
			CheckInterval: cfg.Faucet.Interval(),
		}, exchanger, submitter, watcher), nil
	}
}

func basicAuth(auth *config.Authorization) *balance.BasicAuth {
	if auth == nil {
		return nil
	}
	return &balance.BasicAuth{Username: auth.Username, Password: auth.Password}
}
