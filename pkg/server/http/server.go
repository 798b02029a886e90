package httpfiber

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zama-ai/testnet-faucet-automation/pkg/batch"
	"github.com/zama-ai/testnet-faucet-automation/pkg/config"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
	"github.com/zama-ai/testnet-faucet-automation/pkg/scheduler"
	"github.com/zama-ai/testnet-faucet-automation/pkg/version"
)

// SchedulerInfo is implemented by scheduler.CycleScheduler.
type SchedulerInfo interface {
	Info() scheduler.Info
}

// CycleReporter is implemented by batch.Driver.
type CycleReporter interface {
	Last() (batch.Summary, bool)
}

type Server struct {
	app *fiber.App
	cfg *config.Schema

	registry  *prometheus.Registry
	scheduler SchedulerInfo
	cycles    CycleReporter
}

type Option func(*Server)

func NewServer(cfg *config.Schema, opts ...Option) *Server {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	srv := &Server{
		app:      app,
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

func WithScheduler(info SchedulerInfo) Option {
	return func(s *Server) {
		s.scheduler = info
	}
}

func WithCycles(reporter CycleReporter) Option {
	return func(s *Server) {
		s.cycles = reporter
	}
}

// Run blocks until the listener fails or Stop is called.
func (s *Server) Run() error {
	if s.cfg.Global.Environment == "production" {
		level, err := zap.ParseAtomicLevel(s.cfg.Global.LogLevel)
		if err != nil {
			return err
		}
		zapLogger, err := logger.NewZapLogger(logger.WithLevel(level.Level()))
		if err != nil {
			return err
		}
		s.app.Use(fiberzap.New(fiberzap.Config{
			Logger: zapLogger.Logger,
		}))
	}

	if err := s.MapRoutes(); err != nil {
		logger.Fatalf("failed to map routes: %v", err)
	}

	logger.Infof("listening on %s", s.cfg.Global.MetricsAddr)
	if err := s.app.Listen(s.cfg.Global.MetricsAddr); err != nil {
		return err
	}

	return nil
}

func (s *Server) Stop() {
	logger.Infof("Stopping HTTP server...")
	if err := s.app.ShutdownWithTimeout(1 * time.Second); err != nil {
		logger.Debugf("HTTP server shutdown: %v", err)
	}
	logger.Infof("HTTP server stopped")
}

func (s *Server) MapRoutes() error {
	v1 := s.app.Group("/")
	v1.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, log.Prefix(), log.Flags()),
		ErrorHandling: promhttp.ContinueOnError,
	})))
	v1.Get("/readiness", s.readiness)
	v1.Get("/status", s.status)
	return nil
}

// readiness fails once the scheduler has been stopped. Without a scheduler
// (single-cycle mode) the process is ready as long as it serves.
func (s *Server) readiness(c *fiber.Ctx) error {
	if s.scheduler != nil && !s.scheduler.Info().IsRunning {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "scheduler stopped",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}

func (s *Server) status(c *fiber.Ctx) error {
	body := fiber.Map{
		"version": version.GetVersion(),
	}

	if s.scheduler != nil {
		info := s.scheduler.Info()
		sched := fiber.Map{
			"running":  info.IsRunning,
			"schedule": info.Schedule,
		}
		if !info.NextRun.IsZero() {
			sched["next_run"] = info.NextRun.UTC().Format(time.RFC3339)
		}
		body["scheduler"] = sched
	}

	if s.cycles != nil {
		if last, ok := s.cycles.Last(); ok {
			body["last_cycle"] = fiber.Map{
				"id":               last.CycleID,
				"started":          last.Started.UTC().Format(time.RFC3339),
				"finished":         last.Finished.UTC().Format(time.RFC3339),
				"wallets":          last.Wallets,
				"processed":        last.Processed,
				"claims_confirmed": last.ClaimsConfirmed,
				"claims_timed_out": last.ClaimsTimedOut,
				"claims_aborted":   last.ClaimsAborted,
				"already_claimed":  last.AlreadyClaimed,
				"claims_skipped":   last.ClaimsSkipped,
				"transfers_ok":     last.TransfersOK,
				"transfers_failed": last.TransfersFailed,
			}
		}
	}

	return c.JSON(body)
}
