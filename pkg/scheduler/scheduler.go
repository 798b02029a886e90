package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zama-ai/testnet-faucet-automation/pkg/logger"
)

const DefaultSchedule = "@every 8h"

// Cycle runs one pass over all wallets. It should return when ctx is done.
type Cycle func(ctx context.Context)

// CycleScheduler re-runs a Cycle on a cron schedule. Overlapping runs are
// skipped rather than queued.
type CycleScheduler struct {
	schedule   string
	runOnStart bool
	cycle      Cycle
	cron       *cron.Cron
	job        cron.Job
	entry      cron.EntryID

	running bool
	mutex   sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Info is a point-in-time view of the scheduler.
type Info struct {
	IsRunning bool
	Schedule  string
	NextRun   time.Time
}

type Option func(*CycleScheduler)

// WithRunOnStart triggers a cycle immediately on Start.
func WithRunOnStart(enabled bool) Option {
	return func(s *CycleScheduler) {
		s.runOnStart = enabled
	}
}

// NewCycleScheduler validates schedule and prepares the cron runner. Any
// standard five-field expression or descriptor such as "@every 8h" is accepted.
func NewCycleScheduler(schedule string, cycle Cycle, opts ...Option) (*CycleScheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	cronLogger := cron.PrintfLogger(logger.GetLogger())
	ctx, cancel := context.WithCancel(context.Background())
	s := &CycleScheduler{
		schedule: schedule,
		cycle:    cycle,
		cron:     cron.New(cron.WithLogger(cronLogger)),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.job = cron.NewChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)).Then(cron.FuncJob(s.execute))
	return s, nil
}

// Start starts the scheduler
func (s *CycleScheduler) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler has been stopped")
	}

	logger.Infof("Starting cycle scheduler with schedule: %s", s.schedule)
	entry, err := s.cron.AddJob(s.schedule, s.job)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entry = entry

	s.cron.Start()
	s.running = true

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
	return nil
}

// Stop cancels the running cycle, if any, and waits for it to return. A
// stopped scheduler cannot be started again.
func (s *CycleScheduler) Stop() error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	s.running = false
	s.mutex.Unlock()

	logger.Infof("Stopping cycle scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()

	logger.Infof("Cycle scheduler stopped")
	return nil
}

func (s *CycleScheduler) execute() {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	logger.Infof("Starting scheduled cycle")
	s.cycle(s.ctx)
	logger.Infof("Scheduled cycle finished in %v, next run at %s", time.Since(start).Round(time.Second), s.GetNextRun().Format(time.RFC3339))
}

// IsRunning returns whether the scheduler is currently running
func (s *CycleScheduler) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

// GetNextRun returns the next scheduled run time
func (s *CycleScheduler) GetNextRun() time.Time {
	if !s.IsRunning() {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

func (s *CycleScheduler) Info() Info {
	return Info{IsRunning: s.IsRunning(), Schedule: s.schedule, NextRun: s.GetNextRun()}
}
