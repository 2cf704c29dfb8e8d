package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/Spok95/studio-billing/internal/config"
)

// Scheduler manages the cron jobs. Runs share a context cancelled by Stop.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Billing
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Billing) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)), cron.WithLocation(jobs.loc))

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the jobs and starts the cron scheduler. A bad schedule
// is logged and that job is left out.
func (s *Scheduler) Start() {
	s.add(JobGenerateDues, s.config.GenerateSchedule, s.jobs.GenerateMonthlyDues)
	s.add(JobMarkOverdue, s.config.OverdueSchedule, s.jobs.MarkOverdue)
	s.add(JobRenew, s.config.RenewSchedule, s.jobs.RenewAssignments)
	s.cron.Start()
}

func (s *Scheduler) add(name, spec string, fn func(context.Context)) {
	if _, err := s.cron.AddFunc(spec, func() { fn(s.ctx) }); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", spec, "err", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
}

// Entries is the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// Stop stops the scheduler and cancels running jobs; the returned context
// is done once they return.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}
