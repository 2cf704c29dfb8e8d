package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spok95/studio-billing/internal/billing"
	"github.com/Spok95/studio-billing/internal/infra/lock"
	"github.com/Spok95/studio-billing/internal/infra/metrics"
)

// Biller is the part of billing.Service the scheduled jobs drive.
type Biller interface {
	GenerateForAllActiveMembers(ctx context.Context, month time.Time, opts billing.GenerateOptions) (billing.GenerateReport, error)
	MarkOverdueAndLock(ctx context.Context, today time.Time, dryRun bool) (billing.OverdueReport, error)
	RenewAssignments(ctx context.Context, today time.Time) (billing.RenewReport, error)
}

const (
	JobGenerateDues = "generate-dues"
	JobMarkOverdue  = "mark-overdue"
	JobRenew        = "renew-assignments"
)

// lockTTL outlives any run but expires well before the next period.
const lockTTL = 6 * time.Hour

// Jobs contains the scheduled billing tasks. Each run takes a per-period lock
// so only one replica works a given month or day.
type Jobs struct {
	biller Biller
	locker lock.Locker
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewJobs(biller Biller, locker lock.Locker, logger *slog.Logger, loc *time.Location) *Jobs {
	if loc == nil {
		loc = time.UTC
	}
	return &Jobs{biller: biller, locker: locker, logger: logger, loc: loc, now: time.Now}
}

func lockKey(job, period string) string {
	return fmt.Sprintf("billing:job:%s:%s", job, period)
}

// run takes the lock and records the outcome; it reports whether the job ran.
func (j *Jobs) run(ctx context.Context, job, period string, fn func(ctx context.Context) error) bool {
	ok, err := j.locker.Acquire(ctx, lockKey(job, period), lockTTL)
	if err != nil {
		j.logger.Error("job lock failed, skipping run", "job", job, "period", period, "err", err)
		metrics.JobRuns.WithLabelValues(job, "lock_error").Inc()
		return false
	}
	if !ok {
		j.logger.Info("job already taken by another replica", "job", job, "period", period)
		metrics.JobRuns.WithLabelValues(job, "skipped").Inc()
		return false
	}

	j.logger.Info("starting job", "job", job, "period", period)
	if err := fn(ctx); err != nil {
		j.logger.Error("job failed", "job", job, "period", period, "err", err)
		metrics.JobRuns.WithLabelValues(job, "failed").Inc()
		return true
	}
	metrics.JobRuns.WithLabelValues(job, "ok").Inc()
	j.logger.Info("job finished", "job", job, "period", period)
	return true
}

// GenerateMonthlyDues bills the current month.
func (j *Jobs) GenerateMonthlyDues(ctx context.Context) {
	now := j.now().In(j.loc)
	j.run(ctx, JobGenerateDues, now.Format("2006-01"), func(ctx context.Context) error {
		_, err := j.biller.GenerateForAllActiveMembers(ctx, now, billing.GenerateOptions{})
		return err
	})
}

// MarkOverdue runs the daily overdue pass.
func (j *Jobs) MarkOverdue(ctx context.Context) {
	now := j.now().In(j.loc)
	j.run(ctx, JobMarkOverdue, now.Format(time.DateOnly), func(ctx context.Context) error {
		_, err := j.biller.MarkOverdueAndLock(ctx, now, false)
		return err
	})
}

// RenewAssignments extends lapsed auto-renewing assignments.
func (j *Jobs) RenewAssignments(ctx context.Context) {
	now := j.now().In(j.loc)
	j.run(ctx, JobRenew, now.Format(time.DateOnly), func(ctx context.Context) error {
		_, err := j.biller.RenewAssignments(ctx, now)
		return err
	})
}
