package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueMilestonesJobName is the name of the overdue milestone sweep job
const OverdueMilestonesJobName = "overdue_milestones"

// DefaultSweepTimeout bounds a single sweep run.
const DefaultSweepTimeout = 5 * time.Minute

// MilestoneSweepService defines the interface for marking overdue payment milestones.
// This interface allows the job to call the service without importing the service package directly.
type MilestoneSweepService interface {
	// MarkOverdueMilestones flags pending milestones whose due date has passed.
	// Returns the number of milestones updated.
	MarkOverdueMilestones(ctx context.Context) (int64, error)
}

// OverdueMilestonesJob sweeps pending payment milestones past their due date
// and marks them overdue.
type OverdueMilestonesJob struct {
	ledgerService MilestoneSweepService
	logger        *zap.Logger
	timeout       time.Duration
}

// NewOverdueMilestonesJob creates a new overdue milestone sweep job.
// The timeout controls how long a single sweep is allowed to run.
func NewOverdueMilestonesJob(ledgerService MilestoneSweepService, logger *zap.Logger, timeout time.Duration) *OverdueMilestonesJob {
	return &OverdueMilestonesJob{
		ledgerService: ledgerService,
		logger:        logger,
		timeout:       timeout,
	}
}

// Run executes the overdue milestone sweep.
// This is called by the scheduler according to the cron expression.
func (j *OverdueMilestonesJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting overdue milestone sweep")

	updated, err := j.ledgerService.MarkOverdueMilestones(ctx)
	if err != nil {
		j.logger.Error("overdue milestone sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("overdue milestone sweep completed",
		zap.Int64("milestones_marked", updated),
		zap.Duration("duration", time.Since(start)))
}

// RegisterOverdueMilestonesJob registers the overdue milestone sweep with the scheduler.
// The cronExpr should be a valid cron expression with a seconds field
// (e.g., "0 0 2 * * *" for daily at 02:00).
func RegisterOverdueMilestonesJob(scheduler *Scheduler, ledgerService MilestoneSweepService, logger *zap.Logger, cronExpr string) error {
	job := NewOverdueMilestonesJob(ledgerService, logger, DefaultSweepTimeout)
	return scheduler.AddJob(OverdueMilestonesJobName, cronExpr, job.Run)
}
