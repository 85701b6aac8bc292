package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roadwatch/internal/domain"

	"github.com/robfig/cron/v3"
)

type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (domain.ReapReport, error)
}

type Clock interface {
	Now() time.Time
}

// ReaperWorker runs the expiry sweep on a cron schedule. A sweep that is
// still running when the next tick fires causes that tick to be skipped.
type ReaperWorker struct {
	sweeper  Sweeper
	clock    Clock
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewReaperWorker(sweeper Sweeper, clock Clock, schedule string, logger *slog.Logger) *ReaperWorker {
	return &ReaperWorker{
		sweeper:  sweeper,
		clock:    clock,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger,
	}
}

// Run blocks until ctx is done, then waits for an in-flight sweep to finish.
func (w *ReaperWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(w.schedule, func() { w.tick(ctx) }); err != nil {
		return fmt.Errorf("workers.ReaperWorker.Run: schedule %q: %w", w.schedule, err)
	}

	w.logger.Info("reaper started", slog.String("schedule", w.schedule))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("reaper stopped")
	return nil
}

// RunOnce performs a single sweep at the current time.
func (w *ReaperWorker) RunOnce(ctx context.Context) (domain.ReapReport, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	return w.sweeper.Sweep(ctx, w.clock.Now())
}

func (w *ReaperWorker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	report, err := w.RunOnce(ctx)
	if err != nil {
		w.logger.Error("sweep failed", slog.Any("error", err))
		return
	}
	if len(report.DeletedIncidentIDs) > 0 || len(report.Failures) > 0 {
		w.logger.Info("sweep done",
			slog.Int("deleted", len(report.DeletedIncidentIDs)),
			slog.Int("failures", len(report.Failures)),
			slog.Duration("took", time.Since(started)),
		)
	}
}
