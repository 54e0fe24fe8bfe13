package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"turtlestock/internal/analysis"
	"turtlestock/internal/market"
)

// Scheduler fires the daily analysis after the market close. A manual force
// run goes through the same job, so it shares the once-per-day idempotency.
type Scheduler struct {
	cron   *cron.Cron
	job    *analysis.Job
	logger *zap.Logger
	ctx    context.Context
}

// New creates a scheduler driving the daily job
func New(ctx context.Context, job *analysis.Job, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(market.ETLocation())),
		job:    job,
		logger: logger,
		ctx:    ctx,
	}
}

// Register adds the daily trigger. spec is a 6-field cron expression in
// Eastern Time, e.g. "0 30 16 * * 1-5" for 16:30 ET on weekdays.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron loop, waiting for a running task to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the daily task immediately (manual trigger)
func (s *Scheduler) RunNow() {
	s.dailyTask()
}

func (s *Scheduler) dailyTask() {
	now := time.Now()
	if !market.IsTradingDay(now) {
		s.logger.Info("not a trading day, skipping analysis")
		return
	}

	report, err := s.job.Run(s.ctx, sessionDate(now))
	if err != nil {
		s.logger.Error("daily analysis failed", zap.Error(err))
		return
	}
	if report.AlreadyRan {
		return
	}
	s.logger.Info("scheduled analysis finished",
		zap.Int("analyzed", report.Run.Analyzed),
		zap.Int("triggered", report.Run.Triggered))
}

// sessionDate is the trading date the sweep belongs to: the day of the most
// recent completed close in Eastern Time
func sessionDate(now time.Time) time.Time {
	prior := market.PriorClose(now)
	return time.Date(prior.Year(), prior.Month(), prior.Day(), 0, 0, 0, 0, time.UTC)
}
