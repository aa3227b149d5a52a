// Package scheduler runs named jobs on a daily wall-clock schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler evaluating schedules in loc. A panicking job is
// recovered and logged.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddDaily registers fn to run every day at hour:minute.
func (s *Scheduler) AddDaily(hour, minute int, name string, fn Job) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("job %s: hour %d out of range", name, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("job %s: minute %d out of range", name, minute)
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.logger.Info("job scheduled", "job", name, "schedule", spec, "location", s.cron.Location().String())
	return nil
}

func (s *Scheduler) run(name string, fn Job) {
	start := time.Now()
	if err := fn(s.ctx); err != nil {
		s.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("job finished", "job", name, "duration", time.Since(start))
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()

	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
