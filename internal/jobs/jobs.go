// Package jobs runs the portal's periodic work (market refresh, feed
// ingest) on cron schedules.
//
//	s := jobs.New(logger)
//	s.Add("market-refresh", "@every 5m", func(ctx context.Context) error { ... })
//	s.Start()
//	defer s.Stop(shutdownCtx)
//
// A job that is still running when its next tick arrives is skipped, and a
// panicking job is recovered and logged.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is one unit of scheduled work. ctx is cancelled on Stop.
type Func func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	names  []string
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add schedules fn under spec (standard 5-field cron or a descriptor such as
// "@hourly" or "@every 5m"). An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	if spec == "" {
		s.logger.Info("job disabled", slog.String("job", name))
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.wrap(name, fn)); err != nil {
		return fmt.Errorf("jobs: scheduling %s with %q: %w", name, spec, err)
	}
	s.names = append(s.names, name)
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Jobs lists the scheduled job names.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.names...)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

func (s *Scheduler) wrap(name string, fn Func) func() {
	return func() {
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			s.logger.Error("job failed",
				slog.String("job", name),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("job finished", slog.String("job", name), slog.Duration("duration", time.Since(start)))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
