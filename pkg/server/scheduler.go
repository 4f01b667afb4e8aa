package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	drepo "MacoPull/internal/domain/repository"
	applogger "MacoPull/pkg/logger"
)

// Scheduler triggers the pipeline on a cron schedule. Specs carry a leading
// seconds field ("0 30 22 * * 1-5"). A trigger that fires while the previous
// run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	l       *applogger.Logger
	timeout time.Duration
}

// NewScheduler validates spec and registers the pipeline job.
func NewScheduler(spec string, runner Runner, l *applogger.Logger, timeout time.Duration) (*Scheduler, error) {
	if l == nil {
		l = applogger.Nop()
	}
	cl := cronLogger{l: l}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		l:       l,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.runJob); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}

// Next reports the next scheduled trigger.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runJob() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, drepo.ErrRunInProgress):
		s.l.Warn("scheduled run skipped, another run holds the lock")
	case err != nil:
		s.l.Error("scheduled run could not start", applogger.Error(err))
	case res.Failed():
		s.l.Warn("scheduled run finished with failures",
			applogger.String("run_id", res.RunID),
			applogger.Int("added", res.Added()),
		)
	default:
		s.l.Info("scheduled run finished",
			applogger.String("run_id", res.RunID),
			applogger.Int("added", res.Added()),
		)
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
