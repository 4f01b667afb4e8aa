package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"MacoPull/internal/domain/models"
	"MacoPull/pkg/config"
	xhttp "MacoPull/pkg/http"
	applogger "MacoPull/pkg/logger"
)

// Mode selects how the application is driven.
type Mode string

const (
	// ModeOnce runs a single batch and exits.
	ModeOnce Mode = "once"
	// ModeServe exposes the HTTP API; batches run on POST /api/run.
	ModeServe Mode = "serve"
	// ModeSchedule serves the HTTP API and runs batches on the cron schedule.
	ModeSchedule Mode = "schedule"
)

// ParseMode validates a -mode flag value.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeOnce, ModeServe, ModeSchedule:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want once, serve or schedule)", s)
}

// Runner executes one pipeline batch.
type Runner interface {
	Run(ctx context.Context) (*models.BatchResult, error)
}

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	runner     Runner
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, runner Runner, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, runner: runner, httpServer: httpServer}
}

// RunOnce executes a single batch.
func (a *App) RunOnce(ctx context.Context) (*models.BatchResult, error) {
	a.l.Info("running single batch", applogger.Strings("symbols", a.cfg.Pipeline.Symbols))
	return a.runner.Run(ctx)
}

// Serve starts the HTTP server and blocks until ctx is done, a signal arrives
// or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	return a.serve(ctx, nil)
}

// Schedule is Serve plus the cron trigger.
func (a *App) Schedule(ctx context.Context) error {
	sched, err := NewScheduler(a.cfg.Pipeline.Schedule, a.runner, a.l, a.cfg.Pipeline.Lock.TTL)
	if err != nil {
		return err
	}
	return a.serve(ctx, sched)
}

func (a *App) serve(ctx context.Context, sched *Scheduler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := a.httpServer.Start()
	if sched != nil {
		sched.Start()
		a.l.Info("next scheduled run", applogger.Time("at", sched.Next()))
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.shutdown(sched)
	return runErr
}

// shutdown stops the scheduler first so no batch starts mid-teardown.
func (a *App) shutdown(sched *Scheduler) {
	a.l.Info("shutting down")
	if sched != nil {
		sched.Stop()
	}
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.l.Info("shutdown complete")
}
