// Package daemon runs the reporting agent on a fixed schedule, for installs
// where no system timer drives the one-shot command.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// Runner executes one agent pass.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon schedules periodic agent runs.
type Daemon struct {
	runner    Runner
	interval  time.Duration
	scheduler gocron.Scheduler
}

// New creates a daemon that invokes runner every interval.
func New(runner Runner, interval time.Duration) (*Daemon, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Daemon{
		runner:    runner,
		interval:  interval,
		scheduler: s,
	}, nil
}

// Start schedules the periodic run, fires the first one immediately, and
// blocks until ctx is cancelled. A failed run waits for the next tick; the
// agent's own state markers make retries safe.
func (d *Daemon) Start(ctx context.Context) error {
	job, err := d.scheduler.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() { d.runOnce(ctx) }),
		gocron.WithName("phone-home"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule agent runs: %w", err)
	}

	slog.Info("Agent run scheduled",
		slog.String("job_id", job.ID().String()),
		slog.Duration("interval", d.interval))

	d.scheduler.Start()
	<-ctx.Done()
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for a running agent
// pass to finish.
func (d *Daemon) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return d.scheduler.Shutdown()
}

func (d *Daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	slog.Info("Starting scheduled agent run")
	if err := d.runner.Run(ctx); err != nil {
		slog.Error("Scheduled agent run failed", logfields.Error(err))
		return
	}
	slog.Info("Scheduled agent run finished")
}
