package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/LuisBuenanyo/eos-phone-home/internal/agent"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Interval time.Duration `help:"Time between agent runs (overrides config)"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogLevel(root, cfg)

	interval := cfg.Daemon.RunInterval()
	if d.Interval > 0 {
		interval = d.Interval
	}

	a := agent.New(agent.Options{
		StateDir:    cfg.Agent.StateDir,
		ActivateURL: cfg.Agent.ActivateURL,
		PingURL:     cfg.Agent.PingURL,
		Timeout:     cfg.Agent.RequestTimeout(),
	})

	dm, err := daemon.New(a, interval)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	// Create main context for the daemon
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start daemon in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- dm.Start(ctx)
	}()

	slog.Info("Daemon started, waiting for shutdown signal...")

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("daemon error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	// Stop daemon gracefully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := dm.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
