package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
	"github.com/LuisBuenanyo/eos-phone-home/internal/metrics"
	"github.com/LuisBuenanyo/eos-phone-home/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct{}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Server == nil {
		return fmt.Errorf("no server configuration in %s (run 'phone-home init' for an example)", root.Config)
	}
	applyLogLevel(root, cfg)

	store, err := census.Open(cfg.Server.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	var requestLog *census.RequestLog
	if cfg.Server.RequestLog != "" {
		requestLog, err = census.OpenRequestLog(cfg.Server.RequestLog)
		if err != nil {
			return err
		}
		defer requestLog.Close()
	}

	publisher, err := server.NewPublisher(cfg.Server.NATS)
	if err != nil {
		return fmt.Errorf("connect event publisher: %w", err)
	}
	defer publisher.Close()

	registry := prom.NewRegistry()
	srv := server.New(cfg.Server, store, server.Options{
		RequestLog: requestLog,
		Publisher:  publisher,
		Recorder:   metrics.NewPrometheusRecorder(registry),
		Registry:   registry,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	// The watcher only applies settings a running server can change; the
	// rest produce restart-required warnings.
	watcher, err := server.NewConfigWatcher(root.Config, cfg, func(next *config.Config) error {
		if !root.Verbose {
			logLevel.Set(next.Logging.SlogLevel())
		}
		if next.Server != nil {
			srv.SetPublishing(next.Server.NATS.Enabled)
		}
		return nil
	})
	if err != nil {
		slog.Warn("Config watcher unavailable", logfields.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		slog.Warn("Config watcher failed to start", logfields.Error(err))
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping server...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return srv.Stop(stopCtx)
}
