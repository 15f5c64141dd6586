package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
)

// ConfigWatcher monitors the configuration file and applies reloadable
// settings to a running server without a restart.
type ConfigWatcher struct {
	configPath   string
	current      *config.Config
	apply        func(*config.Config) error
	watcher      *fsnotify.Watcher
	mu           sync.RWMutex
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a watcher for the given configuration file. The
// apply callback receives each successfully loaded configuration.
func NewConfigWatcher(configPath string, current *config.Config, apply func(*config.Config) error) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	return &ConfigWatcher{
		configPath:   absPath,
		current:      current,
		apply:        apply,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second, // Debounce rapid file changes
	}, nil
}

// Start begins monitoring the configuration file.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	// Watching the directory survives editors that replace the file on save.
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", configDir, err)
	}

	slog.Info("Starting configuration watcher", "config_path", cw.configPath)

	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)

	return nil
}

// Stop stops the configuration watcher.
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	slog.Info("Stopping configuration watcher")

	close(cw.stopChan)

	if cw.watcher != nil {
		if err := cw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", "error", err)
		}
	}

	return nil
}

// watchLoop forwards file system events for the config file.
func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != configFile {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write {
				slog.Debug("Config file write detected", "file", event.Name)
				cw.triggerReload()
			} else if event.Op&fsnotify.Create == fsnotify.Create {
				slog.Debug("Config file create detected", "file", event.Name)
				cw.triggerReload()
			} else if event.Op&fsnotify.Remove == fsnotify.Remove {
				slog.Warn("Config file removed", "file", event.Name)
			} else if event.Op&fsnotify.Rename == fsnotify.Rename {
				slog.Debug("Config file rename detected", "file", event.Name)
				cw.triggerReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// reloadLoop debounces reload triggers so editor save bursts load once.
func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(); err != nil {
					slog.Error("Failed to reload configuration", "error", err)
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
		// Reload triggered
	default:
		// Reload already pending
	}
}

// performReload loads the new configuration and hands it to the apply
// callback. Settings that cannot change at runtime only produce warnings.
func (cw *ConfigWatcher) performReload() error {
	slog.Info("Reloading configuration", "config_path", cw.configPath)

	newConfig, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("load new configuration: %w", err)
	}

	cw.mu.Lock()
	warnRestartRequired(cw.current, newConfig)
	cw.current = newConfig
	cw.mu.Unlock()

	if err := cw.apply(newConfig); err != nil {
		return fmt.Errorf("apply new configuration: %w", err)
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}

// Current returns the most recently loaded configuration.
func (cw *ConfigWatcher) Current() *config.Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.current
}

// warnRestartRequired flags changes a running server cannot pick up. Only
// the log level and the publishing toggle apply live.
func warnRestartRequired(old, next *config.Config) {
	if old.Server == nil || next.Server == nil {
		if (old.Server == nil) != (next.Server == nil) {
			slog.Warn("Server section added or removed - restart required")
		}
		return
	}

	checks := []struct {
		setting string
		was     string
		now     string
	}{
		{"server.listen_addr", old.Server.ListenAddr, next.Server.ListenAddr},
		{"server.admin_addr", old.Server.AdminAddr, next.Server.AdminAddr},
		{"server.database", old.Server.Database, next.Server.Database},
		{"server.request_log", old.Server.RequestLog, next.Server.RequestLog},
		{"server.nats.url", old.Server.NATS.URL, next.Server.NATS.URL},
		{"server.nats.subject", old.Server.NATS.Subject, next.Server.NATS.Subject},
	}
	for _, c := range checks {
		if c.was != c.now {
			slog.Warn("Setting changed - restart required for full effect",
				"setting", c.setting, "was", c.was, "now", c.now)
		}
	}
}
