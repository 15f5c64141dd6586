package config

import (
	"fmt"
	"net/url"
	"time"
)

// validateConfig validates the configuration after defaults and overrides.
func validateConfig(config *Config) error {
	if err := validateEndpoint("agent.activate_url", config.Agent.ActivateURL); err != nil {
		return err
	}
	if err := validateEndpoint("agent.ping_url", config.Agent.PingURL); err != nil {
		return err
	}
	if config.Agent.StateDir == "" {
		return fmt.Errorf("agent.state_dir must not be empty")
	}
	if _, err := time.ParseDuration(config.Agent.Timeout); err != nil {
		return fmt.Errorf("agent.timeout: %w", err)
	}

	if iv, err := time.ParseDuration(config.Daemon.Interval); err != nil {
		return fmt.Errorf("daemon.interval: %w", err)
	} else if iv < time.Minute {
		return fmt.Errorf("daemon.interval %s is below the 1m minimum", iv)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", config.Logging.Level)
	}

	if config.Server != nil {
		if config.Server.ListenAddr == "" {
			return fmt.Errorf("server.listen_addr must not be empty")
		}
		if config.Server.AdminAddr == "" {
			return fmt.Errorf("server.admin_addr must not be empty")
		}
		if config.Server.ListenAddr == config.Server.AdminAddr {
			return fmt.Errorf("server.listen_addr and server.admin_addr must differ")
		}
		if config.Server.Database == "" {
			return fmt.Errorf("server.database must not be empty")
		}
		if config.Server.NATS.Enabled && config.Server.NATS.URL == "" {
			return fmt.Errorf("server.nats.url required when nats is enabled")
		}
	}

	return nil
}

func validateEndpoint(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q (want http or https)", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
