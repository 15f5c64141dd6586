// Package config loads and validates phone-home configuration.
//
// The agent runs fine with no configuration file at all; every field has a
// default and the endpoint/state-dir settings honor environment overrides.
// The server block only matters for the census subcommands.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the unified configuration for the agent and the census server.
type Config struct {
	Version string        `yaml:"version"`
	Agent   AgentConfig   `yaml:"agent"`
	Daemon  DaemonConfig  `yaml:"daemon,omitempty"`
	Server  *ServerConfig `yaml:"server,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// AgentConfig controls the reporting agent.
type AgentConfig struct {
	StateDir    string `yaml:"state_dir"`    // Durable marker directory
	ActivateURL string `yaml:"activate_url"` // Activation endpoint
	PingURL     string `yaml:"ping_url"`     // Ping endpoint
	Timeout     string `yaml:"timeout"`      // HTTP client timeout (duration string)
}

// DaemonConfig controls periodic agent runs in daemon mode.
type DaemonConfig struct {
	Interval string `yaml:"interval"` // Time between agent runs (duration string)
}

// ServerConfig controls the census server.
type ServerConfig struct {
	ListenAddr string     `yaml:"listen_addr"` // API listener (activate/ping)
	AdminAddr  string     `yaml:"admin_addr"`  // Admin listener (healthz/metrics/stats)
	Database   string     `yaml:"database"`    // Census sqlite database path
	RequestLog string     `yaml:"request_log"` // JSONL request log path; empty disables
	NATS       NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig controls optional event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// RequestTimeout parses the agent timeout, falling back to the default.
func (a AgentConfig) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(a.Timeout); err == nil && d > 0 {
		return d
	}
	return defaultRequestTimeout
}

// RunInterval parses the daemon interval, falling back to the default.
func (d DaemonConfig) RunInterval() time.Duration {
	if iv, err := time.ParseDuration(d.Interval); err == nil && iv > 0 {
		return iv
	}
	return defaultRunInterval
}

// SlogLevel maps the configured level to a slog level (info when unset).
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads a configuration file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate version
	if config.Version == "" {
		config.Version = CurrentVersion
	}
	if config.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported configuration version: %s (expected %s)", config.Version, CurrentVersion)
	}

	applyDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads the file when present and otherwise returns the
// built-in defaults. The agent has to work on machines that never shipped
// a config file.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Debug("No configuration file, using defaults", "path", configPath)
		loadEnvFiles()
		config := Default()
		applyEnvOverrides(config)
		if err := validateConfig(config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return config, nil
	}
	return Load(configPath)
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Default()
	exampleConfig.Server = &ServerConfig{
		ListenAddr: defaultListenAddr,
		AdminAddr:  defaultAdminAddr,
		Database:   defaultDatabase,
		RequestLog: defaultRequestLog,
		NATS: NATSConfig{
			Enabled: false,
			URL:     defaultNATSURL,
			Subject: defaultNATSSubject,
		},
	}

	data, err := yaml.Marshal(exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
