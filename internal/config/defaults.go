package config

import "time"

// CurrentVersion is the supported configuration file version.
const CurrentVersion = "1.0"

// Agent defaults. The endpoints and state directory are the fleet-wide
// contract; changing them changes which server counts this machine.
const (
	DefaultStateDir    = "/var/lib/eos-phone-home"
	DefaultActivateURL = "https://home.endlessm.com/v1/activate"
	DefaultPingURL     = "https://home.endlessm.com/v1/ping"

	defaultRequestTimeout = 30 * time.Second
	defaultRunInterval    = time.Hour
)

// Server defaults.
const (
	defaultListenAddr  = ":8080"
	defaultAdminAddr   = ":8081"
	defaultDatabase    = "./census.db"
	defaultRequestLog  = "./phone-home-requests.log"
	defaultNATSURL     = "nats://127.0.0.1:4222"
	defaultNATSSubject = "phonehome.events"
)

// Environment overrides. Env always wins over file values so a packaged
// config can be redirected per machine (staging servers, tests).
const (
	EnvActivateURL = "EOS_PHONE_HOME_ACTIVATE_URL"
	EnvPingURL     = "EOS_PHONE_HOME_PING_URL"
	EnvStateDir    = "EOS_PHONE_HOME_STATE_DIR"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Agent: AgentConfig{
			StateDir:    DefaultStateDir,
			ActivateURL: DefaultActivateURL,
			PingURL:     DefaultPingURL,
			Timeout:     defaultRequestTimeout.String(),
		},
		Daemon: DaemonConfig{
			Interval: defaultRunInterval.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills unset fields with default values.
func applyDefaults(config *Config) {
	if config.Agent.StateDir == "" {
		config.Agent.StateDir = DefaultStateDir
	}
	if config.Agent.ActivateURL == "" {
		config.Agent.ActivateURL = DefaultActivateURL
	}
	if config.Agent.PingURL == "" {
		config.Agent.PingURL = DefaultPingURL
	}
	if config.Agent.Timeout == "" {
		config.Agent.Timeout = defaultRequestTimeout.String()
	}
	if config.Daemon.Interval == "" {
		config.Daemon.Interval = defaultRunInterval.String()
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if config.Server != nil {
		if config.Server.ListenAddr == "" {
			config.Server.ListenAddr = defaultListenAddr
		}
		if config.Server.AdminAddr == "" {
			config.Server.AdminAddr = defaultAdminAddr
		}
		if config.Server.Database == "" {
			config.Server.Database = defaultDatabase
		}
		if config.Server.NATS.URL == "" {
			config.Server.NATS.URL = defaultNATSURL
		}
		if config.Server.NATS.Subject == "" {
			config.Server.NATS.Subject = defaultNATSSubject
		}
	}
}
