package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process environment variables are
// never overwritten (godotenv.Load semantics).
func loadEnvFiles() {
	envPaths := []string{".env", ".env.local"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Debug("Failed to load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", envPath)
		return
	}
}

// applyEnvOverrides applies per-machine environment overrides on top of file
// and default values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv(EnvActivateURL); v != "" {
		config.Agent.ActivateURL = v
	}
	if v := os.Getenv(EnvPingURL); v != "" {
		config.Agent.PingURL = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		config.Agent.StateDir = v
	}
}
