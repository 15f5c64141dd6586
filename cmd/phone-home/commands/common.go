package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
)

// logLevel backs the default handler so commands and the serve config
// watcher can adjust verbosity after parse time.
var logLevel = new(slog.LevelVar)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"phone-home.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Send the activation and ping reports that are due"`
	Daemon   DaemonCmd   `cmd:"" help:"Run the agent periodically"`
	Serve    ServeCmd    `cmd:"" help:"Run the census server"`
	Ingest   IngestCmd   `cmd:"" help:"Replay a request log into the census database"`
	History  HistoryCmd  `cmd:"" help:"Print or export the census history report"`
	Simulate SimulateCmd `cmd:"" help:"Check estimator accuracy with synthetic clients"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	logLevel.Set(slog.LevelInfo)
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return nil
}

// applyLogLevel picks up the configured level unless --verbose already
// forced debug.
func applyLogLevel(root *CLI, cfg *config.Config) {
	if root.Verbose {
		return
	}
	logLevel.Set(cfg.Logging.SlogLevel())
}

// censusDatabase picks the census database path: explicit flag first, then
// the server config. Guessing a path would risk building an empty census
// next to the real one, so no fallback exists.
func censusDatabase(flagValue string, cfg *config.Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Server != nil && cfg.Server.Database != "" {
		return cfg.Server.Database, nil
	}
	return "", fmt.Errorf("no census database configured: pass --database or add a server block to the configuration")
}
