package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/logfields"
)

// IngestCmd implements the 'ingest' command.
type IngestCmd struct {
	Log      string `required:"" help:"Request log file to replay"`
	Rebuild  bool   `help:"Clear the census before replaying"`
	Database string `help:"Census database path (overrides config)"`
}

func (i *IngestCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogLevel(root, cfg)

	dbPath, err := censusDatabase(i.Database, cfg)
	if err != nil {
		return err
	}

	store, err := census.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if i.Rebuild {
		if err := store.Reset(ctx); err != nil {
			return err
		}
		slog.Info("Census cleared for rebuild", logfields.Path(dbPath))
	}

	f, err := os.Open(i.Log)
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}
	defer f.Close()

	stats, err := census.Ingest(ctx, store, f)
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d records (%d already counted, %d invalid)\n",
		stats.Applied, stats.Skipped, stats.Invalid)
	return nil
}
