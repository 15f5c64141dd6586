package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/LuisBuenanyo/eos-phone-home/internal/census"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
	"github.com/LuisBuenanyo/eos-phone-home/internal/report"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Channel  string `help:"Limit the report to one channel"`
	Report   string `name:"report" help:"Write a standalone HTML report to this file instead of printing"`
	Database string `help:"Census database path (overrides config)"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogLevel(root, cfg)

	dbPath, err := censusDatabase(h.Database, cfg)
	if err != nil {
		return err
	}

	store, err := census.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := report.Build(context.Background(), store, time.Now())
	if err != nil {
		return err
	}
	rep = rep.Filter(h.Channel)

	if h.Report != "" {
		if err := rep.WriteHTML(h.Report); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", h.Report)
		return nil
	}

	fmt.Print(rep.Markdown())
	return nil
}
