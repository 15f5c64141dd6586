package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LuisBuenanyo/eos-phone-home/internal/agent"
	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
)

// RunCmd implements the default one-shot agent run.
type RunCmd struct {
	Debug bool `help:"Log payloads without transmitting or advancing the ping counter"`
	Force bool `help:"Ignore the activation and ping due-ness checks"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyLogLevel(root, cfg)
	if r.Debug {
		logLevel.Set(slog.LevelDebug)
	}

	a := agent.New(agent.Options{
		StateDir:    cfg.Agent.StateDir,
		ActivateURL: cfg.Agent.ActivateURL,
		PingURL:     cfg.Agent.PingURL,
		Timeout:     cfg.Agent.RequestTimeout(),
		Debug:       r.Debug,
		Force:       r.Force,
	})
	return a.Run(context.Background())
}
