// Command phone-home is the Endless OS telemetry agent and census server.
package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/LuisBuenanyo/eos-phone-home/cmd/phone-home/commands"
	"github.com/LuisBuenanyo/eos-phone-home/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("phone-home"),
		kong.Description("Endless OS phone home agent and census server."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	err := ctx.Run(&commands.Global{Logger: slog.Default()})
	ctx.FatalIfErrorf(err)
}
