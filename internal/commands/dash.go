package commands

import (
	"context"
	"flag"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
	"taskboard/internal/store"
	"taskboard/internal/tui"
)

func init() {
	Register(&DashCmd{})
}

// DashCmd implements the interactive dashboard.
type DashCmd struct{}

func (c *DashCmd) Name() string      { return "dash" }
func (c *DashCmd) Aliases() []string { return []string{"ui"} }
func (c *DashCmd) Synopsis() string  { return "Open the live dashboard" }
func (c *DashCmd) Usage() string     { return "taskboard dash" }
func (c *DashCmd) NeedsAuth() bool   { return true }

func (c *DashCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DashCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	st := store.New(svc, store.WithLogger(cfg.Logger), store.WithRecordGuard())
	if err := tui.Run(ctx, st, svc, cfg.Logger); err != nil {
		return reportError(errOut, err)
	}
	return exitcode.Success
}
