package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Fields without a flag keep their
// current value; the full record is written back.
type EditCmd struct {
	flags draftFlags
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"update"} }
func (c *EditCmd) Synopsis() string  { return "Change fields of a task" }
func (c *EditCmd) Usage() string {
	return "taskboard edit [--title <t>] [--desc <d>] [--status <s>] [--priority <p>] [--assignee <a>] [--due <date>] <ref>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.flags.register(fs, true)
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	st, t, err := lookupTask(ctx, cfg, svc, args)
	if err != nil {
		return reportError(errOut, err)
	}

	d := t.Draft()
	if err := c.flags.apply(&d, Now()); err != nil {
		return reportError(errOut, err)
	}
	if err := d.Validate(); err != nil {
		return reportError(errOut, err)
	}

	if _, err := st.Update(ctx, t.ID, d); err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
