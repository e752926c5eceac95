package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
	"taskboard/internal/task"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	flags draftFlags
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskboard add --desc <text> [--priority <p>] [--assignee <name>] [--due <date>] [--status <s>] <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	c.flags.register(fs, false)
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	now := Now()
	d := task.Draft{
		Title:    title,
		Status:   task.StatusTodo,
		Priority: task.PriorityMedium,
		DueDate:  now.Format(task.DateLayout),
	}
	if err := c.flags.apply(&d, now); err != nil {
		return reportError(errOut, err)
	}
	if err := d.Validate(); err != nil {
		return reportError(errOut, err)
	}

	st, err := loadStore(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}
	created, err := st.Create(ctx, d)
	if err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "ok %s\n", created.ID)
	}
	return exitcode.Success
}
