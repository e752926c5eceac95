package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/output"
	"taskboard/internal/service"
	"taskboard/internal/view"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	status string
	sort   string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskboard list [--status <filter>] [--sort dueDate|priority|status]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", string(view.FilterAll), "")
	fs.StringVar(&c.status, "s", string(view.FilterAll), "")
	fs.StringVar(&c.sort, "sort", string(view.SortDueDate), "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	// Zero values appear when Run is called without flag registration.
	status, sortKey := c.status, c.sort
	if status == "" {
		status = string(view.FilterAll)
	}
	if sortKey == "" {
		sortKey = string(view.SortDueDate)
	}

	filter, err := view.ParseFilter(status)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	key, err := view.ParseSortKey(sortKey)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	st, err := loadStore(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}

	result := view.Derive(st.Tasks(), filter, key)
	if len(result.Visible) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	output.FormatTasks(out, result.Visible)
	return exitcode.Success
}
