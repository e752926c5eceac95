package commands

import (
	"context"
	"flag"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/output"
	"taskboard/internal/service"
	"taskboard/internal/view"
)

func init() {
	Register(&SummaryCmd{})
}

// SummaryCmd implements the summary command.
type SummaryCmd struct{}

func (c *SummaryCmd) Name() string      { return "summary" }
func (c *SummaryCmd) Aliases() []string { return []string{"stats"} }
func (c *SummaryCmd) Synopsis() string  { return "Print task counts and rates" }
func (c *SummaryCmd) Usage() string     { return "taskboard summary" }
func (c *SummaryCmd) NeedsAuth() bool   { return true }

func (c *SummaryCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SummaryCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	st, err := loadStore(ctx, cfg, svc)
	if err != nil {
		return reportError(errOut, err)
	}
	output.FormatSummary(out, view.Summarize(st.Tasks()))
	return exitcode.Success
}
