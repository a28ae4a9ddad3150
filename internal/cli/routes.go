package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/routing"
)

// RoutesResult is the output of the routes command: the routing file shape
// plus the vector width it implies.
type RoutesResult struct {
	routing.File
	Width int `json:"width"`
}

// Lines implements textual.
func (r RoutesResult) Lines() []string {
	lines := []string{
		fmt.Sprintf("common       [%d,%d)", r.Common.Start, r.Common.End),
		fmt.Sprintf("switches     %v", r.Switches),
	}
	if r.Fields != nil {
		lines = append(lines, fmt.Sprintf("identity     %v  name %v  contact %d", r.Fields.Identity, r.Fields.Name, r.Fields.Contact))
	}
	lines = append(lines, fmt.Sprintf("sentinel     %q", r.Sentinel), fmt.Sprintf("width        %d", r.Width), "")
	for _, d := range r.Destinations {
		presence := "-"
		if d.HasAnalytics() {
			presence = fmt.Sprintf("col %d", d.AnalyticsColumn)
		}
		lines = append(lines, fmt.Sprintf("%-34s -> %-12s [%d,%d)  %s", d.Name, d.Sheet, d.Start, d.End, presence))
	}
	return lines
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print and validate the routing table",
		Long: `Load the configured routing table, validate it, and print it.
With no routing file configured the built-in recruitment layout is shown.

Exit codes:
  0 - Table is valid
  2 - Table or config is invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			_, layout, err := loadConfig(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, configErrCode(err), "invalid routing table", err)
			}
			return formatter.Success(RoutesResult{File: routing.FileOf(layout), Width: layout.Width()})
		},
	}
}
