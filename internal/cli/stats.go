package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// SheetCount is the data row count of one destination sheet.
type SheetCount struct {
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
}

// StatsResult is the output of the stats command.
type StatsResult struct {
	UniqueApplicants int          `json:"unique_applicants"`
	Sheets           []SheetCount `json:"sheets"`
}

// Lines implements textual.
func (r StatsResult) Lines() []string {
	lines := []string{fmt.Sprintf("unique applicants: %d", r.UniqueApplicants)}
	for _, s := range r.Sheets {
		lines = append(lines, fmt.Sprintf("  %-12s %d", s.Sheet, s.Rows))
	}
	return lines
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show the applicant counter and rows per destination",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			cfg, layout, err := loadConfig(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, configErrCode(err), "failed to load config", err)
			}
			b, err := openBackend(cfg, layout)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to open backend", err)
			}
			defer b.closeLogged()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			counter, rows, err := b.sheetStats(ctx)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to read sheets", err)
			}

			res := StatsResult{UniqueApplicants: counter}
			for _, name := range layout.Table.Sheets() {
				res.Sheets = append(res.Sheets, SheetCount{Sheet: name, Rows: rows[name]})
			}
			return formatter.Success(res)
		},
	}
}
