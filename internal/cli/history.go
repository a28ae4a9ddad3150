package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/ir"
	"github.com/roach88/splice/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit    int
	Identity string
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Submissions []store.Submission `json:"submissions"`
}

// Lines implements textual.
func (r HistoryResult) Lines() []string {
	if len(r.Submissions) == 0 {
		return []string{"no submissions"}
	}
	lines := make([]string, 0, len(r.Submissions))
	for _, s := range r.Submissions {
		line := fmt.Sprintf("%5d  %-6s  %s  %s", s.Seq, s.Outcome, s.Identity, destinationList(s.Destinations))
		if s.NewIdentity {
			line += "  new"
		}
		if s.Redeliveries > 0 {
			line += fmt.Sprintf("  redelivered x%d", s.Redeliveries)
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return lines
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List processed submissions",
		Long: `List the submission log kept in the database: one entry per distinct
submission with its identity, destinations and outcome. Answer values are
not stored. Requires the xlsx or sqlite backend.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "show the most recent n submissions (0 for all)")
	cmd.Flags().StringVar(&opts.Identity, "identity", "", "only submissions for this identity")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	id := ir.Identity(strings.ToLower(opts.Identity))
	if opts.Identity != "" && !id.Valid() {
		return formatter.Fail(ExitCommandError, ErrCodeIdentity, "invalid identity",
			fmt.Errorf("%q is not a %d-character hex identity", opts.Identity, ir.IdentityLength))
	}

	cfg, layout, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, configErrCode(err), "failed to load config", err)
	}
	b, err := openBackend(cfg, layout)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to open backend", err)
	}
	defer b.closeLogged()

	if b.store == nil {
		return formatter.Fail(ExitCommandError, ErrCodeNoLog, "no submission log", errNoStore)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var subs []store.Submission
	if id != "" {
		subs, err = b.store.SubmissionsFor(ctx, id.String())
	} else {
		subs, err = b.store.ListSubmissions(ctx, opts.Limit)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to read submission log", err)
	}
	if subs == nil {
		subs = []store.Submission{}
	}
	return formatter.Success(HistoryResult{Submissions: subs})
}
