package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/intake"
	"github.com/roach88/splice/internal/splice"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	HeaderFrom string // responses export to copy question headers from
}

// InitResult is the output of the init command.
type InitResult struct {
	Backend string   `json:"backend"`
	Sheets  []string `json:"sheets"`
}

// Lines implements textual.
func (r InitResult) Lines() []string {
	return []string{fmt.Sprintf("initialized %s backend: %s", r.Backend, strings.Join(r.Sheets, ", "))}
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create destination and analytics sheets",
		Long: `Create every destination sheet named by the routing table and the
analytics sheet, each with a header row. Sheets that already exist are left
untouched, so init is safe to re-run after the routing table grows.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.HeaderFrom, "header-from", "", "responses export (.csv or .xlsx) to take question headers from")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, layout, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, configErrCode(err), "failed to load config", err)
	}

	var questions []string
	if opts.HeaderFrom != "" {
		questions, err = intake.ReadHeader(opts.HeaderFrom, cfg.Intake.ResponsesSheet)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to read header", err)
		}
	}

	b, err := openBackend(cfg, layout)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to open backend", err)
	}
	defer b.closeLogged()

	book, ok := b.book.(splice.InitBook)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeInitFail, "backend cannot create sheets", nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sheets, err := splice.Init(ctx, book, layout, cfg.AnalyticsSheet, questions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInitFail, "failed to create sheets", err)
	}

	return formatter.Success(InitResult{Backend: cfg.Backend, Sheets: sheets})
}
