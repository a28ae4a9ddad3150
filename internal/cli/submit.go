package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splice/internal/splice"
)

// SubmitResult reports one submission file.
type SubmitResult struct {
	File         string   `json:"file"`
	Token        string   `json:"token,omitempty"`
	Identity     string   `json:"identity,omitempty"`
	NewIdentity  bool     `json:"new_identity"`
	Destinations []string `json:"destinations"`
	Unknown      []string `json:"unknown,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// SubmitResults is the output of the submit command.
type SubmitResults struct {
	Results []SubmitResult `json:"results"`
	Failed  int            `json:"failed"`
}

// Lines implements textual.
func (r SubmitResults) Lines() []string {
	var lines []string
	for _, res := range r.Results {
		if res.Error != "" {
			lines = append(lines, fmt.Sprintf("FAIL %s: %s", res.File, res.Error))
			continue
		}
		line := fmt.Sprintf("ok   %s -> %s", res.File, destinationList(res.Destinations))
		if res.NewIdentity {
			line += " (new applicant)"
		}
		if len(res.Unknown) > 0 {
			line += fmt.Sprintf(" [unknown: %s]", strings.Join(res.Unknown, ", "))
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("%d submitted, %d failed", len(r.Results)-r.Failed, r.Failed))
	return lines
}

func destinationList(sheets []string) string {
	if len(sheets) == 0 {
		return "(none)"
	}
	return strings.Join(sheets, ", ")
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Splice submission files",
		Long: `Splice each submission file in order. A file is a JSON array of answers,
a JSON object with an "answers" array, or a .csv/.xlsx responses export
whose last row is the submission.

Exits 1 if any file fails; the rest are still processed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runSubmit(cmd *cobra.Command, opts *RootOptions, files []string) error {
	formatter := newFormatter(opts, cmd)

	cfg, layout, err := loadConfig(opts)
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

	handler := b.handler(b.coordinator(nil))

	out := SubmitResults{Results: make([]SubmitResult, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("submitting %s", file)
		res, err := handler.HandleFile(ctx, file)
		out.Results = append(out.Results, submitResult(file, res, err))
		if err != nil {
			out.Failed++
		}
	}

	if err := formatter.Success(out); err != nil {
		return err
	}
	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d submissions failed", out.Failed, len(files)))
	}
	return nil
}

func submitResult(file string, res *splice.Result, err error) SubmitResult {
	r := SubmitResult{File: file, Destinations: []string{}}
	if res != nil {
		r.Token = res.Token
		r.Identity = res.Identity.String()
		r.NewIdentity = res.NewIdentity
		r.Destinations = res.Sheets()
		r.Unknown = res.Unknown
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
