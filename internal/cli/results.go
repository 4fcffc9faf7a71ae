package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/flashqual/internal/journal"
	"github.com/roach88/flashqual/internal/tester"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	Journal string
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Reprint the most recent journaled run",
		Long: `Reprint the report for the most recent run recorded in a results
journal, without touching any hardware.

Example:
  flashqual results --journal ./qual.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResults(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite results journal (required)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func showResults(opts *ResultsOptions, cmd *cobra.Command) error {
	log := configureLogging(opts.Verbose)

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	run, rows, err := j.LatestRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, "journal holds no runs")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	results := make([]tester.Result, 0, len(rows))
	for _, row := range rows {
		outcome, err := tester.ParseOutcome(row.Outcome)
		if err != nil {
			return WrapExitError(ExitCommandError, "journal holds malformed result", err)
		}
		r := tester.Result{Name: row.Name, Outcome: outcome}
		if row.Detail != "" {
			r.Err = errors.New(row.Detail)
		}
		results = append(results, r)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s started %s targeting %s\n",
		run.ID, run.StartedAt.Format("2006-01-02 15:04:05 MST"), run.ChipKind)
	md := tester.Metadata{
		RunID:     run.ID,
		ChipName:  run.ChipName,
		OSRelease: run.OSRelease,
	}
	tester.Collate(cmd.OutOrStdout(), results, md, log)
	return nil
}
