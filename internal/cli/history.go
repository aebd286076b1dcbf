package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/migdalzone/tracecap/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past suite runs from the history database",
		Long: `List past suite runs recorded with 'tracecap run --db'.

With --run, prints the per-question results of one run instead.

Examples:
  tracecap history --db ./history.db
  tracecap history --db ./history.db --limit 5
  tracecap history --db ./history.db --run 6f1c...
  tracecap history --db ./history.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the results of one run id")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening database", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if opts.RunID != "" {
		results, err := st.ReadResults(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitFailure, "reading results", err)
		}
		if opts.Format == "json" {
			return json.NewEncoder(out).Encode(results)
		}
		for i, r := range results {
			status := "SUCCESS"
			if !r.Success {
				status = "FAILED"
			}
			fmt.Fprintf(out, "%d. [%s] %s (%.2fs)\n", i+1, status, r.Question, r.Duration.Seconds())
			if r.ErrorMessage != "" {
				fmt.Fprintf(out, "   error: %s\n", r.ErrorMessage)
			}
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "listing runs", err)
	}
	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(out, "%s  %s  suite=%s agent=%s  %d/%d passed (%.1f%%)\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.ID,
			run.Suite,
			run.AgentID,
			run.Summary.Passed,
			run.Summary.Total,
			run.Summary.SuccessRate,
		)
	}
	return nil
}
