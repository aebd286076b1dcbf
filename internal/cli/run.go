package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/migdalzone/tracecap/internal/bedrock"
	"github.com/migdalzone/tracecap/internal/config"
	"github.com/migdalzone/tracecap/internal/llmobs"
	"github.com/migdalzone/tracecap/internal/orchestrator"
	"github.com/migdalzone/tracecap/internal/runner"
	"github.com/migdalzone/tracecap/internal/store"
	"github.com/migdalzone/tracecap/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Questions string
	Delay     int
	Database  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the question suite against the configured agent",
		Long: `Run every question in the suite against the configured Bedrock agent,
capture its trace events as Datadog LLM Observability spans, and print a
pass/fail report.

Configuration comes from the environment (see .env support): AGENT_ID,
AGENT_ALIAS_ID and DATADOG_API_KEY are required.

The process exits 0 whenever the suite ran to completion - failed questions
are recorded in the report, not in the exit code.

Examples:
  tracecap run
  tracecap run --questions ./eval-questions.yaml --delay 5
  tracecap run --db ./history.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Questions, "questions", "", "path to a question suite YAML (default: embedded suite)")
	cmd.Flags().IntVar(&opts.Delay, "delay", 3, "delay in seconds between questions")
	cmd.Flags().StringVar(&opts.Database, "db", "", "optional SQLite database for run history")

	return cmd
}

func runSuite(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	settings, err := config.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	setupLogging(settings.LogLevel, opts.Verbose)

	s := suite.Default()
	if opts.Questions != "" {
		s, err = suite.Load(opts.Questions)
		if err != nil {
			return WrapExitError(ExitCommandError, "loading questions", err)
		}
	}

	client, err := bedrock.New(ctx, settings)
	if err != nil {
		return WrapExitError(ExitCommandError, "creating Bedrock client", err)
	}
	slog.Info("Bedrock client initialized", "region", settings.Region, "agent_id", settings.AgentID)

	tracer := llmobs.NewTracer(settings.MLAppName, llmobs.NewClient(settings))
	orch := orchestrator.New(client, tracer, settings)
	run := runner.New(orch, tracer, time.Duration(opts.Delay)*time.Second)

	out := cmd.OutOrStdout()
	if opts.Format == "text" {
		runner.RenderHeader(out, runner.ReportHeader{
			Suite:     s.Name,
			MLApp:     settings.MLAppName,
			Site:      settings.DatadogSite,
			AgentID:   settings.AgentID,
			Questions: len(s.Questions),
		})
	}

	started := time.Now()
	results := run.Run(ctx, s)

	if opts.Format == "json" {
		payload := struct {
			Suite   string             `json:"suite"`
			Summary suite.Summary      `json:"summary"`
			Results []suite.TestResult `json:"results"`
		}{s.Name, suite.Summarize(results), results}
		if err := json.NewEncoder(out).Encode(payload); err != nil {
			return WrapExitError(ExitFailure, "encoding results", err)
		}
	} else {
		runner.RenderResults(out, results)
		runner.RenderFlushFooter(out, settings.TracesURL())
	}

	if opts.Database != "" {
		if err := persistRun(ctx, opts.Database, s.Name, settings.AgentID, started, results); err != nil {
			// History is best-effort bookkeeping; the run itself succeeded.
			slog.Error("failed to persist run history", "error", err)
			fmt.Fprintf(os.Stderr, "Warning: run history not saved: %v\n", err)
		}
	}

	return nil
}

func persistRun(ctx context.Context, dbPath, suiteName, agentID string, started time.Time, results []suite.TestResult) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.WriteRun(ctx, store.Run{
		ID:        uuid.NewString(),
		Suite:     suiteName,
		AgentID:   agentID,
		StartedAt: started,
		Summary:   suite.Summarize(results),
	}, results)
}
