package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migdalzone/tracecap/internal/bedrock"
	"github.com/migdalzone/tracecap/internal/config"
	"github.com/migdalzone/tracecap/internal/llmobs"
	"github.com/migdalzone/tracecap/internal/orchestrator"
	"github.com/migdalzone/tracecap/internal/suite"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	Expected string
	Language string
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the agent a single question with trace capture",
		Long: `Ask the configured Bedrock agent one ad-hoc question, capturing its
trace events as spans and flushing them before exit.

Examples:
  tracecap ask "כמה משימות יש לי?"
  tracecap ask --expected "Number of tasks" "כמה משימות יש לי?"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return askQuestion(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Expected, "expected", "", "expected answer, used for similarity scoring")
	cmd.Flags().StringVar(&opts.Language, "language", "", "BCP-47 language tag of the question (default Hebrew)")

	return cmd
}

func askQuestion(ctx context.Context, opts *AskOptions, text string, cmd *cobra.Command) error {
	settings, err := config.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	setupLogging(settings.LogLevel, opts.Verbose)

	q, err := suite.NewQuestion(text, opts.Expected, opts.Language)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid question", err)
	}

	client, err := bedrock.New(ctx, settings)
	if err != nil {
		return WrapExitError(ExitCommandError, "creating Bedrock client", err)
	}

	tracer := llmobs.NewTracer(settings.MLAppName, llmobs.NewClient(settings))
	orch := orchestrator.New(client, tracer, settings)

	answer, askErr := orch.Ask(ctx, q)

	// Spans flush even when the question failed: the failed workflow span
	// is exactly what the operator wants to look at.
	if err := tracer.Flush(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: span flush failed: %v\n", err)
	}

	if askErr != nil {
		return WrapExitError(ExitFailure, "question failed", askErr)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		payload := struct {
			Question   string  `json:"question"`
			Answer     string  `json:"answer"`
			Similarity float64 `json:"similarity,omitempty"`
			Quality    string  `json:"quality,omitempty"`
		}{Question: q.Text, Answer: answer}
		if q.Expected != "" {
			payload.Similarity = suite.Similarity(answer, q.Expected)
			payload.Quality = suite.Grade(payload.Similarity)
		}
		return json.NewEncoder(out).Encode(payload)
	}

	fmt.Fprintln(out, answer)
	if q.Expected != "" {
		sim := suite.Similarity(answer, q.Expected)
		fmt.Fprintf(out, "\nSimilarity: %.1f%% (%s)\n", sim, suite.Grade(sim))
	}
	fmt.Fprintf(out, "\nTraces flushed to Datadog: %s\n", settings.TracesURL())
	return nil
}
