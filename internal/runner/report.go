package runner

import (
	"fmt"
	"io"
	"strings"

	"github.com/migdalzone/tracecap/internal/suite"
	"github.com/migdalzone/tracecap/internal/textutil"
)

const (
	ruleWide   = 80
	ruleNarrow = 60

	// responsePreviewLen bounds how much of an answer the report shows.
	responsePreviewLen = 200
)

// ReportHeader describes the run for the report banner.
type ReportHeader struct {
	Suite     string
	MLApp     string
	Site      string
	AgentID   string
	Questions int
}

// RenderHeader writes the run banner.
func RenderHeader(w io.Writer, h ReportHeader) {
	rule := strings.Repeat("=", ruleWide)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BEDROCK AGENT TRACE CAPTURE")
	fmt.Fprintf(w, "Suite:        %s (%d questions)\n", h.Suite, h.Questions)
	fmt.Fprintf(w, "Application:  %s\n", h.MLApp)
	fmt.Fprintf(w, "Datadog site: %s\n", h.Site)
	fmt.Fprintf(w, "Agent:        %s\n", h.AgentID)
	fmt.Fprintln(w, "Captures:     PreProcessing, Orchestration, PostProcessing, Guardrail, Failure")
	fmt.Fprintln(w, rule)
}

// RenderResults writes the per-question outcomes and the run summary.
func RenderResults(w io.Writer, results []suite.TestResult) {
	for i, r := range results {
		fmt.Fprintf(w, "\n%s Test %d/%d %s\n", strings.Repeat("=", 20), i+1, len(results), strings.Repeat("=", 20))
		fmt.Fprintf(w, "Question: %s\n", r.Question)
		if r.Expected != "" {
			fmt.Fprintf(w, "Expected: %s\n", r.Expected)
		}
		fmt.Fprintln(w, strings.Repeat("-", ruleNarrow))

		if r.Success {
			fmt.Fprintf(w, "SUCCESS - duration %.2fs\n", r.Duration.Seconds())
			if r.Quality != "" {
				fmt.Fprintf(w, "Similarity: %.1f%% (%s)\n", r.Similarity, r.Quality)
			}
			fmt.Fprintf(w, "Response: %s\n", textutil.Truncate(r.Response, responsePreviewLen))
		} else {
			fmt.Fprintf(w, "FAILED - duration %.2fs\n", r.Duration.Seconds())
			fmt.Fprintf(w, "Error: %s\n", r.ErrorMessage)
		}
	}

	s := suite.Summarize(results)
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", ruleWide))
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintf(w, "Successful calls: %d/%d\n", s.Passed, s.Total)
	fmt.Fprintf(w, "Failed calls:     %d/%d\n", s.Failed, s.Total)
	fmt.Fprintf(w, "Success rate:     %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(w, "Average duration: %.2fs\n", s.AverageDuration.Seconds())
	fmt.Fprintln(w, strings.Repeat("=", ruleWide))
}

// RenderFlushFooter points at where the flushed traces can be inspected.
func RenderFlushFooter(w io.Writer, tracesURL string) {
	fmt.Fprintf(w, "\nTraces flushed to Datadog: %s\n", tracesURL)
}
