// Package runner executes a question suite in order, records per-question
// results, and renders the run report.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/migdalzone/tracecap/internal/llmobs"
	"github.com/migdalzone/tracecap/internal/suite"
)

// Asker runs one question and returns the agent's answer. Implemented by
// orchestrator.Orchestrator; tests substitute canned behavior.
type Asker interface {
	Ask(ctx context.Context, q suite.Question) (string, error)
}

// Runner drives a suite: one question at a time, a fixed delay between
// questions, one span flush after the loop. Question failures are recorded
// and never abort the run.
type Runner struct {
	asker  Asker
	tracer *llmobs.Tracer
	delay  time.Duration

	now func() time.Time
}

// New builds a runner. delay is the pause between consecutive questions;
// zero disables it.
func New(asker Asker, tracer *llmobs.Tracer, delay time.Duration) *Runner {
	return &Runner{
		asker:  asker,
		tracer: tracer,
		delay:  delay,
		now:    time.Now,
	}
}

// Run executes every question in order and returns one result per question,
// preserving input order. The span buffer is flushed exactly once, after
// the last question; flush errors are logged and swallowed so observability
// can never fail the run.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) []suite.TestResult {
	results := make([]suite.TestResult, 0, len(s.Questions))

	for i, q := range s.Questions {
		slog.Info("running test", "number", i+1, "total", len(s.Questions))
		results = append(results, r.runOne(ctx, q))

		if i < len(s.Questions)-1 && r.delay > 0 {
			r.pause(ctx)
		}
	}

	if err := r.tracer.Flush(ctx); err != nil {
		slog.Error("span flush failed, results are unaffected", "error", err)
	}

	return results
}

func (r *Runner) runOne(ctx context.Context, q suite.Question) suite.TestResult {
	start := r.now()
	answer, err := r.asker.Ask(ctx, q)
	result := suite.TestResult{
		Question:  q.Text,
		Expected:  q.Expected,
		Duration:  r.now().Sub(start),
		Timestamp: start,
	}

	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		slog.Error("test failed", "question", q.Text, "error", err)
		return result
	}

	result.Success = true
	result.Response = answer
	if q.Expected != "" {
		result.Similarity = suite.Similarity(answer, q.Expected)
		result.Quality = suite.Grade(result.Similarity)
	}
	return result
}

// pause waits out the inter-question delay, returning early when the run
// context is cancelled.
func (r *Runner) pause(ctx context.Context) {
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
