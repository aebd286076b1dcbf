// Package llmobs emits Datadog LLM Observability spans.
//
// The harness runs agentless: finished spans buffer in memory and a single
// batch flush at the end of a suite run posts them to the LLM Observability
// intake endpoint. Span identity and lifetime beyond that request belong to
// Datadog, not to this package.
package llmobs

import (
	"time"

	"github.com/google/uuid"
)

// SpanKind is the LLM Observability span kind vocabulary.
type SpanKind string

const (
	KindWorkflow  SpanKind = "workflow"
	KindAgent     SpanKind = "agent"
	KindTool      SpanKind = "tool"
	KindTask      SpanKind = "task"
	KindLLM       SpanKind = "llm"
	KindRetrieval SpanKind = "retrieval"
)

// Span is one bounded unit of work with start/end time, content and tags.
type Span struct {
	SpanID    string
	TraceID   string
	ParentID  string
	Name      string
	Kind      SpanKind
	SessionID string

	Start    time.Time
	Duration time.Duration

	Input    string
	Output   string
	Metadata map[string]any
	Tags     map[string]string

	// Error holds the failure message when the spanned work errored.
	Error string
}

// Annotate sets content and merges metadata/tags onto the span. Later
// annotations win for input/output; metadata and tags accumulate.
func (s *Span) Annotate(input, output string, metadata map[string]any, tags map[string]string) {
	if input != "" {
		s.Input = input
	}
	if output != "" {
		s.Output = output
	}
	for k, v := range metadata {
		if s.Metadata == nil {
			s.Metadata = make(map[string]any)
		}
		s.Metadata[k] = v
	}
	for k, v := range tags {
		if s.Tags == nil {
			s.Tags = make(map[string]string)
		}
		s.Tags[k] = v
	}
}

func newID() string {
	return uuid.NewString()
}
