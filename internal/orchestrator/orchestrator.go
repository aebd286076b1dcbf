// Package orchestrator drives one question end-to-end: invoke the agent,
// classify the streamed trace parts, emit spans, capture the answer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/google/uuid"

	"github.com/migdalzone/tracecap/internal/bedrock"
	"github.com/migdalzone/tracecap/internal/config"
	"github.com/migdalzone/tracecap/internal/llmobs"
	"github.com/migdalzone/tracecap/internal/suite"
	"github.com/migdalzone/tracecap/internal/textutil"
	"github.com/migdalzone/tracecap/internal/trace"
)

// ErrNoResponse reports an invocation that completed without producing any
// answer text.
var ErrNoResponse = errors.New("no response received")

// Orchestrator runs questions against a Bedrock agent, mirroring every
// invocation into LLM Observability spans.
type Orchestrator struct {
	invoker  bedrock.Invoker
	tracer   *llmobs.Tracer
	settings config.Settings

	// newSessionID is swappable for deterministic tests.
	newSessionID func() string
}

// New builds an orchestrator over the given agent client and span tracer.
func New(invoker bedrock.Invoker, tracer *llmobs.Tracer, settings config.Settings) *Orchestrator {
	return &Orchestrator{
		invoker:  invoker,
		tracer:   tracer,
		settings: settings,
		newSessionID: func() string {
			return "bedrock-trace-" + uuid.NewString()
		},
	}
}

// Ask sends one question to the agent and returns its answer.
//
// All spans for the question nest under a single workflow span. Any failure
// (invocation error, stream error, empty answer) closes every open span with
// the error annotated, and is returned for the caller to record; it never
// aborts the suite.
func (o *Orchestrator) Ask(ctx context.Context, q suite.Question) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.SessionTimeout())
	defer cancel()

	sessionID := o.newSessionID()
	log := slog.With("session_id", sessionID)
	log.Info("starting trace capture", "question", textutil.Truncate(q.Text, o.settings.ChunkSize))

	o.tracer.StartSpan(llmobs.KindWorkflow, "bedrock-agent-workflow", sessionID)
	o.tracer.Annotate(q.Text, "Starting Bedrock agent processing",
		map[string]any{
			"workflow_start":  true,
			"expected_answer": q.Expected,
		},
		map[string]string{
			"workflow": "bedrock_agent",
			"language": q.Language.String(),
		})

	answer, err := o.runAgent(ctx, q, sessionID, log)
	if err != nil {
		o.failWorkflow(q, err)
		return "", err
	}

	o.tracer.Annotate("", answer, nil, map[string]string{"final_output": "true"})
	o.tracer.FinishSpan() // workflow

	log.Info("trace capture complete", "answer_length", len(answer))
	return answer, nil
}

// runAgent opens the agent span, consumes the event stream and returns the
// final answer. The agent span is closed on every path.
func (o *Orchestrator) runAgent(ctx context.Context, q suite.Question, sessionID string, log *slog.Logger) (string, error) {
	o.tracer.StartSpan(llmobs.KindAgent, "bedrock-agent-"+o.invoker.AgentID(), sessionID)

	stream, err := o.invoker.InvokeAgent(ctx, q.Text, sessionID)
	if err != nil {
		o.tracer.Annotate("", "", nil, map[string]string{"error": "true"})
		o.tracer.FinishSpan()
		return "", fmt.Errorf("agent invocation: %w", err)
	}
	defer stream.Close()

	var (
		accumulated string
		finalText   string
		haveFinal   bool
		traceCount  int
	)

	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}
		switch {
		case ev.Chunk != nil:
			text := string(ev.Chunk)
			accumulated += text
			log.Debug("answer chunk", "text", textutil.Truncate(text, o.settings.ChunkSize))
		case ev.Trace != nil:
			traceCount++
			if text, ok := trace.FinalResponse(*ev.Trace); ok {
				finalText = text
				haveFinal = true
			}
			o.emitTraceSpan(*ev.Trace, sessionID, log)
		}
	}
	if err := stream.Err(); err != nil {
		o.tracer.Annotate("", "", nil, map[string]string{"error": "true"})
		o.tracer.FinishSpan()
		return "", fmt.Errorf("reading agent stream: %w", err)
	}

	// The FINISH observation text is authoritative; concatenated chunks are
	// the fallback when the agent streamed no final response trace.
	answer := accumulated
	if haveFinal && finalText != "" {
		answer = finalText
	}

	o.tracer.Annotate(q.Text, answer,
		map[string]any{
			"total_trace_events": traceCount,
			"response_length":    len(answer),
			"expected_answer":    q.Expected,
			"agent_id":           o.invoker.AgentID(),
			"session_id":         sessionID,
		},
		map[string]string{
			"agent_type":         "bedrock_supervisor",
			"trace_events_count": strconv.Itoa(traceCount),
			"has_output":         strconv.FormatBool(answer != ""),
		})
	o.tracer.FinishSpan() // agent

	log.Info("processed trace events", "count", traceCount, "answer_length", len(answer))
	if answer == "" {
		return "", ErrNoResponse
	}
	return answer, nil
}

// emitTraceSpan classifies one trace part and records it as a span nested
// under the current agent span. Trace parts that carry no actionable
// content produce no span.
func (o *Orchestrator) emitTraceSpan(part types.TracePart, sessionID string, log *slog.Logger) {
	ev, ok := trace.Classify(part)
	if !ok {
		return
	}
	tags := make(map[string]string, len(ev.Tags)+1)
	for k, v := range ev.Tags {
		tags[k] = v
	}
	if ev.Output != "" {
		tags["content_preview"] = textutil.Truncate(ev.Output, o.settings.ChunkSize)
	}

	o.tracer.StartSpan(ev.Span, ev.Name, sessionID)
	o.tracer.Annotate(ev.Input, ev.Output, ev.Metadata, tags)
	o.tracer.FinishSpan()

	log.Debug("trace span emitted", "kind", string(ev.Kind), "name", ev.Name)
}

// failWorkflow annotates the error onto whatever spans remain open and
// closes them, so a failed invocation still yields a closed workflow span.
func (o *Orchestrator) failWorkflow(q suite.Question, err error) {
	if span := o.tracer.Current(); span != nil {
		span.Error = err.Error()
		span.Annotate(q.Text, "Error: "+err.Error(),
			map[string]any{"error": err.Error()},
			map[string]string{"error": "true", "workflow": "failed"})
	}
	o.tracer.FinishAll()
}
