package llmobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Uploader sends a finished span batch to the observability backend.
type Uploader interface {
	Upload(ctx context.Context, spans []*Span) error
}

// Tracer builds the span tree for agent invocations.
//
// Open spans form a stack: StartSpan nests the new span under the current
// top, FinishSpan closes the top. The stack is exactly deep enough for the
// Bedrock trace shape (workflow over agent over tool/retrieval); it is not
// a general span graph. Finished spans accumulate until Flush.
//
// Tracer is not safe for concurrent use. The harness is single-threaded.
type Tracer struct {
	uploader Uploader
	mlApp    string
	now      func() time.Time

	open     []*Span
	finished []*Span
}

// NewTracer creates a tracer that flushes through the given uploader.
func NewTracer(mlApp string, uploader Uploader) *Tracer {
	return &Tracer{
		uploader: uploader,
		mlApp:    mlApp,
		now:      time.Now,
	}
}

// StartSpan opens a span nested under the current open span. A span opened
// with an empty stack starts a new trace (the workflow root).
func (t *Tracer) StartSpan(kind SpanKind, name, sessionID string) *Span {
	span := &Span{
		SpanID:    newID(),
		Name:      name,
		Kind:      kind,
		SessionID: sessionID,
		Start:     t.now(),
	}
	if top := t.Current(); top != nil {
		span.TraceID = top.TraceID
		span.ParentID = top.SpanID
	} else {
		span.TraceID = newID()
	}
	t.open = append(t.open, span)
	return span
}

// Current returns the innermost open span, or nil when none is open.
func (t *Tracer) Current() *Span {
	if len(t.open) == 0 {
		return nil
	}
	return t.open[len(t.open)-1]
}

// Annotate sets content on the current span. A no-op with no open span:
// emission must never fail the work it observes.
func (t *Tracer) Annotate(input, output string, metadata map[string]any, tags map[string]string) {
	span := t.Current()
	if span == nil {
		slog.Warn("annotate with no open span, dropping content")
		return
	}
	span.Annotate(input, output, metadata, tags)
}

// FinishSpan closes the current span and moves it to the finished buffer.
func (t *Tracer) FinishSpan() {
	span := t.Current()
	if span == nil {
		return
	}
	span.Duration = t.now().Sub(span.Start)
	t.open = t.open[:len(t.open)-1]
	t.finished = append(t.finished, span)
}

// FinishAll closes every open span, innermost first. The orchestrator calls
// this on the error path so a failed invocation still produces a closed
// workflow span.
func (t *Tracer) FinishAll() {
	for len(t.open) > 0 {
		t.FinishSpan()
	}
}

// OpenDepth reports the number of open spans.
func (t *Tracer) OpenDepth() int {
	return len(t.open)
}

// Finished returns the buffered finished spans, oldest first.
func (t *Tracer) Finished() []*Span {
	return t.finished
}

// Flush uploads the buffered spans and clears the buffer on success.
// Flushing with nothing buffered is a no-op.
func (t *Tracer) Flush(ctx context.Context) error {
	if len(t.finished) == 0 {
		return nil
	}
	if err := t.uploader.Upload(ctx, t.finished); err != nil {
		return fmt.Errorf("flushing %d spans: %w", len(t.finished), err)
	}
	slog.Info("flushed spans to Datadog", "count", len(t.finished), "ml_app", t.mlApp)
	t.finished = nil
	return nil
}
