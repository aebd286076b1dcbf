// Package testutil provides fakes for the agent client and the span
// uploader, shared by the orchestrator, runner and CLI tests.
package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/migdalzone/tracecap/internal/bedrock"
	"github.com/migdalzone/tracecap/internal/llmobs"
)

// FakeStream replays a fixed event slice as a bedrock.EventStream.
type FakeStream struct {
	Events []bedrock.Event

	// FailWith, when set, is returned from Err after the events drain,
	// simulating a stream that broke mid-response.
	FailWith error

	pos    int
	closed bool
}

func (s *FakeStream) Next() (bedrock.Event, bool) {
	if s.pos >= len(s.Events) {
		return bedrock.Event{}, false
	}
	ev := s.Events[s.pos]
	s.pos++
	return ev, true
}

func (s *FakeStream) Err() error { return s.FailWith }

func (s *FakeStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStream) Closed() bool { return s.closed }

// FakeInvoker hands out one FakeStream per question, in order. When
// InvokeErr is set every invocation fails with it instead.
type FakeInvoker struct {
	Agent     string
	Streams   []*FakeStream
	InvokeErr error

	Calls []string // questions asked, in order
	next  int
}

func (f *FakeInvoker) AgentID() string {
	if f.Agent == "" {
		return "test-agent"
	}
	return f.Agent
}

func (f *FakeInvoker) InvokeAgent(ctx context.Context, question, sessionID string) (bedrock.EventStream, error) {
	f.Calls = append(f.Calls, question)
	if f.InvokeErr != nil {
		return nil, f.InvokeErr
	}
	if f.next >= len(f.Streams) {
		return &FakeStream{}, nil
	}
	s := f.Streams[f.next]
	f.next++
	return s, nil
}

// CaptureUploader records flushed span batches instead of posting them.
type CaptureUploader struct {
	Batches [][]*llmobs.Span
	Err     error
}

func (u *CaptureUploader) Upload(ctx context.Context, spans []*llmobs.Span) error {
	if u.Err != nil {
		return u.Err
	}
	u.Batches = append(u.Batches, spans)
	return nil
}

// ChunkEvent builds an answer-chunk stream event.
func ChunkEvent(text string) bedrock.Event {
	return bedrock.Event{Chunk: []byte(text)}
}

// TraceEvent wraps a trace union value into a stream event.
func TraceEvent(tr types.Trace) bedrock.Event {
	return bedrock.Event{Trace: &types.TracePart{
		AgentId: aws.String("test-agent"),
		Trace:   tr,
	}}
}

// RationaleTrace builds an orchestration rationale trace part.
func RationaleTrace(text string) types.Trace {
	return &types.TraceMemberOrchestrationTrace{
		Value: &types.OrchestrationTraceMemberRationale{
			Value: types.Rationale{Text: aws.String(text)},
		},
	}
}

// FinishTrace builds a FINISH observation carrying the final answer.
func FinishTrace(text string) types.Trace {
	return &types.TraceMemberOrchestrationTrace{
		Value: &types.OrchestrationTraceMemberObservation{
			Value: types.Observation{
				Type:          types.TypeFinish,
				FinalResponse: &types.FinalResponse{Text: aws.String(text)},
			},
		},
	}
}
