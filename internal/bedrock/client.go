// Package bedrock wraps the AWS Bedrock agent-runtime client behind a small
// streaming interface the rest of the harness can fake in tests.
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/migdalzone/tracecap/internal/config"
)

// Event is one unit of streamed agent output: either a piece of the final
// answer (Chunk) or a trace part (Trace). Exactly one field is set.
type Event struct {
	Chunk []byte
	Trace *types.TracePart
}

// EventStream yields agent output events in arrival order.
//
// Usage mirrors sql.Rows: call Next until it returns false, then check Err.
// Close releases the underlying stream and is safe to call more than once.
type EventStream interface {
	Next() (Event, bool)
	Err() error
	Close() error
}

// Invoker is the client surface the orchestrator depends on. The production
// implementation is *Client; tests substitute fixed event slices.
type Invoker interface {
	InvokeAgent(ctx context.Context, question, sessionID string) (EventStream, error)
	AgentID() string
}

// Client invokes a configured Bedrock agent with tracing enabled.
type Client struct {
	api          *bedrockagentruntime.Client
	agentID      string
	agentAliasID string
}

// New loads AWS configuration for the configured region and builds the
// agent-runtime client. Retries use the SDK's standard retryer capped at
// the configured attempt count; the harness adds no retry logic of its own.
func New(ctx context.Context, settings config.Settings) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.Region),
		awsconfig.WithRetryMaxAttempts(settings.MaxRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		api:          bedrockagentruntime.NewFromConfig(cfg),
		agentID:      settings.AgentID,
		agentAliasID: settings.AgentAliasID,
	}, nil
}

// AgentID returns the configured agent id.
func (c *Client) AgentID() string {
	return c.agentID
}

// InvokeAgent sends one question to the agent and returns the response
// stream. EnableTrace is always set: the whole point of this tool is the
// trace parts.
func (c *Client) InvokeAgent(ctx context.Context, question, sessionID string) (EventStream, error) {
	out, err := c.api.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.agentAliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(question),
		EnableTrace:  aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("invoking agent %s: %w", c.agentID, err)
	}

	return &sdkStream{ctx: ctx, stream: out.GetStream()}, nil
}

// sdkStream adapts the SDK's event stream to EventStream, dropping event
// variants the harness has no use for (return-control, files).
type sdkStream struct {
	ctx    context.Context
	stream *bedrockagentruntime.InvokeAgentEventStream
	err    error
}

func (s *sdkStream) Next() (Event, bool) {
	for {
		select {
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return Event{}, false
		case ev, ok := <-s.stream.Events():
			if !ok {
				return Event{}, false
			}
			switch v := ev.(type) {
			case *types.ResponseStreamMemberChunk:
				return Event{Chunk: v.Value.Bytes}, true
			case *types.ResponseStreamMemberTrace:
				part := v.Value
				return Event{Trace: &part}, true
			default:
				// Unhandled stream member, keep reading.
			}
		}
	}
}

func (s *sdkStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.stream.Err()
}

func (s *sdkStream) Close() error {
	return s.stream.Close()
}
