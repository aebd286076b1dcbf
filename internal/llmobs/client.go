package llmobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/migdalzone/tracecap/internal/config"
)

// Client posts span batches to the Datadog LLM Observability intake API.
// It implements Uploader.
type Client struct {
	http   *retryablehttp.Client
	url    string
	apiKey string
	mlApp  string
}

// NewClient builds an intake client for the configured Datadog site.
// Transport retries come from retryablehttp, capped at the configured
// retry count; nothing above this layer retries.
func NewClient(settings config.Settings) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = settings.MaxRetries
	rc.Logger = nil
	return &Client{
		http:   rc,
		url:    settings.IntakeURL(),
		apiKey: settings.DatadogAPIKey,
		mlApp:  settings.MLAppName,
	}
}

// Intake payload shapes for /api/intake/llm-obs/v1/trace/spans.

type intakePayload struct {
	Data intakeData `json:"data"`
}

type intakeData struct {
	Type       string           `json:"type"`
	Attributes intakeAttributes `json:"attributes"`
}

type intakeAttributes struct {
	MLApp string       `json:"ml_app"`
	Tags  []string     `json:"tags,omitempty"`
	Spans []intakeSpan `json:"spans"`
}

type intakeSpan struct {
	SpanID    string     `json:"span_id"`
	TraceID   string     `json:"trace_id"`
	ParentID  string     `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	StartNS   int64      `json:"start_ns"`
	Duration  int64      `json:"duration"`
	Status    string     `json:"status"`
	SessionID string     `json:"session_id,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Meta      intakeMeta `json:"meta"`
}

type intakeMeta struct {
	Kind     string         `json:"span.kind"`
	Input    intakeValue    `json:"input"`
	Output   intakeValue    `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error.message,omitempty"`
}

type intakeValue struct {
	Value string `json:"value"`
}

// Upload posts one span batch. The response body is drained and discarded;
// intake acknowledgements carry nothing the harness needs.
func (c *Client) Upload(ctx context.Context, spans []*Span) error {
	payload := intakePayload{
		Data: intakeData{
			Type: "span",
			Attributes: intakeAttributes{
				MLApp: c.mlApp,
				Spans: make([]intakeSpan, 0, len(spans)),
			},
		},
	}
	for _, s := range spans {
		payload.Data.Attributes.Spans = append(payload.Data.Attributes.Spans, toIntakeSpan(s))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding span batch: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("building intake request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting span batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("intake returned %s", resp.Status)
	}
	return nil
}

func toIntakeSpan(s *Span) intakeSpan {
	out := intakeSpan{
		SpanID:    s.SpanID,
		TraceID:   s.TraceID,
		ParentID:  s.ParentID,
		Name:      s.Name,
		StartNS:   s.Start.UnixNano(),
		Duration:  s.Duration.Nanoseconds(),
		Status:    "ok",
		SessionID: s.SessionID,
		Meta: intakeMeta{
			Kind:     string(s.Kind),
			Input:    intakeValue{Value: s.Input},
			Output:   intakeValue{Value: s.Output},
			Metadata: s.Metadata,
			Error:    s.Error,
		},
	}
	if s.Error != "" {
		out.Status = "error"
	}
	for k, v := range s.Tags {
		out.Tags = append(out.Tags, fmt.Sprintf("%s:%s", k, v))
	}
	return out
}
