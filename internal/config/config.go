// Package config loads the process-wide settings from the environment.
//
// Settings are decoded once at startup and passed by value into each
// component constructor. Nothing in this package re-reads the environment
// after Load returns.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Settings holds every environment-driven knob the harness uses.
type Settings struct {
	// Bedrock agent identity.
	Region       string `env:"BEDROCK_REGION, default=eu-west-1"`
	AgentID      string `env:"AGENT_ID, required"`
	AgentAliasID string `env:"AGENT_ALIAS_ID, required"`

	// Datadog LLM Observability intake (agentless mode).
	DatadogAPIKey string `env:"DATADOG_API_KEY, required"`
	DatadogSite   string `env:"DATADOG_SITE, default=datadoghq.eu"`
	MLAppName     string `env:"ML_APP_NAME, default=migdal-zone"`

	// Operational knobs.
	LogLevel              string `env:"LOG_LEVEL, default=INFO"`
	SessionTimeoutSeconds int    `env:"SESSION_TIMEOUT, default=30"`
	MaxRetries            int    `env:"MAX_RETRIES, default=3"`
	ChunkSize             int    `env:"CHUNK_SIZE, default=100"`
}

// Load reads a .env file (if one exists) and decodes Settings from the
// environment. A missing required variable is a fatal configuration error:
// the caller should abort before running any question.
func Load(ctx context.Context) (Settings, error) {
	// Same behavior as the dotenv loader the tool grew up with: a .env in
	// the working directory seeds the environment, a missing file is fine.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("loading .env: %w", err)
	}

	var s Settings
	if err := envconfig.Process(ctx, &s); err != nil {
		return Settings{}, fmt.Errorf("processing environment: %w", err)
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %d", s.SessionTimeoutSeconds)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be non-negative, got %d", s.MaxRetries)
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", s.ChunkSize)
	}
	return nil
}

// SessionTimeout returns the per-question invocation deadline.
func (s Settings) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutSeconds) * time.Second
}

// IntakeURL returns the LLM Observability span intake endpoint for the
// configured site.
func (s Settings) IntakeURL() string {
	return fmt.Sprintf("https://api.%s/api/intake/llm-obs/v1/trace/spans", s.DatadogSite)
}

// TracesURL returns the human-facing URL where flushed traces show up.
func (s Settings) TracesURL() string {
	return fmt.Sprintf("https://app.%s/llm/", s.DatadogSite)
}
