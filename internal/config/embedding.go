package config

import (
	"fmt"
	"time"
)

// EmbeddingConfig configures the embedding provider and its retry protocol.
type EmbeddingConfig struct {
	Provider       string        `mapstructure:"provider"` // only "openai" (OpenAI-compatible API)
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Dimensions     int           `mapstructure:"dimensions"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// Enabled reports whether an API key is configured. Without one the process
// still starts; embedding calls fail with a configuration error.
func (c *EmbeddingConfig) Enabled() bool {
	return c.APIKey != ""
}

// Validate checks the structural fields. The API key is not required.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider != "openai" {
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("embedding: max_attempts must be positive")
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("embedding: attempt_timeout must be positive")
	}
	return nil
}
