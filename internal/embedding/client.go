// Package embedding turns text into fixed-dimension vectors through an
// OpenAI-compatible embeddings API.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "text-embedding-ada-002"
	defaultDimensions     = 1536
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 30 * time.Second
	defaultRetryDelay     = time.Second
)

// Config holds configuration for the embedding client.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimensions     int
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
}

// Client generates embeddings. The zero retry settings fall back to
// 3 attempts, a 30s per-attempt timeout and a 1s delay.
type Client struct {
	http       *resty.Client
	endpoint   string
	model      string
	dimensions int
	configured bool
	retry      retryPolicy
}

// NewClient creates a new embedding client. A missing API key is allowed;
// Embed then fails with ErrNotConfigured.
func NewClient(cfg *Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	retry := retryPolicy{
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: cfg.AttemptTimeout,
		delay:          cfg.RetryDelay,
	}
	if retry.maxAttempts <= 0 {
		retry.maxAttempts = defaultMaxAttempts
	}
	if retry.attemptTimeout <= 0 {
		retry.attemptTimeout = defaultAttemptTimeout
	}
	if retry.delay <= 0 {
		retry.delay = defaultRetryDelay
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		http:       client,
		endpoint:   baseURL + "/embeddings",
		model:      model,
		dimensions: dimensions,
		configured: cfg.APIKey != "",
		retry:      retry,
	}
}

// Model returns the model name being used.
func (c *Client) Model() string {
	return c.model
}

// Dimensions returns the expected vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed returns the embedding for text, retrying transient failures.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	var vector []float32
	_, err := c.retry.do(ctx, func(attemptCtx context.Context) error {
		v, err := c.embedOnce(attemptCtx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	var apiErr apiError
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Model: c.model, Input: text}).
		SetResult(&resp).
		SetError(&apiErr).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("embeddings API error: status %d: %s", httpResp.StatusCode(), apiErr.Error.Message)
		}
		return nil, fmt.Errorf("embeddings API error: status %d", httpResp.StatusCode())
	}

	return c.validate(&resp)
}

// validate requires a non-empty data array whose records all carry a
// non-empty vector of the expected length, and returns the first vector.
func (c *Client) validate(resp *embeddingResponse) ([]float32, error) {
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidResponse)
	}
	for i, record := range resp.Data {
		if len(record.Embedding) == 0 {
			return nil, fmt.Errorf("%w: record %d has no embedding", ErrInvalidResponse, i)
		}
		if len(record.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: record %d has %d dimensions, expected %d",
				ErrInvalidResponse, i, len(record.Embedding), c.dimensions)
		}
	}
	return resp.Data[0].Embedding, nil
}
