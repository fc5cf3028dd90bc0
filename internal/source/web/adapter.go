package web

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/docqueue/internal/source"
)

const (
	SourceID         = "web"
	DefaultUserAgent = "docqueue/1.0 (+https://github.com/timmy/docqueue)"
	DefaultMaxBody   = 10 << 20
)

// Adapter fetches pages over HTTP(S).
type Adapter struct {
	client *resty.Client
}

// Config holds fetch settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxBody   int // bytes; bodies past this fail with resty.ErrResponseBodyTooLarge
}

// NewAdapter creates a new web adapter.
func NewAdapter(cfg *Config) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetResponseBodyLimit(maxBody)

	return &Adapter{client: client}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// Schemes returns the schemes served by this adapter.
func (a *Adapter) Schemes() []string {
	return []string{"http", "https"}
}

// Fetch downloads rawURL. Any status outside 2xx is an error.
func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*source.Page, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("failed to fetch page: HTTP %d", resp.StatusCode())
	}

	return &source.Page{
		URL:         rawURL,
		Body:        resp.Body(),
		ContentType: resp.Header().Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
	}, nil
}
