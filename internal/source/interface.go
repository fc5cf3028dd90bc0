package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrUnsupportedScheme is returned when no fetcher is registered for a URL scheme.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Page is a raw documentation page as fetched from its origin.
type Page struct {
	URL         string // URL as it appeared in the queue
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// Fetcher retrieves pages for one or more URL schemes.
type Fetcher interface {
	// GetSourceID returns a stable identifier for this fetcher.
	GetSourceID() string

	// Schemes returns the URL schemes this fetcher serves, lower case.
	Schemes() []string

	// Fetch downloads the page at rawURL. Non-success responses are errors.
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// Registry dispatches Fetch to the fetcher registered for the URL scheme.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry registers fetchers by scheme. Later fetchers win on conflicts.
// Parameters:
//   - fetchers: fetchers to register under each of their schemes.
// Returns:
//   - *Registry: scheme dispatcher.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		for _, scheme := range f.Schemes() {
			r.fetchers[strings.ToLower(scheme)] = f
		}
	}
	return r
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, len(r.fetchers))
	for scheme := range r.fetchers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Fetch parses rawURL and hands it to the matching fetcher.
func (r *Registry) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}
