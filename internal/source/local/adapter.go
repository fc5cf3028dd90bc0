package local

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/timmy/docqueue/internal/source"
)

const SourceID = "local"

// Adapter serves file:// URLs from a filesystem, for documentation checked
// out next to the ingester. URL paths are resolved inside the adapter's
// filesystem, never against the host root.
type Adapter struct {
	fs afero.Fs
}

// NewAdapter creates a local adapter confined to root. A URL such as
// file:///guide/intro.md reads root/guide/intro.md; paths that climb out of
// root are rejected by the filesystem.
func NewAdapter(root string) *Adapter {
	return NewAdapterFs(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewAdapterFs creates a local adapter over fsys.
func NewAdapterFs(fsys afero.Fs) *Adapter {
	return &Adapter{fs: fsys}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// Schemes returns the schemes served by this adapter.
func (a *Adapter) Schemes() []string {
	return []string{"file"}
}

// Fetch reads the file named by a file:// URL.
func (a *Adapter) Fetch(ctx context.Context, rawURL string) (*source.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	path := filepath.FromSlash(u.Path)
	if path == "" {
		return nil, fmt.Errorf("file url %q has no path", rawURL)
	}

	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	return &source.Page{
		URL:         rawURL,
		Body:        data,
		ContentType: contentTypeFor(path),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
