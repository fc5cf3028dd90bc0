// Package queue persists pending documentation URLs in a newline-delimited file
// and selects the subset a single drain works on.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Store is the persistence contract the queue processor depends on.
type Store interface {
	// Load returns pending entries in file order. A missing file is an empty
	// queue; Exists tells the two cases apart.
	Load(ctx context.Context) ([]string, error)
	// Persist overwrites the queue with remaining.
	Persist(ctx context.Context, remaining []string) error
	// Append adds urls to the end of the queue.
	Append(ctx context.Context, urls []string) error
	// Exists reports whether the queue file is present.
	Exists(ctx context.Context) (bool, error)
}

// FileStore keeps the queue in a single UTF-8 text file, one URL per line.
//
// There is no locking: one process, one writer. Two drains against the same
// file race between their Load and Persist and the later Persist wins.
type FileStore struct {
	fs   afero.Fs
	path string
}

// NewFileStore returns a store for path on the OS filesystem.
func NewFileStore(path string) *FileStore {
	return NewFileStoreFs(afero.NewOsFs(), path)
}

// NewFileStoreFs returns a store for path on fsys.
func NewFileStoreFs(fsys afero.Fs, path string) *FileStore {
	return &FileStore{fs: fsys, path: path}
}

// Path returns the queue file location.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the queue file is present.
func (s *FileStore) Exists(_ context.Context) (bool, error) {
	ok, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat queue file: %w", err)
	}
	return ok, nil
}

// Load reads the queue. Blank lines are skipped and entries are trimmed.
// An absent file is an empty queue, not an error.
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}
	return parseEntries(string(data)), nil
}

// Persist overwrites the queue file with remaining. An empty slice truncates
// the file to zero bytes; the file itself is kept.
func (s *FileStore) Persist(_ context.Context, remaining []string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(strings.Join(remaining, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	return nil
}

// Append adds urls to the end of the queue, creating the file if needed.
// Blank entries are dropped.
func (s *FileStore) Append(_ context.Context, urls []string) error {
	cleaned := parseEntries(strings.Join(urls, "\n"))
	if len(cleaned) == 0 {
		return nil
	}
	if err := s.ensureDir(); err != nil {
		return err
	}

	f, err := s.fs.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat queue file: %w", err)
	}

	// Start on a fresh line when the file does not end with one.
	prefix := ""
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return fmt.Errorf("failed to read queue file: %w", err)
		}
		if last[0] != '\n' {
			prefix = "\n"
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek queue file: %w", err)
	}
	if _, err := f.WriteString(prefix + strings.Join(cleaned, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to append to queue file: %w", err)
	}
	return nil
}

func (s *FileStore) ensureDir() error {
	dir := filepath.Dir(s.path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}
	return nil
}

func parseEntries(content string) []string {
	lines := strings.Split(content, "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	return entries
}
