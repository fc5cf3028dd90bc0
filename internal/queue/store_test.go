package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPath = "/srv/docqueue/queue.txt"

func newMemStore(t *testing.T, content *string) (*FileStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if content != nil {
		require.NoError(t, afero.WriteFile(fsys, testPath, []byte(*content), 0o644))
	}
	return NewFileStoreFs(fsys, testPath), fsys
}

func strPtr(s string) *string { return &s }

func TestFileStore_LoadMissingFile(t *testing.T) {
	store, _ := newMemStore(t, nil)

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileStore_LoadFiltersBlankLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "empty", content: "", want: []string{}},
		{name: "only blanks", content: "\n\n  \n\t\n", want: []string{}},
		{name: "single", content: "https://a.dev/docs", want: []string{"https://a.dev/docs"}},
		{
			name:    "mixed blanks and trailing newline",
			content: "https://a.dev\n\n  https://b.dev  \n\r\nhttps://c.dev\n",
			want:    []string{"https://a.dev", "https://b.dev", "https://c.dev"},
		},
		{
			name:    "duplicates kept",
			content: "https://a.dev\nhttps://a.dev\n",
			want:    []string{"https://a.dev", "https://a.dev"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newMemStore(t, strPtr(tc.content))
			got, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileStore_LoadPreservesOrderForManyEntries(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			var b strings.Builder
			want := make([]string, 0, n)
			for i := 0; i < n; i++ {
				u := fmt.Sprintf("https://docs.example.com/page/%d", i)
				want = append(want, u)
				b.WriteString(u + "\n\n")
			}
			store, _ := newMemStore(t, strPtr(b.String()))
			got, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFileStore_PersistEmptyTruncates(t *testing.T) {
	store, fsys := newMemStore(t, strPtr("https://a.dev\nhttps://b.dev\n"))

	require.NoError(t, store.Persist(context.Background(), nil))

	info, err := fsys.Stat(testPath)
	require.NoError(t, err, "file must be kept")
	assert.Zero(t, info.Size())
}

func TestFileStore_PersistRoundTrip(t *testing.T) {
	store, fsys := newMemStore(t, nil)

	require.NoError(t, store.Persist(context.Background(), []string{"https://f.dev", "https://g.dev"}))

	data, err := afero.ReadFile(fsys, testPath)
	require.NoError(t, err)
	assert.Equal(t, "https://f.dev\nhttps://g.dev", string(data))
}

func TestFileStore_Append(t *testing.T) {
	store, fsys := newMemStore(t, strPtr("https://a.dev"))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, []string{" https://b.dev ", "", "https://c.dev"}))
	require.NoError(t, store.Append(ctx, []string{"https://d.dev"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.dev", "https://b.dev", "https://c.dev", "https://d.dev"}, got)

	data, err := afero.ReadFile(fsys, testPath)
	require.NoError(t, err)
	assert.Equal(t, "https://a.dev\nhttps://b.dev\nhttps://c.dev\nhttps://d.dev\n", string(data))
}

func TestFileStore_AppendCreatesFile(t *testing.T) {
	store, _ := newMemStore(t, nil)
	require.NoError(t, store.Append(context.Background(), []string{"https://a.dev"}))

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}

type brokenFs struct {
	afero.Fs
}

func (brokenFs) Open(string) (afero.File, error) {
	return nil, os.ErrPermission
}

func (brokenFs) OpenFile(string, int, os.FileMode) (afero.File, error) {
	return nil, os.ErrPermission
}

func TestFileStore_LoadReadErrorSurfaces(t *testing.T) {
	store := NewFileStoreFs(brokenFs{afero.NewMemMapFs()}, testPath)

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))
}
