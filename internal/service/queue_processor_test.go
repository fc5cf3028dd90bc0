package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docqueue/internal/ingest"
	"github.com/timmy/docqueue/internal/queue"
)

const queuePath = "/data/queue.txt"

type fakeIngester struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeIngester) Ingest(_ context.Context, rawURL string) ingest.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.fail[rawURL] {
		return ingest.Result{URL: rawURL, Err: errors.New("failed to fetch page: HTTP 500")}
	}
	return ingest.Result{URL: rawURL, Chunks: 1}
}

// cancellingIngester cancels the caller's context while ingesting the first
// URL and fails any URL whose context is already done.
type cancellingIngester struct {
	cancel context.CancelFunc
	calls  []string
}

func (c *cancellingIngester) Ingest(ctx context.Context, rawURL string) ingest.Result {
	c.calls = append(c.calls, rawURL)
	if len(c.calls) == 1 {
		c.cancel()
	}
	if err := ctx.Err(); err != nil {
		return ingest.Result{URL: rawURL, Err: err}
	}
	return ingest.Result{URL: rawURL, Chunks: 1}
}

type recordedFailure struct {
	runID, url, reason string
}

type fakeSink struct {
	rows []recordedFailure
	err  error
}

func (f *fakeSink) RecordFailure(_ context.Context, runID, url, reason string) error {
	f.rows = append(f.rows, recordedFailure{runID, url, reason})
	return f.err
}

func newTestStore(t *testing.T, content *string) (*queue.FileStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if content != nil {
		require.NoError(t, afero.WriteFile(fsys, queuePath, []byte(*content), 0o644))
	}
	return queue.NewFileStoreFs(fsys, queuePath), fsys
}

func ptr(s string) *string { return &s }

func readQueue(t *testing.T, fsys afero.Fs) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, queuePath)
	require.NoError(t, err)
	return string(data)
}

func TestRun_SinglePolicy(t *testing.T) {
	store, fsys := newTestStore(t, ptr("a\nb\nc\n"))
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.SinglePolicy(), ing)

	report := p.Run(context.Background())

	require.False(t, report.IsError, report.Text)
	assert.Equal(t, []string{"a"}, ing.calls)
	assert.Equal(t, "b\nc", readQueue(t, fsys))
	assert.Equal(t, 1, report.Result.Processed+report.Result.Failed)
	assert.Equal(t, 2, report.Result.Remaining)
	assert.Equal(t, StateCompletedWithFailures, report.State)
	assert.Equal(t, StateCompletedWithFailures, p.State())
}

func TestRun_BatchPolicy(t *testing.T) {
	store, fsys := newTestStore(t, ptr("a\nb\nc\nd\ne\nf\ng"))
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.BatchPolicy(5), ing)

	report := p.Run(context.Background())

	require.False(t, report.IsError, report.Text)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ing.calls)
	assert.Equal(t, "f\ng", readQueue(t, fsys))
	assert.Equal(t, 5, report.Result.Processed)
	assert.Equal(t, 2, report.Result.Remaining)
	assert.Equal(t, "Queue processing complete.\nProcessed: 5 URLs\nFailed: 0 URLs\nRemaining: 2 URLs", report.Text)
}

func TestRun_AllPolicyWithFailure(t *testing.T) {
	store, fsys := newTestStore(t, ptr("https://a.dev\n\n  https://b.dev  \nhttps://c.dev\n"))
	ing := &fakeIngester{fail: map[string]bool{"https://b.dev": true}}
	sink := &fakeSink{}
	p := NewQueueProcessor(store, queue.AllPolicy(), ing, WithDeadLetterSink(sink))

	report := p.Run(context.Background())

	require.False(t, report.IsError)
	assert.Equal(t, []string{"https://a.dev", "https://b.dev", "https://c.dev"}, ing.calls)
	assert.Equal(t, &BatchResult{
		Processed:  2,
		Failed:     1,
		FailedURLs: []string{"https://b.dev"},
		Remaining:  0,
	}, report.Result)
	assert.Equal(t, StateCompletedWithFailures, report.State)
	assert.Equal(t,
		"Queue processing complete.\nProcessed: 2 URLs\nFailed: 1 URLs\n\nFailed URLs:\nhttps://b.dev",
		report.Text)

	assert.Equal(t, "", readQueue(t, fsys))

	require.Len(t, sink.rows, 1)
	assert.Equal(t, "https://b.dev", sink.rows[0].url)
	assert.Contains(t, sink.rows[0].reason, "HTTP 500")
	assert.NotEmpty(t, sink.rows[0].runID)
}

func TestRun_Completed(t *testing.T) {
	store, _ := newTestStore(t, ptr("x\ny"))
	p := NewQueueProcessor(store, queue.AllPolicy(), &fakeIngester{})

	report := p.Run(context.Background())

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, "Queue processing complete.\nProcessed: 2 URLs\nFailed: 0 URLs", report.Text)
}

func TestRun_DeadLetterErrorsAreIgnored(t *testing.T) {
	store, _ := newTestStore(t, ptr("bad"))
	sink := &fakeSink{err: errors.New("database is locked")}
	p := NewQueueProcessor(store, queue.AllPolicy(), &fakeIngester{fail: map[string]bool{"bad": true}}, WithDeadLetterSink(sink))

	report := p.Run(context.Background())

	assert.False(t, report.IsError)
	assert.Equal(t, 1, report.Result.Failed)
	assert.Len(t, sink.rows, 1)
}

func TestRun_CancelledContextFinishesSelectedEntries(t *testing.T) {
	store, fsys := newTestStore(t, ptr("a\nb\nc\nd"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ing := &cancellingIngester{cancel: cancel}
	p := NewQueueProcessor(store, queue.AllPolicy(), ing)

	report := p.Run(ctx)

	require.False(t, report.IsError, report.Text)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ing.calls)
	assert.Equal(t, 4, report.Result.Processed)
	assert.Equal(t, 0, report.Result.Failed)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, "", readQueue(t, fsys))
}

func TestRun_AbsentQueueFile(t *testing.T) {
	store, fsys := newTestStore(t, nil)
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.AllPolicy(), ing)

	report := p.Run(context.Background())

	assert.False(t, report.IsError)
	assert.Equal(t, StateEmpty, report.State)
	assert.Equal(t, "Queue is empty (queue file does not exist)", report.Text)
	assert.Contains(t, report.Text, "Queue is empty")
	assert.Nil(t, report.Result)
	assert.Empty(t, ing.calls)

	exists, err := afero.Exists(fsys, queuePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_BlankQueueFile(t *testing.T) {
	store, fsys := newTestStore(t, ptr("\n   \n\t\n"))
	p := NewQueueProcessor(store, queue.AllPolicy(), &fakeIngester{})

	report := p.Run(context.Background())

	assert.Equal(t, StateEmpty, report.State)
	assert.Equal(t, "Queue is empty", report.Text)
	assert.Equal(t, "\n   \n\t\n", readQueue(t, fsys))
}

type brokenStore struct {
	queue.Store
	loadErr    error
	persistErr error
	entries    []string
	persisted  bool
}

func (b *brokenStore) Exists(context.Context) (bool, error) { return true, nil }

func (b *brokenStore) Load(context.Context) ([]string, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.entries, nil
}

func (b *brokenStore) Persist(context.Context, []string) error {
	b.persisted = true
	return b.persistErr
}

func TestRun_LoadError(t *testing.T) {
	store := &brokenStore{loadErr: errors.New("failed to read queue file: permission denied")}
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.AllPolicy(), ing)

	report := p.Run(context.Background())

	assert.True(t, report.IsError)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, "Failed to process queue: failed to read queue file: permission denied", report.Text)
	assert.False(t, store.persisted)
	assert.Empty(t, ing.calls)
}

func TestRun_PersistError(t *testing.T) {
	store := &brokenStore{entries: []string{"a", "b"}, persistErr: os.ErrPermission}
	p := NewQueueProcessor(store, queue.SinglePolicy(), &fakeIngester{})

	report := p.Run(context.Background())

	assert.True(t, report.IsError)
	assert.Contains(t, report.Text, "Failed to process queue:")
	require.NotNil(t, report.Result)
	assert.Equal(t, 1, report.Result.Processed)
}

func TestRun_DuplicatesProcessedIndependently(t *testing.T) {
	store, _ := newTestStore(t, ptr("dup\ndup"))
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.AllPolicy(), ing)

	report := p.Run(context.Background())

	assert.Equal(t, []string{"dup", "dup"}, ing.calls)
	assert.Equal(t, 2, report.Result.Processed)
}

func TestEnqueueAndPending(t *testing.T) {
	store, _ := newTestStore(t, nil)
	p := NewQueueProcessor(store, queue.AllPolicy(), &fakeIngester{}, WithSchemes("http", "https", "file"))
	ctx := context.Background()

	n, err := p.Enqueue(ctx, []string{" https://go.dev/doc ", "", "file:///srv/docs/index.html"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := p.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://go.dev/doc", "file:///srv/docs/index.html"}, pending)
}

func TestEnqueue_RejectsFileURLsByDefault(t *testing.T) {
	store, fsys := newTestStore(t, nil)
	p := NewQueueProcessor(store, queue.AllPolicy(), &fakeIngester{})

	n, err := p.Enqueue(context.Background(), []string{"file:///etc/passwd"})

	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Zero(t, n)
	exists, err := afero.Exists(fsys, queuePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNormalizeURLs(t *testing.T) {
	withFile := []string{"http", "https", "file"}
	tests := []struct {
		name    string
		in      []string
		schemes []string
		want    []string
		wantErr bool
	}{
		{name: "trims and drops blanks", in: []string{" http://a.dev/x ", "  "}, want: []string{"http://a.dev/x"}},
		{name: "file rejected by default", in: []string{"file:///srv/docs/a.md"}, wantErr: true},
		{name: "file accepted when enabled", in: []string{"file:///srv/docs/a.md"}, schemes: withFile, want: []string{"file:///srv/docs/a.md"}},
		{name: "file without path", in: []string{"file://"}, schemes: withFile, wantErr: true},
		{name: "upper case scheme", in: []string{"HTTPS://a.dev/x"}, want: []string{"HTTPS://a.dev/x"}},
		{name: "relative", in: []string{"/docs/x"}, wantErr: true},
		{name: "unsupported scheme", in: []string{"ftp://a.dev/x"}, wantErr: true},
		{name: "missing host", in: []string{"https:///x"}, wantErr: true},
		{name: "embedded newline", in: []string{"https://a.dev/x\nhttps://b.dev"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			schemes := tc.schemes
			if schemes == nil {
				schemes = DefaultSchemes
			}
			got, err := NormalizeURLs(tc.in, schemes)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRun_SerializesConcurrentDrains(t *testing.T) {
	store, fsys := newTestStore(t, ptr("a\nb\nc\nd"))
	ing := &fakeIngester{}
	p := NewQueueProcessor(store, queue.SinglePolicy(), ing)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(context.Background())
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, ing.calls)
	assert.Equal(t, "", readQueue(t, fsys))
}
