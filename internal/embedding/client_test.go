package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

func vectorBody(dims int) string {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) / 10
	}
	b, _ := json.Marshal(map[string]interface{}{
		"data":  []map[string]interface{}{{"embedding": vec, "index": 0}},
		"model": "text-embedding-ada-002",
	})
	return string(b)
}

// flakyServer fails the first `failures` requests with a 500 and then returns
// a valid vector.
func flakyServer(t *testing.T, failures int32, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream overloaded","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(vectorBody(testDims)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{
		APIKey:         "sk-test",
		BaseURL:        baseURL,
		Dimensions:     testDims,
		MaxAttempts:    3,
		AttemptTimeout: 500 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	})
}

func TestEmbed_SucceedsAfterKFailures(t *testing.T) {
	for k := int32(0); k <= 2; k++ {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			var calls int32
			srv := flakyServer(t, k, &calls)

			vec, err := newTestClient(srv.URL).Embed(context.Background(), "hello docs")
			require.NoError(t, err)
			assert.Len(t, vec, testDims)
			assert.Equal(t, k+1, atomic.LoadInt32(&calls), "attempts")
		})
	}
}

func TestEmbed_AlwaysFailingExhaustsThreeAttempts(t *testing.T) {
	var calls int32
	srv := flakyServer(t, 100, &calls)

	_, err := newTestClient(srv.URL).Embed(context.Background(), "hello docs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "upstream overloaded")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbed_NotConfiguredFailsWithoutCalling(t *testing.T) {
	var calls int32
	srv := flakyServer(t, 0, &calls)

	c := NewClient(&Config{BaseURL: srv.URL, Dimensions: testDims})
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEmbed_AttemptTimeoutIsRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Hang until the client gives up on this attempt.
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(vectorBody(testDims)))
	}))
	defer srv.Close()

	c := NewClient(&Config{
		APIKey:         "sk-test",
		BaseURL:        srv.URL,
		Dimensions:     testDims,
		MaxAttempts:    3,
		AttemptTimeout: 100 * time.Millisecond,
		RetryDelay:     5 * time.Millisecond,
	})

	start := time.Now()
	vec, err := c.Embed(context.Background(), "slow")
	require.NoError(t, err)
	assert.Len(t, vec, testDims)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 3*time.Second, "timed-out attempt must be cancelled, not awaited")
}

func TestEmbed_MalformedResponsesAreRetried(t *testing.T) {
	bodies := []string{
		`{"data":[]}`,
		`{"data":[{"index":0}]}`,
		`{"data":[{"embedding":"not-a-vector"}]}`,
		`{"data":[{"embedding":[0.1,0.2]}]}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Embed(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRetriesExhausted)
			assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		})
	}
}

func TestEmbed_ParentCancellationStopsRetrying(t *testing.T) {
	var calls int32
	srv := flakyServer(t, 100, &calls)

	c := NewClient(&Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL,
		Dimensions:  testDims,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryPolicy_CountsAttempts(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, attemptTimeout: time.Second, delay: time.Millisecond}

	attempts, err := p.do(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = p.do(context.Background(), func(context.Context) error { return errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to generate embeddings after 3 attempts"))
}

func TestRetryPolicy_TimeoutCancelsAttemptContext(t *testing.T) {
	p := retryPolicy{maxAttempts: 1, attemptTimeout: 20 * time.Millisecond, delay: time.Millisecond}

	_, err := p.do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrAttemptTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
