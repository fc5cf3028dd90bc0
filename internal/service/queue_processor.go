package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/docqueue/internal/ingest"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/queue"
)

// ErrInvalidURL is returned by Enqueue for entries that are not absolute
// URLs with an accepted scheme.
var ErrInvalidURL = errors.New("invalid url")

// Processor drains the documentation queue once per call.
type Processor interface {
	Run(ctx context.Context) *Report
}

// URLIngester ingests a single URL and reports the outcome as a value.
type URLIngester interface {
	Ingest(ctx context.Context, rawURL string) ingest.Result
}

// DeadLetterSink records URLs that failed during a drain.
type DeadLetterSink interface {
	RecordFailure(ctx context.Context, runID, url, reason string) error
}

// QueueProcessor drains the queue file through an ingester.
//
// Drains, enqueues and the processor's own state changes are serialized by a
// mutex, so concurrent HTTP or MCP requests in one process never interleave
// queue file writes. Separate processes sharing a queue file are not
// coordinated.
type QueueProcessor struct {
	store       queue.Store
	policy      queue.Policy
	ingester    URLIngester
	deadLetters DeadLetterSink
	schemes     []string

	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// QueueProcessorOption configures a QueueProcessor.
type QueueProcessorOption func(*QueueProcessor)

// WithDeadLetterSink records failed URLs in sink. Sink errors are logged only.
func WithDeadLetterSink(sink DeadLetterSink) QueueProcessorOption {
	return func(p *QueueProcessor) { p.deadLetters = sink }
}

// WithSchemes sets the URL schemes Enqueue accepts. The default is http and
// https; file must be listed explicitly.
func WithSchemes(schemes ...string) QueueProcessorOption {
	return func(p *QueueProcessor) { p.schemes = schemes }
}

// NewQueueProcessor creates a new queue processor.
func NewQueueProcessor(store queue.Store, policy queue.Policy, ingester URLIngester, opts ...QueueProcessorOption) *QueueProcessor {
	p := &QueueProcessor{
		store:    store,
		policy:   policy,
		ingester: ingester,
		schemes:  DefaultSchemes,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the processor state: draining while a drain runs, otherwise
// the outcome of the last drain.
func (p *QueueProcessor) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

func (p *QueueProcessor) setState(s State) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

// Policy returns the active consumption policy.
func (p *QueueProcessor) Policy() queue.Policy {
	return p.policy
}

// Run drains the entries selected by the policy, strictly in file order.
// The unselected remainder is persisted once after every selected entry has
// been tried. Cancelling ctx does not interrupt a drain in progress; only
// its values are kept. Run never returns nil.
func (p *QueueProcessor) Run(ctx context.Context) *Report {
	ctx = context.WithoutCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	runID := uuid.New().String()
	ctx = logger.SetRunID(ctx, runID)
	ctx = logger.SetComponent(ctx, "queue_processor")

	report := p.drain(ctx, runID)
	p.setState(report.State)

	entry := logger.With(logger.Fields{logger.FieldStatus: string(report.State)})
	if report.Result != nil {
		entry = entry.With(logger.Fields{
			"processed": report.Result.Processed,
			"failed":    report.Result.Failed,
			"remaining": report.Result.Remaining,
		})
	}
	if report.IsError {
		entry.Error(ctx, "Queue drain failed: %s", report.Text)
	} else {
		entry.Info(ctx, "Queue drain finished")
	}
	return report
}

func (p *QueueProcessor) drain(ctx context.Context, runID string) *Report {
	exists, err := p.store.Exists(ctx)
	if err != nil {
		return errorReport(err, nil)
	}
	if !exists {
		return emptyReport(textQueueAbsent)
	}

	entries, err := p.store.Load(ctx)
	if err != nil {
		return errorReport(err, nil)
	}
	if len(entries) == 0 {
		return emptyReport(textQueueEmpty)
	}

	p.setState(StateDraining)
	selected, remaining := p.policy.Select(entries)
	logger.FromContext(ctx).WithFields(logger.Fields{
		"policy":   p.policy.String(),
		"selected": len(selected),
		"pending":  len(entries),
	}).Info("Starting queue drain")

	start := time.Now()
	result := &BatchResult{FailedURLs: []string{}, Remaining: len(remaining)}
	for _, u := range selected {
		res := p.ingester.Ingest(ctx, u)
		if res.OK() {
			result.Processed++
			continue
		}
		result.Failed++
		result.FailedURLs = append(result.FailedURLs, u)
		logger.FromContext(ctx).WithField(logger.FieldURL, u).WithError(res.Err).Error("Failed to process URL")
		p.recordFailure(ctx, runID, u, res.Err)
	}

	if err := p.store.Persist(ctx, remaining); err != nil {
		return errorReport(err, result)
	}

	logger.With(nil).WithDuration(start).WithCount(len(selected)).Debug(ctx, "Processed selected entries")
	return completedReport(result)
}

func (p *QueueProcessor) recordFailure(ctx context.Context, runID, u string, cause error) {
	if p.deadLetters == nil {
		return
	}
	if err := p.deadLetters.RecordFailure(ctx, runID, u, cause.Error()); err != nil {
		logger.FromContext(ctx).WithField(logger.FieldURL, u).WithError(err).Warn("Failed to record dead letter")
	}
}

// Enqueue validates urls and appends them to the queue. It returns the
// number of entries added.
func (p *QueueProcessor) Enqueue(ctx context.Context, urls []string) (int, error) {
	cleaned, err := NormalizeURLs(urls, p.schemes)
	if err != nil {
		return 0, err
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Append(ctx, cleaned); err != nil {
		return 0, err
	}
	logger.FromContext(ctx).WithField(logger.FieldCount, len(cleaned)).Info("Enqueued URLs")
	return len(cleaned), nil
}

// Pending returns the queued URLs in drain order.
func (p *QueueProcessor) Pending(ctx context.Context) ([]string, error) {
	return p.store.Load(ctx)
}

// DefaultSchemes are the URL schemes accepted when none are configured.
var DefaultSchemes = []string{"http", "https"}

// NormalizeURLs trims urls, drops blanks and rejects anything that is not an
// absolute URL with one of schemes. http and https URLs need a host, file URLs
// need a path.
func NormalizeURLs(urls []string, schemes []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.ContainsAny(raw, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		if !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
			return nil, fmt.Errorf("%w: scheme %q is not accepted in %q", ErrInvalidURL, u.Scheme, raw)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			if u.Host == "" {
				return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
			}
		case "file":
			if u.Path == "" {
				return nil, fmt.Errorf("%w: %q has no path", ErrInvalidURL, raw)
			}
		}
		out = append(out, raw)
	}
	return out, nil
}
