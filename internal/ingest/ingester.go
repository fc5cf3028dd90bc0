package ingest

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/docqueue/internal/domain"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/repository"
	"github.com/timmy/docqueue/internal/source"
	"github.com/timmy/docqueue/internal/storage"
)

// ErrNoContent is returned for pages without extractable text.
var ErrNoContent = errors.New("no extractable content")

// PageFetcher retrieves raw pages.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*source.Page, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// VectorWriter stores chunk vectors.
type VectorWriter interface {
	UpsertChunks(ctx context.Context, collection string, chunks []repository.ChunkPoint) error
}

// DocumentRecorder keeps the registry of ingested pages.
type DocumentRecorder interface {
	Upsert(ctx context.Context, doc *domain.Document) error
}

// Result is the outcome of ingesting one URL. Err == nil means success.
type Result struct {
	URL         string
	Title       string
	Chunks      int
	SnapshotKey string
	Err         error
}

// OK reports whether ingestion succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Config holds ingestion settings.
type Config struct {
	Collection string
	ChunkSize  int
}

// Ingester fetches a page, embeds its chunks and writes them to the vector
// collection.
type Ingester struct {
	fetcher   PageFetcher
	embedder  Embedder
	vectors   VectorWriter
	storage   storage.ObjectStorage
	documents DocumentRecorder
	cfg       Config
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*Ingester)

// WithSnapshotStorage archives raw pages in objectStorage.
func WithSnapshotStorage(objectStorage storage.ObjectStorage) Option {
	return func(i *Ingester) { i.storage = objectStorage }
}

// WithDocumentRecorder records every ingested page in documents.
func WithDocumentRecorder(documents DocumentRecorder) Option {
	return func(i *Ingester) { i.documents = documents }
}

// NewIngester creates a new Ingester.
func NewIngester(fetcher PageFetcher, embedder Embedder, vectors VectorWriter, cfg Config, opts ...Option) *Ingester {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	i := &Ingester{
		fetcher:  fetcher,
		embedder: embedder,
		vectors:  vectors,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest processes rawURL. Failures are reported in Result.Err.
func (i *Ingester) Ingest(ctx context.Context, rawURL string) Result {
	ctx = logger.WithField(ctx, logger.FieldURL, rawURL)
	start := i.now()

	res := Result{URL: rawURL}
	if err := i.ingest(ctx, &res); err != nil {
		res.Err = err
		logger.With(logger.Fields{logger.FieldStatus: "failed"}).WithDuration(start).
			Warn(ctx, "Ingestion failed: %v", err)
		return res
	}

	logger.With(logger.Fields{logger.FieldStatus: "ok"}).WithDuration(start).WithCount(res.Chunks).
		Info(ctx, "Ingested %q", res.Title)
	return res
}

func (i *Ingester) ingest(ctx context.Context, res *Result) error {
	page, err := i.fetcher.Fetch(ctx, res.URL)
	if err != nil {
		return err
	}

	content, err := Extract(page.ContentType, page.Body)
	if err != nil {
		return err
	}
	res.Title = content.Title

	chunks := Chunk(content.Text, i.cfg.ChunkSize)
	if len(chunks) == 0 {
		return ErrNoContent
	}

	ingestedAt := i.now().UTC()
	points := make([]repository.ChunkPoint, 0, len(chunks))
	for idx, text := range chunks {
		vector, err := i.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", idx, err)
		}
		points = append(points, repository.ChunkPoint{
			ID:     repository.ChunkPointID(res.URL, idx),
			Vector: vector,
			Payload: repository.ChunkPayload{
				URL:        res.URL,
				Title:      content.Title,
				Text:       text,
				ChunkIndex: idx,
				ChunkCount: len(chunks),
				IngestedAt: ingestedAt.Format(time.RFC3339),
			},
		})
	}

	md5Hash := calculateMD5(page.Body)
	uploaded := false
	if i.storage != nil {
		res.SnapshotKey = SnapshotKey(md5Hash)
		uploaded, err = i.archive(ctx, res.SnapshotKey, page)
		if err != nil {
			return err
		}
	}

	if err := i.vectors.UpsertChunks(ctx, i.cfg.Collection, points); err != nil {
		if uploaded {
			if delErr := i.storage.Delete(ctx, res.SnapshotKey); delErr != nil {
				logger.FromContext(ctx).WithField("storage_key", res.SnapshotKey).
					WithError(delErr).Error("Failed to rollback snapshot upload")
			}
		}
		return err
	}
	res.Chunks = len(points)

	if i.documents != nil {
		doc := &domain.Document{
			URL:            res.URL,
			Title:          content.Title,
			Collection:     i.cfg.Collection,
			ChunkCount:     len(points),
			ContentMD5:     md5Hash,
			SnapshotKey:    res.SnapshotKey,
			EmbeddingModel: i.embedder.Model(),
			Status:         domain.DocumentStatusActive,
			IngestedAt:     ingestedAt,
		}
		if res.SnapshotKey != "" {
			doc.SnapshotURL = i.storage.GetURL(res.SnapshotKey)
		}
		// Registry misses do not fail ingestion.
		if err := i.documents.Upsert(ctx, doc); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to record document")
		}
	}
	return nil
}

// archive uploads the raw page unless an identical snapshot exists. It
// reports whether this call uploaded the object.
func (i *Ingester) archive(ctx context.Context, key string, page *source.Page) (bool, error) {
	exists, err := i.storage.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot existence: %w", err)
	}
	if exists {
		logger.FromContext(ctx).WithField("storage_key", key).Debug("Snapshot already archived, skipping upload")
		return false, nil
	}

	contentType := page.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	if err := i.storage.Upload(ctx, key, bytes.NewReader(page.Body), int64(len(page.Body)), contentType); err != nil {
		return false, fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return true, nil
}

// SnapshotKey returns the object key for a page with the given body hash.
func SnapshotKey(md5Hash string) string {
	return fmt.Sprintf("pages/%s/%s.html", md5Hash[:2], md5Hash)
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
