// Package app wires configuration into the queue processor and its
// collaborators. Every command builds the same graph through New.
package app

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"gorm.io/gorm"

	"github.com/timmy/docqueue/internal/config"
	"github.com/timmy/docqueue/internal/embedding"
	"github.com/timmy/docqueue/internal/ingest"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/queue"
	"github.com/timmy/docqueue/internal/repository"
	"github.com/timmy/docqueue/internal/service"
	"github.com/timmy/docqueue/internal/source"
	"github.com/timmy/docqueue/internal/source/local"
	"github.com/timmy/docqueue/internal/source/web"
	"github.com/timmy/docqueue/internal/storage"
)

// App holds the wired components. Documents and DeadLetters are nil when the
// database is disabled, Snapshots when storage is disabled.
type App struct {
	Config      *config.Config
	Processor   *service.QueueProcessor
	Documents   *repository.DocumentRepository
	DeadLetters *repository.DeadLetterRepository
	Snapshots   storage.ObjectStorage

	qdrant *repository.QdrantRepository
	db     *gorm.DB
}

// New validates cfg, bootstraps the vector collection and builds the
// processor. Bootstrap errors are returned unchanged so callers can match
// repository.ErrAuthentication and repository.ErrConnectivity.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := queue.ParsePolicy(cfg.Queue.Policy, cfg.Queue.BatchSize)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	address, err := cfg.Qdrant.Address()
	if err != nil {
		return nil, err
	}
	_, _, useTLS, _ := cfg.Qdrant.Endpoint()
	a.qdrant, err = repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Address: address,
		APIKey:  cfg.Qdrant.APIKey,
		UseTLS:  useTLS,
	})
	if err != nil {
		return nil, err
	}

	if err := a.qdrant.EnsureCollection(ctx, CollectionConfig(cfg.Qdrant)); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithField("collection", cfg.Qdrant.Collection).Info("Vector collection ready")

	var ingestOpts []ingest.Option
	var processorOpts []service.QueueProcessorOption

	if cfg.Database.Enabled {
		a.db, err = repository.InitDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Documents = repository.NewDocumentRepository(a.db)
		a.DeadLetters = repository.NewDeadLetterRepository(a.db)
		ingestOpts = append(ingestOpts, ingest.WithDocumentRecorder(a.Documents))
		processorOpts = append(processorOpts, service.WithDeadLetterSink(a.DeadLetters))
	}

	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := objectStorage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
		a.Snapshots = objectStorage
		ingestOpts = append(ingestOpts, ingest.WithSnapshotStorage(objectStorage))
	}

	embedder := embedding.NewClient(EmbeddingConfig(cfg.Embedding))
	if !cfg.Embedding.Enabled() {
		logger.FromContext(ctx).Warn("OPENAI_API_KEY is not set; every ingestion will fail until it is configured")
	}

	fetchers := []source.Fetcher{
		web.NewAdapter(&web.Config{
			Timeout:   cfg.Ingest.FetchTimeout,
			UserAgent: cfg.Ingest.UserAgent,
			MaxBody:   cfg.Ingest.MaxPageBytes,
		}),
	}
	if cfg.Ingest.LocalRoot != "" {
		fetchers = append(fetchers, local.NewAdapter(cfg.Ingest.LocalRoot))
	}
	fetcher := source.NewRegistry(fetchers...)
	processorOpts = append(processorOpts, service.WithSchemes(fetcher.Schemes()...))

	ingester := ingest.NewIngester(fetcher, embedder, a.qdrant, ingest.Config{
		Collection: cfg.Qdrant.Collection,
		ChunkSize:  cfg.Ingest.ChunkSize,
	}, ingestOpts...)

	a.Processor = service.NewQueueProcessor(queue.NewFileStore(cfg.Queue.Path), policy, ingester, processorOpts...)

	logger.FromContext(ctx).WithFields(logger.Fields{
		"queue_path": cfg.Queue.Path,
		"policy":     policy.String(),
		"database":   cfg.Database.Enabled,
		"storage":    cfg.Storage.Enabled,
		"schemes":    fetcher.Schemes(),
	}).Info("Queue processor ready")

	ok = true
	return a, nil
}

// Close releases the Qdrant connection and the database.
func (a *App) Close() error {
	var errs []error
	if a.qdrant != nil {
		errs = append(errs, a.qdrant.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

// CollectionConfig maps the Qdrant settings to the collection schema.
func CollectionConfig(cfg config.QdrantConfig) repository.CollectionConfig {
	cc := repository.DefaultCollectionConfig(cfg.Collection)
	cc.Distance = pb.Distance_Cosine
	if cfg.VectorSize > 0 {
		cc.VectorSize = uint64(cfg.VectorSize)
	}
	if cfg.SegmentCount > 0 {
		cc.SegmentCount = uint64(cfg.SegmentCount)
	}
	if cfg.MemmapThreshold > 0 {
		cc.MemmapThreshold = uint64(cfg.MemmapThreshold)
	}
	if cfg.ReplicationFactor > 0 {
		cc.ReplicationFactor = uint32(cfg.ReplicationFactor)
	}
	return cc
}

// EmbeddingConfig maps the embedding settings to the client configuration.
func EmbeddingConfig(cfg config.EmbeddingConfig) *embedding.Config {
	return &embedding.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Dimensions:     cfg.Dimensions,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		RetryDelay:     cfg.RetryDelay,
	}
}
