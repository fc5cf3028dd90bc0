package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/docqueue/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRepository handles the registry of ingested pages.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert creates or replaces the row for doc.URL. An empty ID is generated.
// Parameters:
//   - ctx: context for cancellation.
//   - doc: document to store; its ID is set when empty.
// Returns:
//   - error: non-nil if the write fails.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "collection", "chunk_count", "content_md5", "snapshot_key", "snapshot_url",
			"embedding_model", "status", "ingested_at", "updated_at",
		}),
	}).Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// GetByURL returns the document for url, or gorm.ErrRecordNotFound.
// Parameters:
//   - ctx: context for cancellation.
//   - url: page URL as it appeared in the queue.
// Returns:
//   - *domain.Document: registry row.
//   - error: gorm.ErrRecordNotFound when absent, see IsNotFound.
func (r *DocumentRepository) GetByURL(ctx context.Context, url string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "url = ?", url).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Count returns the number of registered documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Document{}).Count(&count).Error
	return count, err
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
