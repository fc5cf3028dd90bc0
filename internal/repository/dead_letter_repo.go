package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/docqueue/internal/domain"
	"gorm.io/gorm"
)

// DeadLetterRepository stores URLs whose ingestion failed during a drain.
type DeadLetterRepository struct {
	db *gorm.DB
}

// NewDeadLetterRepository creates a new DeadLetterRepository.
func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// RecordFailure inserts one dead-letter row.
func (r *DeadLetterRepository) RecordFailure(ctx context.Context, runID, url, reason string) error {
	row := &domain.FailedIngestion{
		ID:       uuid.New().String(),
		RunID:    runID,
		URL:      url,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to record failed ingestion: %w", err)
	}
	return nil
}

// ListRecent returns the newest failures first.
func (r *DeadLetterRepository) ListRecent(ctx context.Context, limit int) ([]domain.FailedIngestion, error) {
	var rows []domain.FailedIngestion
	err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list failed ingestions: %w", err)
	}
	return rows, nil
}

// ListByRun returns the failures recorded for runID in insertion order.
// Parameters:
//   - ctx: context for cancellation.
//   - runID: drain identifier from the run_id log field.
// Returns:
//   - []domain.FailedIngestion: failures of that drain, oldest first.
//   - error: non-nil if the query fails.
func (r *DeadLetterRepository) ListByRun(ctx context.Context, runID string) ([]domain.FailedIngestion, error) {
	var rows []domain.FailedIngestion
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("failed_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list failed ingestions: %w", err)
	}
	return rows, nil
}
