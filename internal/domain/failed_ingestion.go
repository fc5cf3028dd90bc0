package domain

import "time"

// FailedIngestion is a dead-letter record for a URL that was taken off the
// queue and could not be ingested. Rows are informational; nothing re-enqueues
// them automatically.
type FailedIngestion struct {
	ID       string    `gorm:"type:text;primaryKey" json:"id"`
	RunID    string    `gorm:"type:text;not null;index" json:"run_id"`
	URL      string    `gorm:"type:text;not null;index" json:"url"`
	Reason   string    `gorm:"type:text" json:"reason"`
	FailedAt time.Time `gorm:"index" json:"failed_at"`
}

// TableName returns the database table name for FailedIngestion.
func (FailedIngestion) TableName() string {
	return "failed_ingestions"
}
