package domain

import "time"

// DocumentStatus represents the state of an ingested documentation page.
type DocumentStatus string

const (
	DocumentStatusActive DocumentStatus = "active"
	DocumentStatusFailed DocumentStatus = "failed"
)

// Document records a documentation page whose chunks were written to the
// vector collection. Re-ingesting a URL updates the same row.
type Document struct {
	ID             string         `gorm:"type:text;primaryKey" json:"id"`
	URL            string         `gorm:"type:text;not null;uniqueIndex" json:"url"`
	Title          string         `gorm:"type:text" json:"title"`
	Collection     string         `gorm:"type:text;not null;index" json:"collection"`
	ChunkCount     int            `gorm:"default:0" json:"chunk_count"`
	ContentMD5     string         `gorm:"type:text;index" json:"content_md5"`
	SnapshotKey    string         `gorm:"type:text" json:"snapshot_key,omitempty"`
	SnapshotURL    string         `gorm:"type:text" json:"snapshot_url,omitempty"`
	EmbeddingModel string         `gorm:"type:text" json:"embedding_model"`
	Status         DocumentStatus `gorm:"type:text;default:active" json:"status"`
	IngestedAt     time.Time      `json:"ingested_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string {
	return "documents"
}
