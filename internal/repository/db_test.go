package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/docqueue/internal/config"
	"github.com/timmy/docqueue/internal/domain"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "docqueue.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDocumentRepository_UpsertByURL(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))
	ctx := context.Background()

	first := &domain.Document{
		URL:        "https://docs.example.com/start",
		Title:      "Start",
		Collection: "documentation",
		ChunkCount: 2,
		ContentMD5: "aaa",
		Status:     domain.DocumentStatusActive,
		IngestedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &domain.Document{
		URL:         "https://docs.example.com/start",
		Title:       "Start (v2)",
		Collection:  "documentation",
		ChunkCount:  5,
		ContentMD5:  "bbb",
		SnapshotKey: "pages/bb/bbb.html",
		SnapshotURL: "https://cdn.example.com/pages/bb/bbb.html",
		Status:      domain.DocumentStatusActive,
		IngestedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(ctx, second))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.GetByURL(ctx, "https://docs.example.com/start")
	require.NoError(t, err)
	assert.Equal(t, "Start (v2)", got.Title)
	assert.Equal(t, 5, got.ChunkCount)
	assert.Equal(t, "bbb", got.ContentMD5)
	assert.Equal(t, "https://cdn.example.com/pages/bb/bbb.html", got.SnapshotURL)
}

func TestDocumentRepository_GetByURLNotFound(t *testing.T) {
	repo := NewDocumentRepository(newTestDB(t))

	_, err := repo.GetByURL(context.Background(), "https://missing.example.com")
	assert.True(t, IsNotFound(err))
}

func TestDeadLetterRepository(t *testing.T) {
	repo := NewDeadLetterRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.RecordFailure(ctx, "run-1", "https://a.dev", "fetch failed: status 404"))
	require.NoError(t, repo.RecordFailure(ctx, "run-2", "https://b.dev", "no extractable content"))

	rows, err := repo.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://a.dev", rows[0].URL)
	assert.Equal(t, "fetch failed: status 404", rows[0].Reason)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
