package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/docqueue/internal/domain"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/repository"
)

// DocumentStore reads the registry of ingested pages.
type DocumentStore interface {
	DocumentCounter
	GetByURL(ctx context.Context, url string) (*domain.Document, error)
}

// SnapshotReader opens archived page snapshots.
type SnapshotReader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// DocumentHandler serves the document registry and archived snapshots.
type DocumentHandler struct {
	documents DocumentStore
	snapshots SnapshotReader
}

// NewDocumentHandler creates a new document handler. Either collaborator may
// be nil when its backing store is not configured.
// Parameters:
//   - documents: registry lookups; nil answers 501.
//   - snapshots: archived page reader; nil answers 501 on the snapshot route.
// Returns:
//   - *DocumentHandler: initialized handler.
func NewDocumentHandler(documents DocumentStore, snapshots SnapshotReader) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		snapshots: snapshots,
	}
}

// Get handles GET /api/v1/documents?url=...
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Snapshot handles GET /api/v1/documents/snapshot?url=...
// The archived body is returned as plain text so a stored page is never
// rendered from this origin.
func (h *DocumentHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Snapshot storage is not configured"})
		return
	}

	doc, ok := h.lookup(c)
	if !ok {
		return
	}
	if doc.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot archived for this document"})
		return
	}

	ctx := c.Request.Context()
	body, err := h.snapshots.Download(ctx, doc.SnapshotKey)
	if err != nil {
		logger.CtxError(ctx, "Failed to download snapshot: key=%s, error=%v", doc.SnapshotKey, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to read snapshot: " + err.Error()})
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, "text/plain; charset=utf-8", body, map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Snapshot-Key":         doc.SnapshotKey,
	})
}

func (h *DocumentHandler) lookup(c *gin.Context) (*domain.Document, bool) {
	if h.documents == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Document registry is not configured"})
		return nil, false
	}

	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return nil, false
	}

	doc, err := h.documents.GetByURL(c.Request.Context(), rawURL)
	if err != nil {
		if repository.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return doc, true
}
