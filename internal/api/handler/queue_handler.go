package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/docqueue/internal/domain"
	"github.com/timmy/docqueue/internal/logger"
	"github.com/timmy/docqueue/internal/queue"
	"github.com/timmy/docqueue/internal/service"
)

const defaultFailureLimit = 50

// QueueService is the queue surface the handler exposes.
type QueueService interface {
	service.Processor
	Enqueue(ctx context.Context, urls []string) (int, error)
	Pending(ctx context.Context) ([]string, error)
	State() service.State
	Policy() queue.Policy
}

// FailureLister lists dead-letter rows.
type FailureLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.FailedIngestion, error)
	ListByRun(ctx context.Context, runID string) ([]domain.FailedIngestion, error)
}

// DocumentCounter counts registered documents.
type DocumentCounter interface {
	Count(ctx context.Context) (int64, error)
}

// QueueHandler handles queue operations.
type QueueHandler struct {
	queue     QueueService
	failures  FailureLister
	documents DocumentCounter
}

// NewQueueHandler creates a new queue handler. failures and documents may be
// nil when no database is configured.
// Parameters:
//   - q: queue processor.
//   - failures: dead-letter reader, optional.
//   - documents: document counter for stats, optional.
// Returns:
//   - *QueueHandler: initialized handler.
func NewQueueHandler(q QueueService, failures FailureLister, documents DocumentCounter) *QueueHandler {
	return &QueueHandler{
		queue:     q,
		failures:  failures,
		documents: documents,
	}
}

// EnqueueRequest represents the enqueue API request.
type EnqueueRequest struct {
	URLs []string `json:"urls" binding:"required,min=1"`
}

// EnqueueResponse represents the enqueue API response.
type EnqueueResponse struct {
	Added int `json:"added"`
}

// QueueResponse lists the pending queue.
type QueueResponse struct {
	URLs   []string      `json:"urls"`
	Count  int           `json:"count"`
	State  service.State `json:"state"`
	Policy string        `json:"policy"`
}

// Enqueue handles POST /api/v1/queue.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	ctx := c.Request.Context()

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid enqueue request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	added, err := h.queue.Enqueue(ctx, req.URLs)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.CtxError(ctx, "Failed to enqueue URLs: error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, EnqueueResponse{Added: added})
}

// List handles GET /api/v1/queue.
func (h *QueueHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	urls, err := h.queue.Pending(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, QueueResponse{
		URLs:   urls,
		Count:  len(urls),
		State:  h.queue.State(),
		Policy: h.queue.Policy().String(),
	})
}

// Run handles POST /api/v1/queue/run. A client disconnect does not abandon
// a half-processed batch; the processor finishes the drain regardless.
func (h *QueueHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()
	logger.CtxInfo(ctx, "Received queue run request: client_ip=%s", c.ClientIP())

	start := time.Now()
	report := h.queue.Run(ctx)

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(report.State),
	}).Info(ctx, "Queue run finished: is_error=%v", report.IsError)

	status := http.StatusOK
	if report.IsError {
		status = http.StatusInternalServerError
	}
	c.JSON(status, report)
}

// Failures handles GET /api/v1/queue/failures. With run_id it lists that
// drain's failures in order; otherwise the newest failures up to limit.
func (h *QueueHandler) Failures(c *gin.Context) {
	if h.failures == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Dead-letter storage is not configured"})
		return
	}

	if runID := c.Query("run_id"); runID != "" {
		rows, err := h.failures.ListByRun(c.Request.Context(), runID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"failures": rows, "count": len(rows)})
		return
	}

	limit := defaultFailureLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	rows, err := h.failures.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": rows, "count": len(rows)})
}

// Stats handles GET /api/v1/stats.
func (h *QueueHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	pending, err := h.queue.Pending(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read queue: " + err.Error()})
		return
	}

	resp := gin.H{
		"pending": len(pending),
		"state":   h.queue.State(),
		"policy":  h.queue.Policy().String(),
	}
	if h.documents != nil {
		count, err := h.documents.Count(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["documents"] = count
	}
	c.JSON(http.StatusOK, resp)
}
