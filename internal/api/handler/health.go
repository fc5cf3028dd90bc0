package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	collection string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(collection string) *HealthHandler {
	return &HealthHandler{collection: collection}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"collection": h.collection,
	})
}
