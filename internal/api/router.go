package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/docqueue/internal/api/handler"
	"github.com/timmy/docqueue/internal/api/middleware"
	"github.com/timmy/docqueue/internal/config"
)

// RouterDeps are the collaborators the HTTP surface needs. Failures,
// Documents and Snapshots are optional.
type RouterDeps struct {
	Queue      handler.QueueService
	Failures   handler.FailureLister
	Documents  handler.DocumentStore
	Snapshots  handler.SnapshotReader
	Collection string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps, server config.ServerConfig) *gin.Engine {
	switch server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(server.CORS))

	healthHandler := handler.NewHealthHandler(deps.Collection)
	queueHandler := handler.NewQueueHandler(deps.Queue, deps.Failures, deps.Documents)
	documentHandler := handler.NewDocumentHandler(deps.Documents, deps.Snapshots)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Queue
		v1.POST("/queue", queueHandler.Enqueue)
		v1.GET("/queue", queueHandler.List)
		v1.POST("/queue/run", queueHandler.Run)
		v1.GET("/queue/failures", queueHandler.Failures)

		// Documents
		v1.GET("/documents", documentHandler.Get)
		v1.GET("/documents/snapshot", documentHandler.Snapshot)

		// Stats
		v1.GET("/stats", queueHandler.Stats)
	}

	return r
}
