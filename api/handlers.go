// Package api exposes the search engine over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/logging"
	"github.com/gcbaptista/go-searcher/services"
)

// API holds dependencies for API handlers.
type API struct {
	engine    services.Engine
	searchCfg config.SearchConfig
	logger    *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithSearchConfig sets the num_wanted default and limit of search requests.
func WithSearchConfig(cfg config.SearchConfig) Option {
	return func(a *API) { a.searchCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// NewAPI creates a new API handler structure.
func NewAPI(engine services.Engine, opts ...Option) *API {
	a := &API{
		engine:    engine,
		searchCfg: config.NewEngineConfig().Search,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrDefault(a.logger)
	return a
}

// NewRouter builds a gin router with the standard middleware chain and all
// API routes.
func NewRouter(engine services.Engine, server config.ServerConfig, opts ...Option) *gin.Engine {
	a := NewAPI(engine, opts...)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(a.logger))
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware(server.RequestsPerSecond, server.Burst))
	if server.MaxBodyBytes > 0 {
		router.Use(RequestSizeLimitMiddleware(server.MaxBodyBytes))
	}

	a.RegisterRoutes(router)
	return router
}

// SetupRoutes defines all the API routes for the search engine.
func SetupRoutes(router *gin.Engine, engine services.Engine, opts ...Option) {
	NewAPI(engine, opts...).RegisterRoutes(router)
}

// RegisterRoutes adds the API routes to router.
func (api *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", api.HealthCheckHandler)

	// Multi-index search
	router.POST("/_search", api.MultiSearchHandler)

	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("/metrics", api.GetJobMetricsHandler)
		jobRoutes.GET("/:jobId", api.GetJobHandler)
		jobRoutes.POST("/:jobId/cancel", api.CancelJobHandler)
	}

	indexRoutes := router.Group("/indexes")
	{
		indexRoutes.POST("", api.CreateIndexHandler)
		indexRoutes.GET("", api.ListIndexesHandler)
		indexRoutes.GET("/:indexName", api.GetIndexHandler)
		indexRoutes.DELETE("/:indexName", api.DeleteIndexHandler)
		indexRoutes.PATCH("/:indexName/settings", api.UpdateIndexSettingsHandler)
		indexRoutes.POST("/:indexName/rename", api.RenameIndexHandler)
		indexRoutes.GET("/:indexName/stats", api.GetIndexStatsHandler)
		indexRoutes.GET("/:indexName/jobs", api.ListJobsHandler)

		docRoutes := indexRoutes.Group("/:indexName/documents")
		{
			docRoutes.PUT("", api.AddDocumentsHandler)
			docRoutes.GET("", api.GetDocumentsHandler)
			docRoutes.DELETE("", api.DeleteAllDocumentsHandler)
			docRoutes.GET("/:documentId", api.GetDocumentHandler)
			docRoutes.DELETE("/:documentId", api.DeleteDocumentHandler)
		}

		indexRoutes.POST("/:indexName/_search", api.SearchHandler)
		indexRoutes.GET("/:indexName/_search", api.SearchGetHandler)
	}
}

// HealthCheckHandler provides a simple health check endpoint
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "go-searcher",
		"indexes":   len(api.engine.ListIndexes()),
		"timestamp": time.Now().Unix(),
	})
}
