package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-dupfinder/internal/session"
	"github.com/gcbaptista/go-dupfinder/services"
)

// API holds dependencies for API handlers.
type API struct {
	finder   services.DuplicateFinder
	sessions *session.Store
}

// NewAPI creates a new API handler structure.
func NewAPI(finder services.DuplicateFinder, sessions *session.Store) *API {
	return &API{finder: finder, sessions: sessions}
}

// SetupRoutes defines all the API routes of the duplicate finder.
func SetupRoutes(router *gin.Engine, finder services.DuplicateFinder, sessions *session.Store) {
	apiHandler := NewAPI(finder, sessions)

	router.GET("/health", apiHandler.HealthCheckHandler)

	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("/:jobId", apiHandler.GetJobHandler)         // Get job status by ID
		jobRoutes.GET("/metrics", apiHandler.GetJobMetricsHandler) // Get job performance metrics
	}
	router.GET("/records/:recordId/jobs", apiHandler.ListJobsHandler)

	// Everything below acts on the caller's session
	sessionRoutes := router.Group("")
	sessionRoutes.Use(SessionMiddleware(sessions), IdentityMiddleware())
	{
		sessionRoutes.PUT("/session/credential", apiHandler.SetCredentialHandler) // Hand over an upstream credential
		sessionRoutes.DELETE("/session/credential", apiHandler.LogoutHandler)     // Drop the upstream credential
		sessionRoutes.GET("/status", apiHandler.StatusHandler)                    // Session and record state

		sessionRoutes.POST("/fetch", apiHandler.FetchHandler)   // Fetch, save and queue indexing
		sessionRoutes.POST("/calc", apiHandler.CalcHandler)     // Queue indexing of the active record
		sessionRoutes.POST("/report", apiHandler.ReportHandler) // Build the duplicate report
	}
}

// HealthCheckHandler reports that the service is up.
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"sessions":  api.sessions.Len(),
	})
}
