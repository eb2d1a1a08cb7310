package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catalog-adaptation-service/internal/middleware"
)

// Router bundles the handlers mounted by NewRouter
type Router struct {
	Health         *HealthHandler
	Templates      *TemplateHandler
	Adaptation     *AdaptationHandler
	Jobs           *JobHandler
	AllowedOrigins []string
	Logger         *logrus.Logger
}

// NewRouter configures the HTTP router
func NewRouter(r Router) *gin.Engine {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(r.AllowedOrigins))
	router.Use(middleware.TenantMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health check
	router.GET("/health", r.Health.Health)
	router.GET("/ready", r.Health.Ready)

	// API routes - require tenant ID
	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireTenantID())
	{
		v1.GET("/marketplaces", r.Templates.ListMarketplaces)

		templates := v1.Group("/templates")
		{
			templates.GET("/:marketplace", r.Templates.Get)
			templates.PATCH("/:marketplace", r.Templates.Update)
			templates.GET("/:marketplace/history", r.Templates.History)
			templates.GET("/:marketplace/import-template", r.Templates.ImportTemplate)
		}

		v1.POST("/ingest", r.Adaptation.Ingest)
		v1.POST("/adapt", r.Adaptation.Adapt)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", r.Jobs.ListJobs)
			jobs.POST("", r.Jobs.CreateJob)
			jobs.GET("/:id", r.Jobs.GetJob)
			jobs.GET("/:id/results", r.Jobs.GetResults)
			jobs.POST("/:id/cancel", r.Jobs.CancelJob)
			jobs.GET("/:id/export", r.Jobs.ExportJob)
		}
	}

	return router
}
