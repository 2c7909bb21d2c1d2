package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/examwell/examwell-backend/internal/middleware"
)

func wireRouter(cfg Config, h *appHandlers) *gin.Engine {
	if cfg.Mode == "production" || cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthcheck", h.healthcheck.Healthcheck)

	api := router.Group("/api")
	api.Use(middleware.RequireUser())
	{
		api.POST("/materials/:id/generate-questions", h.generation.GenerateQuestions)
		api.GET("/materials/:id/question-generation", h.generation.GetLatestForMaterial)
		api.GET("/materials/:id/question-generation/events", h.sse.StreamMaterialGeneration)
		api.GET("/question-generation-jobs/:id", h.generation.GetJob)
	}

	return router
}
