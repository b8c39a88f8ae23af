package api

import (
	"context"

	"mp4conv/batch"
	"mp4conv/config"

	"github.com/gin-gonic/gin"
)

func SetupRouter(ctx context.Context, s *batch.Session, logs *batch.LogBuffer, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(ctx, s, logs)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/drop", h.handleDrop)

		v1.GET("/batch", h.handleStatus)
		v1.POST("/batch/start", h.handleStart)
		v1.PATCH("/batch/cancel", h.handleCancel)

		v1.GET("/logs", h.handleLogs)
		v1.DELETE("/logs", h.handleClearLogs)
	}
	return r
}
