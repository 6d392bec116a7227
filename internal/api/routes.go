package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/punchlist/internal/db"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, h *handler, auth gin.HandlerFunc) {
	router.GET("/healthz", handleHealth(h))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(auth)

	api.GET("/me", h.me)
	api.GET("/users", h.listUsers)

	api.GET("/projects", h.listProjects)
	api.POST("/projects", h.createProject)
	api.GET("/projects/:id", h.getProject)

	api.POST("/defects", h.createDefect)
	api.GET("/defects/for-manager", h.listDefectsForManager)
	api.POST("/defects/:id/assign", h.assignDefect)
	api.GET("/defects/:id/history", h.readHistory)
	api.GET("/defects/:id/files/:fileID", h.openFile)
	api.POST("/defects/:id/comments", h.addComment)
	api.POST("/defects/:id/comments/file", h.addCommentWithFile)

	api.GET("/tasks", h.listTasks)
	api.GET("/tasks/:id", h.getTask)
	api.PUT("/tasks/:id/status", h.changeTaskStatus)

	api.GET("/reports", h.buildReport)
	api.GET("/reports/export", h.exportReport)
	api.GET("/ratings", h.computeRatings)
}

func handleHealth(h *handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context(), h.tr.DB()); err != nil {
			h.log.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
