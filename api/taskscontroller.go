package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"newswire/tasks"
)

// RegisterTaskRoutes registers task polling and cancellation endpoints.
func RegisterTaskRoutes(r *gin.Engine, d Deps) {
	g := r.Group("/api/tasks")
	g.GET("/:id", handleGetTask(d))
	g.DELETE("/:id", handleCancelTask(d))
}

// handleGetTask reports the latest known state for a task.
func handleGetTask(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Tasks.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, tasks.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

type cancelTaskRequest struct {
	Reason string `json:"reason"`
}

// handleCancelTask marks a non-terminal task cancelled. In-flight units
// observe the cancellation at their next checkpoint.
func handleCancelTask(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelTaskRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.Reason == "" {
			req.Reason = "requested via API"
		}

		err := d.Tasks.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if errors.Is(err, tasks.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}
