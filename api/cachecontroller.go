package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newswire/types"
)

// RegisterCacheRoutes registers cache administration endpoints.
func RegisterCacheRoutes(r *gin.Engine, d Deps) {
	g := r.Group("/api/cache")
	g.POST("/warm", handleWarmCache(d))
	g.DELETE("/invalidate", handleInvalidateAll(d))
	g.DELETE("/articles/:id", handleInvalidateArticle(d))
	g.DELETE("/category/:category", handleInvalidateCategory(d))
	g.GET("/info", handleCacheInfo(d))
}

// handleWarmCache submits an asynchronous cache-warm task.
func handleWarmCache(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Pipeline.SubmitWarm(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": rec.ID, "state": rec.State})
	}
}

// handleInvalidateAll drops every cache entry and reports the count.
func handleInvalidateAll(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := d.Cache.InvalidateAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "invalidated": n})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invalidated": n})
	}
}

// handleInvalidateArticle drops one single-article entry.
func handleInvalidateArticle(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Cache.InvalidateArticle(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
	}
}

// handleInvalidateCategory drops one per-category entry.
func handleInvalidateCategory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		label := c.Param("category")
		if !types.ValidCategory(label) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + label})
			return
		}
		if err := d.Cache.InvalidateCategory(c.Request.Context(), types.ArticleCategory(label)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
	}
}

// handleCacheInfo reports per-namespace key counts and backend health.
func handleCacheInfo(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Cache.GetInfo(c.Request.Context()))
	}
}
