package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHealthRoutes registers health check endpoints.
func RegisterHealthRoutes(r *gin.Engine, d Deps) {
	r.GET("/api/health", handleHealth(d))
}

func handleHealth(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"cache_healthy": d.Cache.GetInfo(c.Request.Context()).Healthy,
		})
	}
}
