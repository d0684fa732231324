package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newswire/config"
	"newswire/store"
	"newswire/types"
)

// RegisterArticleRoutes registers article read and reprocess endpoints.
func RegisterArticleRoutes(r *gin.Engine, d Deps) {
	g := r.Group("/api/articles")
	g.GET("", handleListArticles(d))
	g.GET("/approved", handleApprovedArticles(d))
	g.GET("/category/:category", handleArticlesByCategory(d))
	g.GET("/stats/summary", handleStatsSummary(d))
	g.GET("/:id", handleGetArticle(d))
	g.POST("/:id/reprocess", handleReprocessArticle(d))
}

// handleListArticles serves filtered lists through the list cache tier.
func handleListArticles(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.ListFilter{
			Skip:  parseNonNegative(c.Query("skip"), 0),
			Limit: parseNonNegative(c.Query("limit"), config.ListDefaultLimit),
		}
		if f.Limit == 0 {
			f.Limit = config.ListDefaultLimit
		}

		if status := c.Query("status"); status != "" {
			switch types.ArticleStatus(status) {
			case types.StatusPending, types.StatusApproved, types.StatusRejected:
				f.Status = types.ArticleStatus(status)
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
				return
			}
		}
		if category := c.Query("category"); category != "" {
			if !types.ValidCategory(category) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + category})
				return
			}
			f.Category = types.ArticleCategory(category)
		}

		articles, err := d.Cache.GetOrLoadList(c.Request.Context(), f, func(ctx context.Context) ([]types.Article, error) {
			return d.Store.ListArticles(ctx, f)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles), "skip": f.Skip, "limit": f.Limit})
	}
}

// handleGetArticle serves one article through the single-entry cache tier.
func handleGetArticle(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		article, err := d.Cache.GetOrLoadArticle(c.Request.Context(), id, func(ctx context.Context) (types.Article, error) {
			return d.Store.GetArticle(ctx, id)
		})
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, article)
	}
}

// handleApprovedArticles serves the approved aggregate cache tier.
func handleApprovedArticles(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		articles, err := d.Cache.GetOrLoadApproved(c.Request.Context(), func(ctx context.Context) ([]types.Article, error) {
			return d.Store.ListApproved(ctx, config.AggregateLimit)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
	}
}

// handleArticlesByCategory serves one per-category aggregate entry.
func handleArticlesByCategory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		label := c.Param("category")
		if !types.ValidCategory(label) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + label})
			return
		}
		category := types.ArticleCategory(label)

		articles, err := d.Cache.GetOrLoadCategory(c.Request.Context(), category, func(ctx context.Context) ([]types.Article, error) {
			return d.Store.ListApprovedByCategory(ctx, category, config.AggregateLimit)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "articles": articles, "count": len(articles)})
	}
}

// handleStatsSummary serves the statistics cache tier.
func handleStatsSummary(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := d.Cache.GetOrLoadStats(c.Request.Context(), func(ctx context.Context) (store.Stats, error) {
			return d.Store.Stats(ctx)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// handleReprocessArticle resets one article and runs it back through the
// pipeline asynchronously.
func handleReprocessArticle(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Pipeline.SubmitReprocess(c.Request.Context(), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": rec.ID, "state": rec.State})
	}
}

func parseNonNegative(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
