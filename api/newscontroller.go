package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/newsapi"
	"newswire/rssfeeds"
)

// RegisterNewsRoutes registers the ingestion trigger endpoints.
func RegisterNewsRoutes(r *gin.Engine, d Deps) {
	g := r.Group("/api")
	g.POST("/news/fetch", handleNewsFetch(d))
	g.POST("/rss/fetch", handleRSSFetch(d))
}

type newsFetchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	PageSize int    `json:"page_size"`
}

// handleNewsFetch pulls headlines from the upstream source and submits the
// batch for asynchronous processing. Returns 202 with the task to poll.
func handleNewsFetch(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newsFetchRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.PageSize <= 0 {
			req.PageSize = config.ListDefaultLimit
		}

		batch, err := d.News.FetchHeadlines(c.Request.Context(), newsapi.Query{
			Search:   req.Query,
			Category: req.Category,
			PageSize: req.PageSize,
		})
		if err != nil {
			log.WithError(err).Error("upstream fetch failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if len(batch) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "no articles found", "count": 0})
			return
		}

		rec, err := d.Pipeline.SubmitIngest(c.Request.Context(), batch)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": rec.ID, "state": rec.State, "count": len(batch)})
	}
}

type rssFetchRequest struct {
	Feed    string `json:"feed"`
	Count   int    `json:"count"`
	Extract bool   `json:"extract"`
}

// handleRSSFetch ingests from an RSS preset key or a literal feed URL, with
// optional full-text extraction before the batch is submitted.
func handleRSSFetch(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rssFetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Feed == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "feed is required"})
			return
		}
		if req.Count <= 0 {
			req.Count = config.ListDefaultLimit
		}

		batch, err := rssfeeds.FetchFeed(c.Request.Context(), rssfeeds.ResolveFeedURL(req.Feed), req.Count)
		if err != nil {
			log.WithField("feed", req.Feed).WithError(err).Error("feed fetch failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if req.Extract {
			rssfeeds.ExtractAllContent(batch)
		}
		if len(batch) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "no articles found", "count": 0})
			return
		}

		rec, err := d.Pipeline.SubmitIngest(c.Request.Context(), batch)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": rec.ID, "state": rec.State, "count": len(batch)})
	}
}
