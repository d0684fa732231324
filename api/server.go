// Package api exposes the HTTP surface: ingestion triggers, article reads,
// task polling and cache administration.
package api

import (
	"github.com/gin-gonic/gin"

	"newswire/cache"
	"newswire/newsapi"
	"newswire/pipeline"
	"newswire/store"
	"newswire/tasks"
)

// Deps carries the wired components the controllers serve from.
type Deps struct {
	Store    store.ArticleStore
	Cache    *cache.Manager
	Tasks    *tasks.Registry
	Pipeline *pipeline.Pipeline
	News     *newsapi.Client
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	// Register resource routers
	RegisterNewsRoutes(r, d)
	RegisterArticleRoutes(r, d)
	RegisterTaskRoutes(r, d)
	RegisterCacheRoutes(r, d)
	RegisterHealthRoutes(r, d)
	return r
}
