// Package store is the record-store adapter: the pipeline's only interface
// to the system of record. The Postgres implementation is the single
// writer-of-record for article status and category.
package store

import (
	"context"
	"errors"

	"newswire/types"
)

// ErrNotFound is returned when a point lookup matches no article.
var ErrNotFound = errors.New("article not found")

// ListFilter selects articles for a filtered list query.
type ListFilter struct {
	Status   types.ArticleStatus
	Category types.ArticleCategory
	Skip     int
	Limit    int
}

// Stats is the aggregate statistics snapshot.
type Stats struct {
	TotalArticles        int            `json:"total_articles"`
	StatusDistribution   map[string]int `json:"status_distribution"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

// ArticleStore is the contract the pipeline requires of the record store.
// All persistence steps behind it must be idempotent: the work queue
// delivers at least once.
type ArticleStore interface {
	// UpsertArticles persists a raw batch keyed by the articles' natural
	// key (canonical URL hash) and returns only the newly inserted
	// articles. Re-submitting an identical batch inserts nothing.
	UpsertArticles(ctx context.Context, batch []types.RawArticle) ([]types.Article, error)

	// GetArticle looks up one article by ID.
	GetArticle(ctx context.Context, id string) (types.Article, error)

	// ListArticles returns articles matching the filter.
	ListArticles(ctx context.Context, f ListFilter) ([]types.Article, error)

	// ListApproved returns the newest approved articles.
	ListApproved(ctx context.Context, limit int) ([]types.Article, error)

	// ListApprovedByCategory returns the newest approved articles in one category.
	ListApprovedByCategory(ctx context.Context, category types.ArticleCategory, limit int) ([]types.Article, error)

	// Stats returns counts by status and approved counts by category.
	Stats(ctx context.Context) (Stats, error)

	// UpdateApproval conditionally persists an approval decision. The write
	// only applies while the article still has expected status; updated
	// reports whether this caller won. A concurrent unit that loses
	// observes updated=false and must exit cleanly.
	UpdateApproval(ctx context.Context, id string, expected, status types.ArticleStatus, reason string) (updated bool, err error)

	// UpdateCategory persists the categorization result and stamps
	// ProcessedAt, completing the pipeline for this article.
	UpdateCategory(ctx context.Context, id string, category types.ArticleCategory) error

	// ResetForReprocessing returns an article to pending so it re-enters
	// the pipeline; derived fields are recomputed by the next run.
	ResetForReprocessing(ctx context.Context, id string) error
}
