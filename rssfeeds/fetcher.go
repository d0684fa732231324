// Package rssfeeds ingests articles from RSS/Atom feeds as an alternative
// upstream source, with full-text extraction for feeds that only carry
// summaries.
package rssfeeds

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"newswire/types"
)

// FetchFeed retrieves and parses a feed, returning at most maxCount raw
// articles in feed order.
func FetchFeed(ctx context.Context, feedURL string, maxCount int) ([]types.RawArticle, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	count := min(len(feed.Items), maxCount)
	articles := make([]types.RawArticle, 0, count)

	for _, item := range feed.Items[:count] {
		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		description := item.Description
		if description == "" {
			description = item.Content
		}

		raw := types.RawArticle{
			Title:       item.Title,
			Description: description,
			URL:         item.Link,
			PublishedAt: publishedAt,
			SourceName:  feed.Title,
			Author:      author,
		}
		if item.Image != nil {
			raw.ImageURL = item.Image.URL
		}

		articles = append(articles, raw)
	}

	return articles, nil
}
