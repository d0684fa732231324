package rssfeeds

import (
	"fmt"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	log "github.com/sirupsen/logrus"

	"newswire/types"
)

const (
	WorkerCount      = 5
	extractorTimeout = 30 * time.Second
)

// ExtractAllContent fills in missing article bodies using a worker pool.
// A failed extraction leaves the article as fetched; scoring treats the
// missing fields as failed criteria.
func ExtractAllContent(articles []types.RawArticle) {
	var wg sync.WaitGroup
	indexes := make(chan int, len(articles))

	for w := 0; w < WorkerCount; w++ {
		go func() {
			for i := range indexes {
				if err := extractContent(&articles[i]); err != nil {
					log.WithField("url", articles[i].URL).WithError(err).Warn("content extraction failed")
				}
				wg.Done()
			}
		}()
	}

	for i := range articles {
		if articles[i].Content != "" {
			continue
		}
		wg.Add(1)
		indexes <- i
	}

	wg.Wait()
	close(indexes)
}

// extractContent fetches and extracts the full text for a single article.
func extractContent(raw *types.RawArticle) error {
	if raw.URL == "" {
		return fmt.Errorf("article URL is empty")
	}

	extracted, err := readability.FromURL(raw.URL, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	raw.Content = extracted.TextContent
	if raw.Description == "" {
		raw.Description = extracted.Excerpt
	}
	if raw.ImageURL == "" {
		raw.ImageURL = extracted.Image
	}
	if raw.Author == "" {
		raw.Author = extracted.Byline
	}
	return nil
}
