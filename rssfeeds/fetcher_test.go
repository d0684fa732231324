package rssfeeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Wire</title>
    <link>https://example.com</link>
    <item>
      <title>First headline about software</title>
      <link>https://example.com/first</link>
      <description>A summary of the first story.</description>
      <pubDate>Mon, 02 Jun 2025 08:00:00 GMT</pubDate>
      <author>reporter@example.com (A. Reporter)</author>
    </item>
    <item>
      <title>Second headline</title>
      <link>https://example.com/second</link>
      <description>A summary of the second story.</description>
    </item>
    <item>
      <title>Third headline</title>
      <link>https://example.com/third</link>
    </item>
  </channel>
</rss>`

func TestFetchFeedMapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	articles, err := FetchFeed(context.Background(), srv.URL, 10)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	first := articles[0]
	assert.Equal(t, "First headline about software", first.Title)
	assert.Equal(t, "https://example.com/first", first.URL)
	assert.Equal(t, "A summary of the first story.", first.Description)
	assert.Equal(t, "Example Wire", first.SourceName)
	assert.False(t, first.PublishedAt.IsZero())
}

func TestFetchFeedRespectsMaxCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	articles, err := FetchFeed(context.Background(), srv.URL, 2)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}

func TestResolveFeedURL(t *testing.T) {
	assert.Equal(t, FeedPresets["hn"].URL, ResolveFeedURL("hn"))
	assert.Equal(t, "https://example.com/rss", ResolveFeedURL("https://example.com/rss"))
}
