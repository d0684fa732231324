// Package newsapi fetches headlines from a NewsAPI-compatible upstream.
// Raw responses are cached by their query parameters, so repeated fetches
// inside the freshness window never hit the provider.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"newswire/cache"
	"newswire/config"
	"newswire/types"
)

const maxResponseBytes = 4 << 20

// Query selects which headlines to fetch.
type Query struct {
	Search   string
	Category string
	PageSize int
	Page     int
}

func (q Query) params() map[string]string {
	p := map[string]string{}
	if q.Search != "" {
		p["q"] = q.Search
	}
	if q.Category != "" {
		p["category"] = q.Category
	}
	if q.PageSize > 0 {
		p["pageSize"] = strconv.Itoa(q.PageSize)
	}
	if q.Page > 1 {
		p["page"] = strconv.Itoa(q.Page)
	}
	return p
}

// Client calls one upstream endpoint with an API key. The cache manager may
// be nil, which disables response caching.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	cache    *cache.Manager
}

// NewClient wires an endpoint and key explicitly.
func NewClient(endpoint, apiKey string, cm *cache.Manager) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		cache:    cm,
	}
}

// FromEnv builds a client from NEWS_API_URL and NEWS_API_KEY.
func FromEnv(cm *cache.Manager) *Client {
	return NewClient(config.GetNewsAPIURL(), config.GetNewsAPIKey(), cm)
}

type sourceRef struct {
	Name string `json:"name"`
}

type responseArticle struct {
	Source      sourceRef `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	URLToImage  string    `json:"urlToImage"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content"`
}

type response struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []responseArticle `json:"articles"`
}

// FetchHeadlines returns the raw articles matching the query, served from
// the response cache when a fresh entry exists.
func (c *Client) FetchHeadlines(ctx context.Context, q Query) ([]types.RawArticle, error) {
	params := q.params()
	if c.cache != nil {
		if body, ok := c.cache.GetUpstream(ctx, params); ok {
			log.WithField("params", params).Debug("serving upstream fetch from cache")
			return parseArticles(body)
		}
	}

	body, err := c.fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	articles, err := parseArticles(body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.PutUpstream(ctx, params, body)
	}
	return articles, nil
}

func (c *Client) fetch(ctx context.Context, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr response
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("upstream rejected fetch (%s): %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return body, nil
}

// parseArticles decodes a raw response body. Entries the provider has
// redacted ("[Removed]") or that lack a URL are dropped.
func parseArticles(body []byte) ([]types.RawArticle, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	if r.Status != "" && r.Status != "ok" {
		return nil, fmt.Errorf("upstream error (%s): %s", r.Code, r.Message)
	}

	articles := make([]types.RawArticle, 0, len(r.Articles))
	for _, a := range r.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		articles = append(articles, types.RawArticle{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: a.PublishedAt,
			SourceName:  a.Source.Name,
			Author:      a.Author,
		})
	}
	return articles, nil
}
