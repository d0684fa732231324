// Package cache implements the multi-tier read cache over the record store.
// Entries are derived, never authoritative: every read path falls back to
// the store on a miss (cache-aside), and a dead backend degrades reads to
// the store instead of failing the caller.
package cache

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"newswire/config"
	"newswire/store"
	"newswire/types"
)

// Manager owns the key-space, TTL policy and invalidation rules.
type Manager struct {
	backend Backend
}

// NewManager wires a backend. The backend lifecycle stays with the caller.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// getOrLoad serves key from cache when present, otherwise invokes the
// loader and stores the result with ttl. Backend failures are logged and
// degrade to a direct load; cache writes are best-effort.
func getOrLoad[T any](ctx context.Context, m *Manager, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := m.backend.Get(ctx, key)
	if err == nil {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.WithField("key", key).Warn("dropping undecodable cache entry")
		_ = m.backend.Delete(ctx, key)
	} else if err != ErrMiss {
		log.WithField("key", key).WithError(err).Warn("cache read degraded to store")
	}

	v, err := loader(ctx)
	if err != nil {
		return zero, err
	}
	m.put(ctx, key, v, ttl)
	return v, nil
}

// put marshals and stores an entry, logging instead of failing on error.
func (m *Manager) put(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("failed to encode cache entry")
		return
	}
	if err := m.backend.Set(ctx, key, raw, ttl); err != nil {
		log.WithField("key", key).WithError(err).Warn("cache write skipped")
	}
}

// GetOrLoadArticle is the cache-aside read path for a single article.
func (m *Manager) GetOrLoadArticle(ctx context.Context, id string, loader func(context.Context) (types.Article, error)) (types.Article, error) {
	return getOrLoad(ctx, m, ArticleKey(id), config.ArticleTTL, loader)
}

// GetOrLoadList is the cache-aside read path for a filtered article list.
func (m *Manager) GetOrLoadList(ctx context.Context, f store.ListFilter, loader func(context.Context) ([]types.Article, error)) ([]types.Article, error) {
	key := ListKey(string(f.Status), string(f.Category), f.Skip, f.Limit)
	return getOrLoad(ctx, m, key, config.ListTTL, loader)
}

// GetOrLoadApproved is the cache-aside read path for the approved aggregate.
func (m *Manager) GetOrLoadApproved(ctx context.Context, loader func(context.Context) ([]types.Article, error)) ([]types.Article, error) {
	return getOrLoad(ctx, m, ApprovedKey(), config.ApprovedTTL, loader)
}

// GetOrLoadCategory is the cache-aside read path for one category list.
func (m *Manager) GetOrLoadCategory(ctx context.Context, category types.ArticleCategory, loader func(context.Context) ([]types.Article, error)) ([]types.Article, error) {
	return getOrLoad(ctx, m, CategoryKey(category), config.ListTTL, loader)
}

// GetOrLoadStats is the cache-aside read path for the statistics summary.
func (m *Manager) GetOrLoadStats(ctx context.Context, loader func(context.Context) (store.Stats, error)) (store.Stats, error) {
	return getOrLoad(ctx, m, StatsKey(), config.StatsTTL, loader)
}

// GetUpstream returns a cached upstream fetch response, if any.
func (m *Manager) GetUpstream(ctx context.Context, params map[string]string) ([]byte, bool) {
	raw, err := m.backend.Get(ctx, UpstreamKey(params))
	if err != nil {
		if err != ErrMiss {
			log.WithError(err).Warn("upstream cache read degraded")
		}
		return nil, false
	}
	return raw, true
}

// PutUpstream stores a raw upstream fetch response, best-effort.
func (m *Manager) PutUpstream(ctx context.Context, params map[string]string, body []byte) {
	if err := m.backend.Set(ctx, UpstreamKey(params), body, config.UpstreamTTL); err != nil {
		log.WithError(err).Warn("upstream cache write skipped")
	}
}

// PutArticle refreshes the single-article entry after a mutation and drops
// every list/aggregate entry the article might appear in, forcing their
// next read to recompute. Never blocks or fails the owning mutation.
func (m *Manager) PutArticle(ctx context.Context, a types.Article) {
	m.put(ctx, ArticleKey(a.ID), a, config.ArticleTTL)
	m.dropDerived(ctx)
}

// dropDerived removes list, aggregate and stats entries.
func (m *Manager) dropDerived(ctx context.Context) {
	if _, err := m.backend.DeletePrefix(ctx, listPrefix); err != nil {
		log.WithError(err).Warn("list invalidation skipped")
	}
	if _, err := m.backend.DeletePrefix(ctx, categoryPrefix); err != nil {
		log.WithError(err).Warn("category invalidation skipped")
	}
	if err := m.backend.Delete(ctx, ApprovedKey(), StatsKey()); err != nil {
		log.WithError(err).Warn("aggregate invalidation skipped")
	}
}

// InvalidateArticle removes one single-article entry.
func (m *Manager) InvalidateArticle(ctx context.Context, id string) error {
	return m.backend.Delete(ctx, ArticleKey(id))
}

// InvalidateCategory removes one per-category entry.
func (m *Manager) InvalidateCategory(ctx context.Context, category types.ArticleCategory) error {
	return m.backend.Delete(ctx, CategoryKey(category))
}

// InvalidateLists removes every derived list/aggregate entry.
func (m *Manager) InvalidateLists(ctx context.Context) {
	m.dropDerived(ctx)
}

// InvalidateAll removes every cache entry this manager owns and returns
// how many keys were dropped.
func (m *Manager) InvalidateAll(ctx context.Context) (int, error) {
	total := 0
	for _, prefix := range []string{articlePrefix, listPrefix, categoryPrefix, upstreamPrefix} {
		n, err := m.backend.DeletePrefix(ctx, prefix)
		total += n
		if err != nil {
			return total, err
		}
	}
	if err := m.backend.Delete(ctx, ApprovedKey(), StatsKey()); err != nil {
		return total, err
	}
	return total, nil
}

// Warm proactively populates single entries, the approved aggregate, the
// per-category lists and the statistics summary from store snapshots.
func (m *Manager) Warm(ctx context.Context, approved []types.Article, stats store.Stats) {
	for _, a := range approved {
		m.put(ctx, ArticleKey(a.ID), a, config.ArticleTTL)
	}
	m.put(ctx, ApprovedKey(), approved, config.ApprovedTTL)

	byCategory := make(map[types.ArticleCategory][]types.Article)
	for _, a := range approved {
		if a.Category != "" {
			byCategory[a.Category] = append(byCategory[a.Category], a)
		}
	}
	for category, articles := range byCategory {
		m.put(ctx, CategoryKey(category), articles, config.ListTTL)
	}

	m.put(ctx, StatsKey(), stats, config.StatsTTL)
	log.WithField("articles", len(approved)).Info("cache warmed")
}

// Info reports per-namespace key counts and backend health.
type Info struct {
	Healthy          bool `json:"healthy"`
	CachedArticles   int  `json:"cached_articles_count"`
	CachedLists      int  `json:"cached_lists_count"`
	CachedCategories int  `json:"cached_categories_count"`
	CachedUpstream   int  `json:"cached_upstream_count"`
	HasApprovedCache bool `json:"has_approved_articles_cache"`
	HasStatsCache    bool `json:"has_stats_cache"`
}

// GetInfo inspects the current cache state.
func (m *Manager) GetInfo(ctx context.Context) Info {
	info := Info{Healthy: m.backend.Ping(ctx) == nil}
	info.CachedArticles, _ = m.backend.CountPrefix(ctx, articlePrefix)
	info.CachedLists, _ = m.backend.CountPrefix(ctx, listPrefix)
	info.CachedCategories, _ = m.backend.CountPrefix(ctx, categoryPrefix)
	info.CachedUpstream, _ = m.backend.CountPrefix(ctx, upstreamPrefix)
	_, err := m.backend.Get(ctx, ApprovedKey())
	info.HasApprovedCache = err == nil
	_, err = m.backend.Get(ctx, StatsKey())
	info.HasStatsCache = err == nil
	return info
}
