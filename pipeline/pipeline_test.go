package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/cache"
	"newswire/store"
	"newswire/tasks"
	"newswire/types"
)

// memBackend is an in-memory cache.Backend for the manager and registry.
type memBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{entries: map[string][]byte{}} }

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (m *memBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memBackend) CountPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (m *memBackend) Ping(context.Context) error { return nil }
func (m *memBackend) Close() error               { return nil }

// fakeQueue records published unit messages instead of touching Kafka.
type fakeQueue struct {
	mu       sync.Mutex
	messages []UnitMessage
	sendErr  error
}

func (q *fakeQueue) Send(_ string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return q.sendErr
	}
	q.messages = append(q.messages, payload.(UnitMessage))
	return nil
}

func (q *fakeQueue) ofKind(kind UnitKind) []UnitMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []UnitMessage
	for _, m := range q.messages {
		if m.Unit == kind {
			out = append(out, m)
		}
	}
	return out
}

// fakeStore is an in-memory ArticleStore with injectable failures.
type fakeStore struct {
	mu              sync.Mutex
	articles        map[string]types.Article
	failUpserts     int
	approveOverride func(id string) (bool, error)
}

func newFakeStore() *fakeStore { return &fakeStore{articles: map[string]types.Article{}} }

func (s *fakeStore) seed(a types.Article) types.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = types.GenerateID(a.URL)
	}
	if a.Status == "" {
		a.Status = types.StatusPending
	}
	s.articles[a.ID] = a
	return a
}

func (s *fakeStore) UpsertArticles(_ context.Context, batch []types.RawArticle) ([]types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts > 0 {
		s.failUpserts--
		return nil, errors.New("store unavailable")
	}
	var inserted []types.Article
	for _, raw := range batch {
		id := types.GenerateID(raw.URL)
		if _, ok := s.articles[id]; ok {
			continue
		}
		now := time.Now().UTC()
		a := types.Article{
			ID:          id,
			Title:       raw.Title,
			Description: raw.Description,
			Content:     raw.Content,
			URL:         raw.URL,
			ImageURL:    raw.ImageURL,
			PublishedAt: raw.PublishedAt,
			SourceName:  raw.SourceName,
			Author:      raw.Author,
			Status:      types.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.articles[id] = a
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (s *fakeStore) GetArticle(_ context.Context, id string) (types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return types.Article{}, store.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) ListArticles(_ context.Context, f store.ListFilter) ([]types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Article
	for _, a := range s.articles {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) ListApproved(_ context.Context, limit int) ([]types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Article
	for _, a := range s.articles {
		if a.Status == types.StatusApproved && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListApprovedByCategory(_ context.Context, category types.ArticleCategory, limit int) ([]types.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Article
	for _, a := range s.articles {
		if a.Status == types.StatusApproved && a.Category == category && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) Stats(context.Context) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := store.Stats{
		TotalArticles:        len(s.articles),
		StatusDistribution:   map[string]int{},
		CategoryDistribution: map[string]int{},
	}
	for _, a := range s.articles {
		stats.StatusDistribution[string(a.Status)]++
		if a.Status == types.StatusApproved && a.Category != "" {
			stats.CategoryDistribution[string(a.Category)]++
		}
	}
	return stats, nil
}

func (s *fakeStore) UpdateApproval(_ context.Context, id string, expected, status types.ArticleStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.approveOverride != nil {
		return s.approveOverride(id)
	}
	a, ok := s.articles[id]
	if !ok || a.Status != expected {
		return false, nil
	}
	a.Status = status
	a.ApprovalReason = reason
	a.UpdatedAt = time.Now().UTC()
	s.articles[id] = a
	return true, nil
}

func (s *fakeStore) UpdateCategory(_ context.Context, id string, category types.ArticleCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	a.Category = category
	a.ProcessedAt = &now
	a.UpdatedAt = now
	s.articles[id] = a
	return nil
}

func (s *fakeStore) ResetForReprocessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = types.StatusPending
	a.Category = ""
	a.ApprovalReason = ""
	a.ProcessedAt = nil
	s.articles[id] = a
	return nil
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
}

func (f *fakeArchiver) Archive(_ context.Context, a types.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, a.ID)
	return nil
}

func newTestPipeline() (*Pipeline, *fakeStore, *fakeQueue, *tasks.Registry, *memBackend) {
	backend := newMemBackend()
	st := newFakeStore()
	q := &fakeQueue{}
	reg := tasks.NewRegistry(backend)
	p := New(st, cache.NewManager(backend), reg, q).WithRetry(fastRetry(3))
	return p, st, q, reg, backend
}

func goodRaw(slug string) types.RawArticle {
	return types.RawArticle{
		Title:       "A perfectly fine headline about " + slug,
		Description: "A description easily longer than twenty characters covering " + slug,
		URL:         "https://example.com/" + slug,
		SourceName:  "Example Wire",
	}
}

func TestIngestPersistsAndFansOut(t *testing.T) {
	p, st, q, reg, _ := newTestPipeline()
	ctx := context.Background()

	existing := st.seed(types.Article{Title: "Already ingested article", URL: "https://example.com/existing"})

	batch := []types.RawArticle{
		goodRaw("one"),
		goodRaw("two"),
		{Title: "No URL at all"},
		{Title: "Already ingested article", URL: "https://example.com/existing"},
	}

	rec, err := p.SubmitIngest(ctx, batch)
	require.NoError(t, err)
	require.Len(t, q.ofKind(UnitIngest), 1)

	msg := q.ofKind(UnitIngest)[0]
	require.NoError(t, p.Process(ctx, &msg))

	assert.Len(t, st.articles, 3)

	approvals := q.ofKind(UnitApprove)
	require.Len(t, approvals, 2, "only newly inserted articles fan out")
	for _, unit := range approvals {
		assert.NotEqual(t, existing.ID, unit.ArticleID)
		assert.Empty(t, unit.TaskID)
	}

	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskSucceeded, got.State)
	assert.JSONEq(t, `{"received":4,"malformed":1,"saved":2,"duplicates":1,"enqueued":2}`, string(got.Result))
}

func TestIngestRedeliveryIsIdempotent(t *testing.T) {
	p, st, q, _, _ := newTestPipeline()
	ctx := context.Background()

	_, err := p.SubmitIngest(ctx, []types.RawArticle{goodRaw("one")})
	require.NoError(t, err)
	msg := q.ofKind(UnitIngest)[0]

	require.NoError(t, p.Process(ctx, &msg))
	require.Len(t, st.articles, 1)
	first := len(q.ofKind(UnitApprove))

	// The queue delivers at least once; a second delivery inserts and
	// enqueues nothing.
	require.NoError(t, p.Process(ctx, &msg))
	assert.Len(t, st.articles, 1)
	assert.Equal(t, first, len(q.ofKind(UnitApprove)))
}

func TestApprovalDecidesAndChains(t *testing.T) {
	p, st, q, _, _ := newTestPipeline()
	archiver := &fakeArchiver{}
	p.WithArchiver(archiver)
	ctx := context.Background()

	raw := goodRaw("one")
	a := st.seed(types.Article{Title: raw.Title, Description: raw.Description, URL: raw.URL})

	msg := UnitMessage{Unit: UnitApprove, ArticleID: a.ID}
	require.NoError(t, p.Process(ctx, &msg))

	got, err := st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Status)
	assert.Equal(t, "Article meets quality standards", got.ApprovalReason)
	assert.Equal(t, []string{a.ID}, archiver.archived)

	chained := q.ofKind(UnitCategorize)
	require.Len(t, chained, 1)
	assert.Equal(t, a.ID, chained[0].ArticleID)

	require.NoError(t, p.Process(ctx, &chained[0]))
	got, err = st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CategoryGeneral, got.Category)
	require.NotNil(t, got.ProcessedAt)

	// Redelivered categorization sees ProcessedAt and skips.
	require.NoError(t, p.Process(ctx, &chained[0]))
}

func TestRejectedArticleIsStillCategorized(t *testing.T) {
	p, st, q, _, _ := newTestPipeline()
	archiver := &fakeArchiver{}
	p.WithArchiver(archiver)
	ctx := context.Background()

	a := st.seed(types.Article{Title: "Urgent!!!", URL: "not a url"})

	msg := UnitMessage{Unit: UnitApprove, ArticleID: a.ID}
	require.NoError(t, p.Process(ctx, &msg))

	got, err := st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, got.Status)
	assert.Empty(t, archiver.archived, "only approved articles are archived")

	// The decision chains a categorization unit either way; ProcessedAt
	// marks pipeline completion for rejected articles too.
	chained := q.ofKind(UnitCategorize)
	require.Len(t, chained, 1)
	assert.Equal(t, a.ID, chained[0].ArticleID)

	require.NoError(t, p.Process(ctx, &chained[0]))
	got, err = st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, got.Status)
	assert.Equal(t, types.CategoryGeneral, got.Category)
	require.NotNil(t, got.ProcessedAt)
}

func TestApprovalLostRaceIsCleanNoOp(t *testing.T) {
	p, st, q, _, _ := newTestPipeline()
	ctx := context.Background()

	raw := goodRaw("one")
	a := st.seed(types.Article{Title: raw.Title, Description: raw.Description, URL: raw.URL})

	// The conditional write reports that another unit decided first.
	st.approveOverride = func(string) (bool, error) { return false, nil }

	msg := UnitMessage{Unit: UnitApprove, ArticleID: a.ID}
	require.NoError(t, p.Process(ctx, &msg))
	assert.Empty(t, q.ofKind(UnitCategorize))

	// A unit arriving after the decision landed skips before writing.
	st.approveOverride = nil
	st.seed(types.Article{ID: a.ID, Title: a.Title, URL: a.URL, Status: types.StatusApproved, ProcessedAt: a.ProcessedAt})
	require.NoError(t, p.Process(ctx, &msg))
	assert.Empty(t, q.ofKind(UnitCategorize))
}

func TestIngestRetriesTransientStoreFailure(t *testing.T) {
	p, st, q, reg, _ := newTestPipeline()
	ctx := context.Background()
	st.failUpserts = 2

	rec, err := p.SubmitIngest(ctx, []types.RawArticle{goodRaw("one")})
	require.NoError(t, err)
	msg := q.ofKind(UnitIngest)[0]

	require.NoError(t, p.Process(ctx, &msg))

	assert.Len(t, st.articles, 1)
	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskSucceeded, got.State)
}

func TestIngestExhaustedRetriesFailTask(t *testing.T) {
	p, st, q, reg, _ := newTestPipeline()
	ctx := context.Background()
	st.failUpserts = 10

	rec, err := p.SubmitIngest(ctx, []types.RawArticle{goodRaw("one")})
	require.NoError(t, err)
	msg := q.ofKind(UnitIngest)[0]

	require.NoError(t, p.Process(ctx, &msg), "a terminally failed batch is consumed, not redelivered")

	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.State)
	assert.Contains(t, got.Error, "persist batch failed after 3 attempts")
	assert.Empty(t, st.articles)
}

func TestCancelledTaskUnitIsDropped(t *testing.T) {
	p, st, q, reg, _ := newTestPipeline()
	ctx := context.Background()

	rec, err := p.SubmitIngest(ctx, []types.RawArticle{goodRaw("one")})
	require.NoError(t, err)
	require.NoError(t, reg.Cancel(ctx, rec.ID, "operator request"))

	msg := q.ofKind(UnitIngest)[0]
	require.NoError(t, p.Process(ctx, &msg))

	assert.Empty(t, st.articles)
	assert.Empty(t, q.ofKind(UnitApprove))
}

func TestReprocessResetsAndRescores(t *testing.T) {
	p, st, q, reg, _ := newTestPipeline()
	ctx := context.Background()

	raw := goodRaw("one")
	done := time.Now().UTC()
	a := st.seed(types.Article{
		Title:       raw.Title,
		Description: raw.Description,
		URL:         raw.URL,
		Status:      types.StatusApproved,
		Category:    types.CategoryTechnology,
		ProcessedAt: &done,
	})

	rec, err := p.SubmitReprocess(ctx, a.ID)
	require.NoError(t, err)

	units := q.ofKind(UnitApprove)
	require.Len(t, units, 1)
	assert.True(t, units[0].Reprocess)
	assert.Equal(t, rec.ID, units[0].TaskID)

	require.NoError(t, p.Process(ctx, &units[0]))

	got, err := st.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, got.Status, "a good article passes again after reset")
	assert.Empty(t, got.Category, "category waits for the chained unit")
	require.Len(t, q.ofKind(UnitCategorize), 1)

	task, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskSucceeded, task.State)
}

func TestReprocessUnknownArticle(t *testing.T) {
	p, _, q, _, _ := newTestPipeline()
	_, err := p.SubmitReprocess(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, q.messages)
}

func TestWarmUnitPopulatesCache(t *testing.T) {
	p, st, q, reg, backend := newTestPipeline()
	ctx := context.Background()

	raw := goodRaw("one")
	st.seed(types.Article{
		Title:       raw.Title,
		Description: raw.Description,
		URL:         raw.URL,
		Status:      types.StatusApproved,
		Category:    types.CategoryTechnology,
	})

	rec, err := p.SubmitWarm(ctx)
	require.NoError(t, err)
	msg := q.ofKind(UnitWarmCache)[0]
	require.NoError(t, p.Process(ctx, &msg))

	info := cache.NewManager(backend).GetInfo(ctx)
	assert.True(t, info.HasApprovedCache)
	assert.True(t, info.HasStatsCache)
	assert.Equal(t, 1, info.CachedArticles)

	got, err := reg.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskSucceeded, got.State)
	assert.JSONEq(t, `{"warmed_articles":1}`, string(got.Result))
}
