package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"newswire/types"
)

// DB is the subset of pgxpool.Pool the repository uses; pgxmock stands in
// for it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists articles in Postgres via pgx.
type PostgresStore struct {
	db DB
}

var _ ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore wires an existing connection pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Connect opens a pgx pool, verifies connectivity and ensures the schema.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("✅ Postgres connection established")
	return s, pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	id              text PRIMARY KEY,
	title           text NOT NULL DEFAULT '',
	description     text NOT NULL DEFAULT '',
	content         text NOT NULL DEFAULT '',
	url             text NOT NULL,
	image_url       text NOT NULL DEFAULT '',
	published_at    timestamptz,
	source_name     text NOT NULL DEFAULT '',
	author          text NOT NULL DEFAULT '',
	status          text NOT NULL DEFAULT 'pending',
	category        text NOT NULL DEFAULT '',
	approval_reason text NOT NULL DEFAULT '',
	created_at      timestamptz NOT NULL DEFAULT now(),
	updated_at      timestamptz NOT NULL DEFAULT now(),
	processed_at    timestamptz
);
CREATE INDEX IF NOT EXISTS idx_articles_status ON articles (status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles (category, status, created_at DESC);
`

// EnsureSchema creates the articles table and indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const articleColumns = `id, title, description, content, url, image_url,
	published_at, source_name, author,
	status, category, approval_reason, created_at, updated_at, processed_at`

const insertSQL = `INSERT INTO articles
	(id, title, description, content, url, image_url, published_at, source_name, author)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

// UpsertArticles inserts each raw article keyed by its canonical-URL hash.
// Existing IDs are skipped, making batch re-submission a no-op.
func (s *PostgresStore) UpsertArticles(ctx context.Context, batch []types.RawArticle) ([]types.Article, error) {
	inserted := make([]types.Article, 0, len(batch))
	for _, raw := range batch {
		id := types.GenerateID(raw.URL)
		var published *time.Time
		if !raw.PublishedAt.IsZero() {
			published = &raw.PublishedAt
		}
		tag, err := s.db.Exec(ctx, insertSQL,
			id, raw.Title, raw.Description, raw.Content, types.CanonicalURL(raw.URL),
			raw.ImageURL, published, raw.SourceName, raw.Author)
		if err != nil {
			return inserted, fmt.Errorf("upsert article %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			continue // already known
		}
		a, err := s.GetArticle(ctx, id)
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, a)
	}
	return inserted, nil
}

// GetArticle looks up one article by ID.
func (s *PostgresStore) GetArticle(ctx context.Context, id string) (types.Article, error) {
	row := s.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	a, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Article{}, ErrNotFound
	}
	if err != nil {
		return types.Article{}, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

// ListArticles returns articles matching the filter, newest first.
func (s *PostgresStore) ListArticles(ctx context.Context, f ListFilter) ([]types.Article, error) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, string(f.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	args = append(args, f.Limit, f.Skip)
	query := fmt.Sprintf(`SELECT `+articleColumns+` FROM articles%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	return s.queryArticles(ctx, query, args...)
}

// ListApproved returns the newest approved articles.
func (s *PostgresStore) ListApproved(ctx context.Context, limit int) ([]types.Article, error) {
	return s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE status = 'approved' ORDER BY created_at DESC LIMIT $1`,
		limit)
}

// ListApprovedByCategory returns the newest approved articles in one category.
func (s *PostgresStore) ListApprovedByCategory(ctx context.Context, category types.ArticleCategory, limit int) ([]types.Article, error) {
	return s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE status = 'approved' AND category = $1 ORDER BY created_at DESC LIMIT $2`,
		string(category), limit)
}

// Stats returns counts by status plus approved counts per category.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		StatusDistribution:   map[string]int{},
		CategoryDistribution: map[string]int{},
	}
	for _, st := range []types.ArticleStatus{types.StatusPending, types.StatusApproved, types.StatusRejected} {
		stats.StatusDistribution[string(st)] = 0
	}
	for _, c := range types.Categories {
		stats.CategoryDistribution[string(c)] = 0
	}

	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM articles GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.StatusDistribution[status] = count
		stats.TotalArticles += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats rows: %w", err)
	}

	catRows, err := s.db.Query(ctx,
		`SELECT category, COUNT(*) FROM articles WHERE status = 'approved' AND category <> '' GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var category string
		var count int
		if err := catRows.Scan(&category, &count); err != nil {
			return Stats{}, fmt.Errorf("scan category count: %w", err)
		}
		stats.CategoryDistribution[category] = count
	}
	if err := catRows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats category rows: %w", err)
	}

	return stats, nil
}

// UpdateApproval applies an approval decision only while the article still
// has the expected status, so a racing unit observes a clean no-op.
func (s *PostgresStore) UpdateApproval(ctx context.Context, id string, expected, status types.ArticleStatus, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE articles SET status = $3, approval_reason = $4, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(expected), string(status), reason)
	if err != nil {
		return false, fmt.Errorf("update approval %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateCategory persists the category and stamps ProcessedAt.
func (s *PostgresStore) UpdateCategory(ctx context.Context, id string, category types.ArticleCategory) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE articles SET category = $2, processed_at = now(), updated_at = now() WHERE id = $1`,
		id, string(category))
	if err != nil {
		return fmt.Errorf("update category %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetForReprocessing clears derived fields and returns the article to
// pending so the pipeline recomputes them.
func (s *PostgresStore) ResetForReprocessing(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE articles SET status = 'pending', category = '', approval_reason = '', processed_at = NULL, updated_at = now() WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("reset article %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) queryArticles(ctx context.Context, query string, args ...any) ([]types.Article, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return articles, nil
}

func scanArticle(row pgx.Row) (types.Article, error) {
	var a types.Article
	var status, category string
	var published *time.Time
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Content, &a.URL, &a.ImageURL,
		&published, &a.SourceName, &a.Author,
		&status, &category, &a.ApprovalReason,
		&a.CreatedAt, &a.UpdatedAt, &a.ProcessedAt)
	if err != nil {
		return types.Article{}, err
	}
	if published != nil {
		a.PublishedAt = *published
	}
	a.Status = types.ArticleStatus(status)
	a.Category = types.ArticleCategory(category)
	return a, nil
}
