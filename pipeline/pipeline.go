// Package pipeline runs ingestion as retryable units consumed from the work
// queue: persist a batch, decide approval per article, then categorize every
// decided article. Every unit is idempotent because the queue delivers at
// least once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"newswire/cache"
	"newswire/categorizer"
	"newswire/config"
	"newswire/scoring"
	"newswire/store"
	"newswire/tasks"
	"newswire/types"
)

// Publisher enqueues unit messages on the work queue.
type Publisher interface {
	Send(key string, payload any) error
}

// Archiver persists approved articles to long-term storage. Archiving is
// best-effort and never blocks the pipeline.
type Archiver interface {
	Archive(ctx context.Context, a types.Article) error
}

// Pipeline wires the record store, cache, task registry and work queue into
// the unit handlers.
type Pipeline struct {
	store    store.ArticleStore
	cache    *cache.Manager
	tasks    *tasks.Registry
	queue    Publisher
	archiver Archiver
	retry    RetryConfig
}

// New creates a pipeline with the default retry policy and no archiver.
func New(st store.ArticleStore, cm *cache.Manager, reg *tasks.Registry, queue Publisher) *Pipeline {
	return &Pipeline{store: st, cache: cm, tasks: reg, queue: queue, retry: DefaultRetryConfig()}
}

// WithArchiver enables long-term archiving of approved articles.
func (p *Pipeline) WithArchiver(a Archiver) *Pipeline {
	p.archiver = a
	return p
}

// WithRetry overrides the retry policy.
func (p *Pipeline) WithRetry(cfg RetryConfig) *Pipeline {
	p.retry = cfg
	return p
}

// SubmitIngest registers a batch-persist task and enqueues its unit. The
// caller gets the pending task record back immediately.
func (p *Pipeline) SubmitIngest(ctx context.Context, batch []types.RawArticle) (types.TaskRecord, error) {
	rec, err := p.tasks.Create(ctx, types.TaskIngest, fmt.Sprintf("queued batch of %d articles", len(batch)))
	if err != nil {
		return types.TaskRecord{}, err
	}
	return p.submit(ctx, rec, UnitMessage{Unit: UnitIngest, TaskID: rec.ID, Batch: batch})
}

// SubmitReprocess resets one article to pending and runs it back through
// approval and categorization. Fails fast when the article does not exist.
func (p *Pipeline) SubmitReprocess(ctx context.Context, articleID string) (types.TaskRecord, error) {
	if _, err := p.store.GetArticle(ctx, articleID); err != nil {
		return types.TaskRecord{}, err
	}
	rec, err := p.tasks.Create(ctx, types.TaskApprove, "queued reprocess of article "+articleID)
	if err != nil {
		return types.TaskRecord{}, err
	}
	return p.submit(ctx, rec, UnitMessage{Unit: UnitApprove, TaskID: rec.ID, ArticleID: articleID, Reprocess: true})
}

// SubmitWarm enqueues a cache-warm unit.
func (p *Pipeline) SubmitWarm(ctx context.Context) (types.TaskRecord, error) {
	rec, err := p.tasks.Create(ctx, types.TaskWarmCache, "queued cache warm")
	if err != nil {
		return types.TaskRecord{}, err
	}
	return p.submit(ctx, rec, UnitMessage{Unit: UnitWarmCache, TaskID: rec.ID})
}

func (p *Pipeline) submit(ctx context.Context, rec types.TaskRecord, msg UnitMessage) (types.TaskRecord, error) {
	if err := p.queue.Send(msg.Key(), msg); err != nil {
		p.tasks.Fail(ctx, rec.ID, "enqueue failed: "+err.Error())
		return types.TaskRecord{}, fmt.Errorf("enqueue %s unit: %w", msg.Unit, err)
	}
	return rec, nil
}

// Process dispatches one unit message. A nil return marks the message
// consumed; an error leaves it unmarked for redelivery.
func (p *Pipeline) Process(ctx context.Context, msg *UnitMessage) error {
	if msg.TaskID != "" && p.tasks.Cancelled(ctx, msg.TaskID) {
		log.WithFields(log.Fields{"task_id": msg.TaskID, "unit": msg.Unit}).Info("dropping unit of cancelled task")
		return nil
	}

	switch msg.Unit {
	case UnitIngest:
		return p.runIngest(ctx, msg)
	case UnitApprove:
		return p.runApprove(ctx, msg)
	case UnitCategorize:
		return p.runCategorize(ctx, msg)
	case UnitWarmCache:
		return p.runWarm(ctx, msg)
	}
	log.WithField("unit", msg.Unit).Error("unknown unit kind, dropping message")
	return nil
}

// runIngest persists the batch, caches the new articles and fans out one
// approval unit per inserted article. Duplicate deliveries insert nothing
// and fan out nothing.
func (p *Pipeline) runIngest(ctx context.Context, msg *UnitMessage) error {
	p.tasks.Start(ctx, msg.TaskID, "persisting batch")

	batch := make([]types.RawArticle, 0, len(msg.Batch))
	skipped := 0
	for _, raw := range msg.Batch {
		if strings.TrimSpace(raw.URL) == "" || strings.TrimSpace(raw.Title) == "" {
			skipped++
			log.WithFields(log.Fields{"url": raw.URL, "title": raw.Title}).Warn("skipping malformed article")
			continue
		}
		batch = append(batch, raw)
	}

	var inserted []types.Article
	err := Retry(ctx, p.retry, "persist batch", func(ctx context.Context) error {
		var err error
		inserted, err = p.store.UpsertArticles(ctx, batch)
		return err
	})
	if err != nil {
		return p.unitFailed(ctx, msg, err)
	}

	p.tasks.Progress(ctx, msg.TaskID, fmt.Sprintf("saved %d new articles", len(inserted)))

	enqueued := 0
	for _, a := range inserted {
		p.cache.PutArticle(ctx, a)
		unit := UnitMessage{Unit: UnitApprove, ArticleID: a.ID}
		if err := p.queue.Send(unit.Key(), unit); err != nil {
			log.WithField("article_id", a.ID).WithError(err).Error("failed to enqueue approval unit")
			continue
		}
		enqueued++
	}

	p.tasks.Succeed(ctx, msg.TaskID, map[string]int{
		"received":   len(msg.Batch),
		"malformed":  skipped,
		"saved":      len(inserted),
		"duplicates": len(batch) - len(inserted),
		"enqueued":   enqueued,
	})
	log.WithFields(log.Fields{"saved": len(inserted), "duplicates": len(batch) - len(inserted)}).Info("✅ batch persisted")
	return nil
}

// runApprove scores one article and persists the decision with a
// conditional write, then chains one categorization unit for the article.
// Losing the conditional write, or finding the decision already made, is a
// clean no-op; the winning unit did the chaining.
func (p *Pipeline) runApprove(ctx context.Context, msg *UnitMessage) error {
	if msg.TaskID != "" {
		p.tasks.Start(ctx, msg.TaskID, "scoring article "+msg.ArticleID)
	}

	if msg.Reprocess {
		err := Retry(ctx, p.retry, "reset article", func(ctx context.Context) error {
			return p.store.ResetForReprocessing(ctx, msg.ArticleID)
		})
		if err != nil {
			return p.unitFailed(ctx, msg, err)
		}
	}

	var a types.Article
	err := Retry(ctx, p.retry, "load article", func(ctx context.Context) error {
		var err error
		a, err = p.store.GetArticle(ctx, msg.ArticleID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("article_id", msg.ArticleID).Warn("approval unit for unknown article, dropping")
		if msg.TaskID != "" {
			p.tasks.Fail(ctx, msg.TaskID, "article not found")
		}
		return nil
	}
	if err != nil {
		return p.unitFailed(ctx, msg, err)
	}

	if a.Status != types.StatusPending {
		log.WithFields(log.Fields{"article_id": a.ID, "status": a.Status}).Info("approval already decided, skipping")
		if msg.TaskID != "" {
			p.tasks.Succeed(ctx, msg.TaskID, map[string]any{"status": a.Status})
		}
		return nil
	}

	decision := scoring.Score(a)
	var won bool
	err = Retry(ctx, p.retry, "persist approval", func(ctx context.Context) error {
		var err error
		won, err = p.store.UpdateApproval(ctx, a.ID, types.StatusPending, decision.Status(), decision.Reason)
		return err
	})
	if err != nil {
		return p.unitFailed(ctx, msg, err)
	}
	if !won {
		log.WithField("article_id", a.ID).Info("concurrent approval decision won, skipping")
		if msg.TaskID != "" {
			p.tasks.Succeed(ctx, msg.TaskID, map[string]any{"note": "concurrent decision won"})
		}
		return nil
	}

	a.Status = decision.Status()
	a.ApprovalReason = decision.Reason
	p.cache.PutArticle(ctx, a)

	if decision.Approved && p.archiver != nil {
		if err := p.archiver.Archive(ctx, a); err != nil {
			log.WithField("article_id", a.ID).WithError(err).Warn("archive skipped")
		}
	}

	// Rejected articles are categorized too; ProcessedAt marks the full
	// pipeline as complete regardless of the decision.
	unit := UnitMessage{Unit: UnitCategorize, ArticleID: a.ID}
	if err := p.queue.Send(unit.Key(), unit); err != nil {
		return p.unitFailed(ctx, msg, fmt.Errorf("enqueue categorization: %w", err))
	}

	log.WithFields(log.Fields{
		"article_id": a.ID,
		"score":      decision.Score,
		"approved":   decision.Approved,
	}).Info("✅ approval decided")
	if msg.TaskID != "" {
		p.tasks.Succeed(ctx, msg.TaskID, map[string]any{"status": a.Status, "score": decision.Score})
	}
	return nil
}

// runCategorize labels one decided article and stamps it processed.
// Redeliveries see ProcessedAt set and skip.
func (p *Pipeline) runCategorize(ctx context.Context, msg *UnitMessage) error {
	var a types.Article
	err := Retry(ctx, p.retry, "load article", func(ctx context.Context) error {
		var err error
		a, err = p.store.GetArticle(ctx, msg.ArticleID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		log.WithField("article_id", msg.ArticleID).Warn("categorization unit for unknown article, dropping")
		return nil
	}
	if err != nil {
		return err
	}

	if a.Status == types.StatusPending {
		log.WithFields(log.Fields{"article_id": a.ID, "status": a.Status}).Info("article not decided yet, skipping categorization")
		return nil
	}
	if a.ProcessedAt != nil {
		log.WithField("article_id", a.ID).Info("article already categorized, skipping")
		return nil
	}

	category := categorizer.Categorize(a)
	err = Retry(ctx, p.retry, "persist category", func(ctx context.Context) error {
		return p.store.UpdateCategory(ctx, a.ID, category)
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	a.Category = category
	a.ProcessedAt = &now
	p.cache.PutArticle(ctx, a)

	log.WithFields(log.Fields{"article_id": a.ID, "category": category}).Info("✅ article categorized")
	return nil
}

// runWarm loads store snapshots and pre-populates the cache.
func (p *Pipeline) runWarm(ctx context.Context, msg *UnitMessage) error {
	p.tasks.Start(ctx, msg.TaskID, "loading approved articles")

	var approved []types.Article
	err := Retry(ctx, p.retry, "load approved articles", func(ctx context.Context) error {
		var err error
		approved, err = p.store.ListApproved(ctx, config.WarmLimit)
		return err
	})
	if err != nil {
		return p.unitFailed(ctx, msg, err)
	}

	var stats store.Stats
	err = Retry(ctx, p.retry, "load statistics", func(ctx context.Context) error {
		var err error
		stats, err = p.store.Stats(ctx)
		return err
	})
	if err != nil {
		return p.unitFailed(ctx, msg, err)
	}

	p.cache.Warm(ctx, approved, stats)
	p.tasks.Succeed(ctx, msg.TaskID, map[string]int{"warmed_articles": len(approved)})
	return nil
}

// unitFailed records a terminal failure when the unit owns a task, and
// otherwise returns the error so the queue redelivers the unit.
func (p *Pipeline) unitFailed(ctx context.Context, msg *UnitMessage, err error) error {
	if msg.TaskID != "" {
		p.tasks.Fail(ctx, msg.TaskID, err.Error())
		return nil
	}
	return err
}
