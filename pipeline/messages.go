package pipeline

import "newswire/types"

// UnitKind names the retryable unit a queue message carries.
type UnitKind string

const (
	UnitIngest     UnitKind = "ingest"
	UnitApprove    UnitKind = "approve"
	UnitCategorize UnitKind = "categorize"
	UnitWarmCache  UnitKind = "warm_cache"
)

// UnitMessage is the work-queue envelope. Units for the same article key on
// the article ID so they share a partition and the approval decision is
// consumed before the categorization; batch-level units key on the task ID.
type UnitMessage struct {
	Unit      UnitKind           `json:"unit"`
	TaskID    string             `json:"task_id,omitempty"`
	ArticleID string             `json:"article_id,omitempty"`
	Reprocess bool               `json:"reprocess,omitempty"`
	Batch     []types.RawArticle `json:"batch,omitempty"`
}

// Key returns the partition key for the message.
func (m UnitMessage) Key() string {
	if m.ArticleID != "" {
		return m.ArticleID
	}
	return m.TaskID
}

// Valid reports whether the message names a known unit and carries the
// identifier that unit needs.
func (m UnitMessage) Valid() bool {
	switch m.Unit {
	case UnitIngest, UnitWarmCache:
		return m.TaskID != ""
	case UnitApprove, UnitCategorize:
		return m.ArticleID != ""
	}
	return false
}
