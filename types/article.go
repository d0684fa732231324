package types

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// ArticleStatus tracks where an article sits in the approval pipeline.
type ArticleStatus string

const (
	StatusPending  ArticleStatus = "pending"
	StatusApproved ArticleStatus = "approved"
	StatusRejected ArticleStatus = "rejected"
)

// ArticleCategory is one of the fixed keyword categories, or "general"
// when no keyword matched.
type ArticleCategory string

const (
	CategoryTechnology    ArticleCategory = "technology"
	CategoryBusiness      ArticleCategory = "business"
	CategorySports        ArticleCategory = "sports"
	CategoryEntertainment ArticleCategory = "entertainment"
	CategoryHealth        ArticleCategory = "health"
	CategoryScience       ArticleCategory = "science"
	CategoryPolitics      ArticleCategory = "politics"
	CategoryGeneral       ArticleCategory = "general"
)

// Categories lists every assignable category label.
var Categories = []ArticleCategory{
	CategoryTechnology,
	CategoryBusiness,
	CategorySports,
	CategoryEntertainment,
	CategoryHealth,
	CategoryScience,
	CategoryPolitics,
	CategoryGeneral,
}

// ValidCategory reports whether label is a known category.
func ValidCategory(label string) bool {
	for _, c := range Categories {
		if string(c) == label {
			return true
		}
	}
	return false
}

// Article is the persisted record. Content fields are write-once at
// ingestion; Status, Category and ApprovalReason are owned by the pipeline.
type Article struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	Content        string          `json:"content,omitempty"`
	URL            string          `json:"url"`
	ImageURL       string          `json:"image_url,omitempty"`
	PublishedAt    time.Time       `json:"published_at,omitempty"`
	SourceName     string          `json:"source_name,omitempty"`
	Author         string          `json:"author,omitempty"`
	Status         ArticleStatus   `json:"status"`
	Category       ArticleCategory `json:"category,omitempty"`
	ApprovalReason string          `json:"approval_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// RawArticle is an unpersisted payload from an ingestion source.
type RawArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	SourceName  string    `json:"source_name,omitempty"`
	Author      string    `json:"author,omitempty"`
}

// CanonicalURL normalizes a source URL so equivalent URLs collapse to one
// natural key: lowercase scheme/host, default port and fragment dropped,
// trailing slash stripped from the path, query string kept verbatim.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	u.Host = host
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// GenerateID derives a stable article ID from the canonical URL.
func GenerateID(rawURL string) string {
	hash := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(hash[:])[:16]
}
