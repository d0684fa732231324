package config

import "time"

// Cache Freshness Constants
const (
	// ArticleTTL bounds staleness of a single cached article.
	ArticleTTL = time.Hour

	// ListTTL bounds staleness of filtered article lists and per-category lists.
	ListTTL = time.Hour

	// ApprovedTTL bounds staleness of the approved-articles aggregate entry.
	ApprovedTTL = 24 * time.Hour

	// StatsTTL bounds staleness of the statistics summary entry.
	StatsTTL = 5 * time.Minute

	// UpstreamTTL bounds staleness of cached upstream fetch responses.
	UpstreamTTL = 30 * time.Minute
)

// Task Tracking Constants
const (
	// TaskRetention is how long a task record stays queryable after its
	// last update, covering terminal-state garbage collection.
	TaskRetention = 24 * time.Hour
)

// Pipeline Constants
const (
	// WarmLimit caps how many approved articles a cache-warm unit loads.
	WarmLimit = 500

	// ListDefaultLimit is the default page size for article list reads.
	ListDefaultLimit = 20

	// AggregateLimit caps the approved and per-category aggregate entries.
	AggregateLimit = 50
)

// Retry defaults for transient store/cache failures. All overridable via
// RETRY_MAX_ATTEMPTS, RETRY_BASE_DELAY and RETRY_MAX_DELAY.
const (
	RetryMaxAttempts   = 3
	RetryBaseDelay     = 500 * time.Millisecond
	RetryMaxDelay      = 5 * time.Second
	RetryBackoffFactor = 2.0
	RetryJitterFactor  = 0.2
)
