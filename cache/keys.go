package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"newswire/types"
)

// Key namespaces. Anything under articles: is derived list/aggregate state
// and is dropped wholesale on invalidation; article: holds single entries.
const (
	articlePrefix  = "article:"
	listPrefix     = "articles:list:"
	categoryPrefix = "articles:category:"
	approvedKey    = "articles:approved"
	statsKey       = "articles:stats"
	upstreamPrefix = "newsapi:"
)

// ArticleKey is the single-article entry key.
func ArticleKey(id string) string {
	return articlePrefix + id
}

// ListKey canonicalizes filter parameters into one key so equivalent
// filters collapse to the same entry: fixed segment order, empty filters
// omitted.
func ListKey(status, category string, skip, limit int) string {
	var segs []string
	if status != "" {
		segs = append(segs, "status:"+status)
	}
	if category != "" {
		segs = append(segs, "category:"+category)
	}
	segs = append(segs, fmt.Sprintf("skip:%d", skip), fmt.Sprintf("limit:%d", limit))
	return listPrefix + strings.Join(segs, "_")
}

// CategoryKey is the per-category approved-list entry key.
func CategoryKey(category types.ArticleCategory) string {
	return categoryPrefix + string(category)
}

// ApprovedKey is the fixed approved-articles aggregate key.
func ApprovedKey() string { return approvedKey }

// StatsKey is the fixed statistics summary key.
func StatsKey() string { return statsKey }

// UpstreamKey hashes upstream query parameters into a fetch-response key.
// Parameters are sorted before hashing so argument order is irrelevant.
func UpstreamKey(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('&')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return upstreamPrefix + hex.EncodeToString(sum[:])[:16]
}
