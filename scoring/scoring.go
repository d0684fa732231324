// Package scoring implements the deterministic quality-approval pass.
// Score is a pure function: identical input always yields identical output,
// and missing fields fail their criterion instead of erroring.
package scoring

import (
	"net/url"
	"strings"

	"newswire/types"
)

// Point allocation per criterion; an article is approved at ApproveThreshold.
const (
	TitlePoints       = 30
	DescriptionPoints = 25
	SpamPoints        = 25
	URLPoints         = 20
	ApproveThreshold  = 70

	minTitleLen       = 10
	minDescriptionLen = 20
)

// spamKeywords is the fixed denylist, matched case-insensitively against
// title and description.
var spamKeywords = []string{
	"click here",
	"free money",
	"urgent",
	"!!!",
	"100% guaranteed",
}

// Decision is the outcome of scoring one article.
type Decision struct {
	Approved bool
	Score    int
	Reason   string
}

// Status maps the decision onto the article status enum.
func (d Decision) Status() types.ArticleStatus {
	if d.Approved {
		return types.StatusApproved
	}
	return types.StatusRejected
}

// Score evaluates an article's content fields and returns the approval
// decision. Each criterion is scored independently and summed.
func Score(a types.Article) Decision {
	score := 0
	var reasons []string

	if len(strings.TrimSpace(a.Title)) > minTitleLen {
		score += TitlePoints
	} else {
		reasons = append(reasons, "Title too short or missing")
	}

	if len(strings.TrimSpace(a.Description)) > minDescriptionLen {
		score += DescriptionPoints
	} else {
		reasons = append(reasons, "Description too short or missing")
	}

	if term := matchSpam(a.Title, a.Description); term == "" {
		score += SpamPoints
	} else {
		reasons = append(reasons, "Contains potential spam content: "+term)
	}

	if validSourceURL(a.URL) {
		score += URLPoints
	} else {
		reasons = append(reasons, "Invalid or missing URL")
	}

	if score >= ApproveThreshold {
		return Decision{Approved: true, Score: score, Reason: "Article meets quality standards"}
	}
	return Decision{Approved: false, Score: score, Reason: strings.Join(reasons, "; ")}
}

// matchSpam returns the first denylist term found in title or description.
func matchSpam(title, description string) string {
	haystack := strings.ToLower(title) + " " + strings.ToLower(description)
	for _, term := range spamKeywords {
		if strings.Contains(haystack, term) {
			return term
		}
	}
	return ""
}

func validSourceURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
