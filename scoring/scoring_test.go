package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newswire/types"
)

func TestScoreFullyQualifiedArticle(t *testing.T) {
	d := Score(types.Article{
		Title:       "AI breakthrough announced today",
		Description: strings.Repeat("x", 40),
		URL:         "https://example.com/a",
	})

	require.True(t, d.Approved)
	assert.Equal(t, 100, d.Score)
	assert.Equal(t, "Article meets quality standards", d.Reason)
	assert.Equal(t, types.StatusApproved, d.Status())
}

func TestScoreRejectsDegenerateArticle(t *testing.T) {
	d := Score(types.Article{Title: "x", Description: "", URL: "not-a-url"})

	require.False(t, d.Approved)
	// Clean text still passes the spam criterion, so the floor for a
	// spam-free article is the spam points, not zero.
	assert.Equal(t, SpamPoints, d.Score)
	assert.Contains(t, d.Reason, "Title too short or missing")
	assert.Contains(t, d.Reason, "Description too short or missing")
	assert.Contains(t, d.Reason, "Invalid or missing URL")
	// Reason lists exactly the failed criteria; spam passed here.
	assert.NotContains(t, d.Reason, "spam")
	assert.Equal(t, types.StatusRejected, d.Status())
}

func TestScoreBoundaryAtSeventy(t *testing.T) {
	// Failing only the title criterion lands exactly on the threshold:
	// description(25) + spam(25) + url(20) = 70, which is approved.
	d := Score(types.Article{
		Title:       "short",
		Description: strings.Repeat("d", 30),
		URL:         "https://example.com/b",
	})
	assert.Equal(t, 70, d.Score)
	assert.True(t, d.Approved)

	// Failing description and spam lands at 50, rejected.
	d = Score(types.Article{
		Title:       "free money headline for everyone",
		Description: "too short",
		URL:         "https://example.com/b",
	})
	assert.Equal(t, 50, d.Score)
	assert.False(t, d.Approved)
}

func TestScoreTitleCriterionBoundary(t *testing.T) {
	// Titles of length <= 10 contribute 0 regardless of other fields. The
	// remaining criteria land exactly on the threshold, which approves.
	for _, title := range []string{"", "short", "exactly10!"} {
		d := Score(types.Article{
			Title:       title,
			Description: strings.Repeat("d", 30),
			URL:         "https://example.com/c",
		})
		assert.Equal(t, DescriptionPoints+SpamPoints+URLPoints, d.Score, "title %q", title)
		assert.True(t, d.Approved, "title %q", title)
	}

	// One more character tips the title criterion over.
	d := Score(types.Article{
		Title:       "elevenchars",
		Description: strings.Repeat("d", 30),
		URL:         "https://example.com/c",
	})
	assert.Equal(t, TitlePoints+DescriptionPoints+SpamPoints+URLPoints, d.Score)
}

func TestScoreRecordsMatchedSpamTerm(t *testing.T) {
	d := Score(types.Article{
		Title:       "URGENT: read this now",
		Description: strings.Repeat("d", 30),
		URL:         "https://example.com/d",
	})

	require.True(t, d.Approved) // 30+25+20 = 75
	// Approved reason is the standard confirmation, so check a rejected one.
	d = Score(types.Article{Title: "URGENT: act", Description: "", URL: ""})
	assert.Contains(t, d.Reason, "urgent")
}

func TestScoreIsDeterministic(t *testing.T) {
	a := types.Article{Title: "deterministic headline", Description: strings.Repeat("z", 25), URL: "https://example.com/e"}
	first := Score(a)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(a))
	}
}

func TestScoreMalformedURLFailsCriterionOnly(t *testing.T) {
	d := Score(types.Article{
		Title:       "a perfectly reasonable headline",
		Description: strings.Repeat("d", 30),
		URL:         "ftp://example.com/file",
	})
	assert.Equal(t, TitlePoints+DescriptionPoints+SpamPoints, d.Score)
}
