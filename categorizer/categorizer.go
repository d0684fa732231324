// Package categorizer assigns a category label from keyword occurrence
// counts. Pure and total: every input maps to exactly one label, with
// "general" for keyword-free text.
package categorizer

import (
	"strings"

	"newswire/types"
)

// categoryKeywords pairs each label with its static keyword set, ordered by
// tie-break priority.
var categoryKeywords = []struct {
	label    types.ArticleCategory
	keywords []string
}{
	{types.CategoryTechnology, []string{"tech", "ai", "software", "computer", "digital", "app", "coding", "programming"}},
	{types.CategoryBusiness, []string{"business", "economy", "finance", "market", "stock", "investment", "company"}},
	{types.CategorySports, []string{"sport", "football", "basketball", "soccer", "game", "player", "team", "match"}},
	{types.CategoryEntertainment, []string{"movie", "music", "celebrity", "film", "tv", "show", "entertainment"}},
	{types.CategoryHealth, []string{"health", "medical", "doctor", "medicine", "hospital", "disease", "treatment"}},
	{types.CategoryScience, []string{"science", "research", "study", "discovery", "scientist", "experiment"}},
	{types.CategoryPolitics, []string{"politics", "government", "election", "president", "minister", "policy", "vote"}},
}

// Categorize scores each category by keyword occurrences in the article's
// title, description and body, and returns the highest-scoring label. Ties
// resolve to the earlier label in priority order; zero matches everywhere
// yields "general".
func Categorize(a types.Article) types.ArticleCategory {
	text := strings.ToLower(a.Title + " " + a.Description + " " + a.Content)

	best := types.CategoryGeneral
	bestCount := 0
	for _, cat := range categoryKeywords {
		count := 0
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				count++
			}
		}
		if count > bestCount {
			best = cat.label
			bestCount = count
		}
	}
	return best
}
