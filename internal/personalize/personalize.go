// Package personalize rewrites a query with a user's stored preferences and
// runs it through the aggregator.
package personalize

import (
	"strings"

	"github.com/pders01/headlines/internal/news"
)

// Personalize derives a new query from q and prefs. Values the caller chose
// always win; preferences fill the gaps; defaults fill whatever is left.
func Personalize(prefs news.UserPreferences, q news.NewsQuery) news.NewsQuery {
	out := q

	if out.Category == "" {
		for _, c := range prefs.Categories {
			if c.Valid() {
				out.Category = c
				break
			}
		}
	}

	if !q.CountryExplicit() {
		if code, ok := regionCode(prefs.Country); ok {
			out.Country = code
		}
	}
	if !q.LanguageExplicit() {
		if code, ok := regionCode(prefs.Language); ok {
			out.Language = code
		}
	}

	if clause := keywordClause(prefs.Keywords); clause != "" {
		if text := strings.TrimSpace(q.Q); text != "" {
			out.Q = text + " AND (" + clause + ")"
		} else {
			out.Q = clause
		}
	}

	return out.WithDefaults()
}

func keywordClause(keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	return strings.Join(terms, " OR ")
}

func regionCode(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return "", false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return "", false
		}
	}
	return s, true
}
