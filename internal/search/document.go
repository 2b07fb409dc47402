package search

import "strings"

// Entry types shown in the command palette
const (
	TypePage    = "page"
	TypeArticle = "article"
	TypeNote    = "note"
)

// Entry represents a searchable item
type Entry struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt,omitempty"`
	Type    string `json:"type"`
	Date    string `json:"date,omitempty"`
	Path    string `json:"path"`
}

// Key identifies an entry across merged catalogs, e.g. "article-go-channels".
func (e Entry) Key() string {
	return e.Type + "-" + e.Slug
}

// Relevance scores
const (
	ScoreNone    = 0
	ScoreExcerpt = 1
	ScoreTitle   = 2
)

// Score rates how well e matches query: 2 when the title contains it, 1 when
// only the excerpt does, 0 otherwise. Matching is case-insensitive substring
// containment.
func Score(e Entry, query string) int {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(e.Title), q) {
		return ScoreTitle
	}
	if strings.Contains(strings.ToLower(e.Excerpt), q) {
		return ScoreExcerpt
	}
	return ScoreNone
}
