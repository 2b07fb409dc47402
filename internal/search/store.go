package search

import "sort"

// SearchResult holds an entry and its relevance score
type SearchResult struct {
	Entry Entry `json:"entry"`
	Score int   `json:"score"`
}

// ScoreEntries scores every entry against query, keeping catalog order.
// An empty query means no ranking: every entry comes back with ScoreNone.
func ScoreEntries(entries []Entry, query string) []SearchResult {
	results := make([]SearchResult, len(entries))
	ranked := query != ""
	for i, e := range entries {
		results[i] = SearchResult{Entry: e}
		if ranked {
			results[i].Score = Score(e, query)
		}
	}
	return results
}

// Rank returns the entries matching query, best first. Entries with equal
// scores keep their catalog order. An empty query returns every entry
// unranked, in display order.
func Rank(entries []Entry, query string) []SearchResult {
	results := ScoreEntries(entries, query)
	if query == "" {
		return results
	}

	matched := results[:0]
	for _, r := range results {
		if r.Score > ScoreNone {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	return matched
}

// Index holds the merged palette catalog. It is built once and never mutated,
// so it is safe for concurrent use.
type Index struct {
	entries []Entry
}

func NewIndex(entries []Entry) *Index {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Index{entries: cp}
}

// Entries returns a copy of the indexed entries in display order.
func (ix *Index) Entries() []Entry {
	cp := make([]Entry, len(ix.entries))
	copy(cp, ix.entries)
	return cp
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

// Search ranks the index against query; topK <= 0 means no limit.
func (ix *Index) Search(query string, topK int) []SearchResult {
	results := Rank(ix.entries, query)
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

// Lookup finds an entry by its Key.
func (ix *Index) Lookup(key string) (Entry, bool) {
	for _, e := range ix.entries {
		if e.Key() == key {
			return e, true
		}
	}
	return Entry{}, false
}
