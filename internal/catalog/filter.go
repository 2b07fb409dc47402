package catalog

import "strings"

// FilterResources keeps the resources in category (empty or "All" for every
// category) whose title, description or one of whose tags contains query.
// The query is trimmed and matched case-insensitively; order is preserved.
func FilterResources(resources []Resource, category, query string) []Resource {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		if category != "" && category != AllCategory && r.Category != category {
			continue
		}
		if q != "" && !r.matches(q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (r Resource) matches(q string) bool {
	if strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Description), q) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
