package board

import (
	"strings"

	"github.com/joescharf/board/internal/models"
)

// Criteria is the search box plus the two dropdown filters.
// Empty or "All" filters match everything.
type Criteria struct {
	Search   string
	Priority string
	Status   string
}

// Matches reports whether issue passes all three criteria.
func (c Criteria) Matches(issue *models.Issue) bool {
	q := strings.ToLower(c.Search)
	matchSearch := strings.Contains(strings.ToLower(issue.Title), q) ||
		strings.Contains(strings.ToLower(issue.Description), q)

	matchPriority := models.IsAll(c.Priority) || string(issue.Priority) == c.Priority
	matchStatus := models.IsAll(c.Status) || string(issue.Status) == c.Status

	return matchSearch && matchPriority && matchStatus
}

// Filter returns the issues matching c, in their original order.
func Filter(issues []*models.Issue, c Criteria) []*models.Issue {
	out := make([]*models.Issue, 0, len(issues))
	for _, i := range issues {
		if c.Matches(i) {
			out = append(out, i)
		}
	}
	return out
}
