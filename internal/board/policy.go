// Package board holds the kanban rules (filtering, duplicate detection and
// status transitions) and the Controller that drives them against a store.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/board/internal/models"
)

var (
	ErrMissingFields       = errors.New("fill all fields")
	ErrForbiddenTransition = errors.New("move issue to In Progress first")
	ErrNotDeletable        = errors.New("only Done issues can be deleted")
)

// Prompt texts shown when a workflow needs the user's confirmation.
const (
	ConfirmSimilar = "Similar issue exists. Continue?"
	ConfirmDelete  = "Are you sure you want to permanently delete this issue?"
)

// ValidateNew checks the required fields of a new issue.
func ValidateNew(title, description string) error {
	if title == "" || description == "" {
		return ErrMissingFields
	}
	return nil
}

// Similar reports whether two titles are likely duplicates: one contains
// the other, ignoring case.
func Similar(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FindSimilar returns the first issue whose title is Similar to title.
func FindSimilar(issues []*models.Issue, title string) *models.Issue {
	for _, i := range issues {
		if Similar(i.Title, title) {
			return i
		}
	}
	return nil
}

// ValidateTransition enforces the single workflow rule: an Open issue may
// not jump straight to Done. Every other move, backwards included, is fine.
func ValidateTransition(from, to models.IssueStatus) error {
	if from == models.IssueStatusOpen && to == models.IssueStatusDone {
		return fmt.Errorf("%w: %s -> %s", ErrForbiddenTransition, from, to)
	}
	return nil
}

// CanDelete reports whether an issue may be deleted.
func CanDelete(issue *models.Issue) error {
	if issue.Status != models.IssueStatusDone {
		return ErrNotDeletable
	}
	return nil
}
