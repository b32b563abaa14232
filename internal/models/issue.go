package models

import (
	"fmt"
	"strings"
	"time"
)

// IssueStatus is the kanban column an issue sits in.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "Open"
	IssueStatusInProgress IssueStatus = "In Progress"
	IssueStatusDone       IssueStatus = "Done"
)

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "Low"
	IssuePriorityMedium IssuePriority = "Medium"
	IssuePriorityHigh   IssuePriority = "High"
)

// FilterAll matches every priority or status when used as a filter value.
const FilterAll = "All"

// Statuses lists the board columns in display order.
var Statuses = []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusDone}

// Priorities lists the priorities from lowest to highest.
var Priorities = []IssuePriority{IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh}

// Issue is a trackable unit of work on the board.
type Issue struct {
	ID          string
	Title       string
	Description string
	Priority    IssuePriority
	Status      IssueStatus
	CreatedBy   string
	AssignedTo  string
	CreatedAt   time.Time
}

// ParseIssueStatus resolves user input to a status. Matching is
// case-insensitive and accepts in_progress / in-progress spellings.
func ParseIssueStatus(s string) (IssueStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "open":
		return IssueStatusOpen, nil
	case "in progress", "inprogress":
		return IssueStatusInProgress, nil
	case "done":
		return IssueStatusDone, nil
	}
	return "", fmt.Errorf("unknown status %q (want Open, In Progress or Done)", s)
}

// ParseIssuePriority resolves user input to a priority, case-insensitively.
func ParseIssuePriority(s string) (IssuePriority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(strings.TrimSpace(s), string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown priority %q (want Low, Medium or High)", s)
}

// IsAll reports whether a filter value means "no filter".
func IsAll(v string) bool {
	return v == "" || strings.EqualFold(v, FilterAll)
}
