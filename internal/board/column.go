package board

import "github.com/joescharf/board/internal/models"

// DragEffectMove is the only drag effect a card declares.
const DragEffectMove = "move"

// Column is one status bucket of the board.
type Column struct {
	Title     string
	Status    models.IssueStatus
	Issues    []*models.Issue
	Count     int
	Deletable bool // cards offer a delete action
}

// Group splits visible issues into the Open, In Progress and Done columns.
func Group(visible []*models.Issue) []Column {
	cols := make([]Column, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		col := Column{
			Title:     string(st),
			Status:    st,
			Issues:    []*models.Issue{},
			Deletable: st == models.IssueStatusDone,
		}
		for _, i := range visible {
			if i.Status == st {
				col.Issues = append(col.Issues, i)
			}
		}
		col.Count = len(col.Issues)
		cols = append(cols, col)
	}
	return cols
}
