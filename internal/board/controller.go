package board

import (
	"context"
	"errors"

	"github.com/joescharf/board/internal/models"
)

// IssueStore is the document store the controller calls through to.
type IssueStore interface {
	ListIssues(ctx context.Context) ([]*models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	SetIssueStatus(ctx context.Context, id string, status models.IssueStatus) error
	DeleteIssue(ctx context.Context, id string) error
}

// Prompter shows blocking messages and yes/no questions to the user.
type Prompter interface {
	Alert(msg string)
	Confirm(msg string) bool
}

// Draft holds the create-issue form fields.
type Draft struct {
	Title       string
	Description string
	Priority    models.IssuePriority
}

func emptyDraft() Draft {
	return Draft{Priority: models.IssuePriorityLow}
}

// Controller owns one user's view of the board: the issue list, the
// search/filter criteria, the create-issue modal and the drag state.
//
// Every mutation is followed by a full reload from the store. Two mutations
// issued back to back can therefore race, with the later response
// overwriting the list. A Controller is not safe for concurrent use.
type Controller struct {
	store    IssueStore
	prompt   Prompter
	identity string

	issues    []*models.Issue
	criteria  Criteria
	dragged   *models.Issue
	modalOpen bool
	draft     Draft
}

// NewController creates a controller acting as identity (an email).
func NewController(s IssueStore, p Prompter, identity string) *Controller {
	return &Controller{
		store:    s,
		prompt:   p,
		identity: identity,
		draft:    emptyDraft(),
	}
}

// Identity returns the acting user's email.
func (c *Controller) Identity() string { return c.identity }

// Load fetches the full issue list.
func (c *Controller) Load(ctx context.Context) error {
	issues, err := c.store.ListIssues(ctx)
	if err != nil {
		return c.report(err)
	}
	c.issues = issues
	return nil
}

// Issues returns the unfiltered list from the last load.
func (c *Controller) Issues() []*models.Issue { return c.issues }

func (c *Controller) SetSearch(q string) { c.criteria.Search = q }
func (c *Controller) SetPriorityFilter(p string) { c.criteria.Priority = p }
func (c *Controller) SetStatusFilter(s string) { c.criteria.Status = s }
func (c *Controller) SetCriteria(cr Criteria) { c.criteria = cr }
func (c *Controller) Criteria() Criteria { return c.criteria }
func (c *Controller) Visible() []*models.Issue { return Filter(c.issues, c.criteria) }
func (c *Controller) Columns() []Column { return Group(c.Visible()) }
func (c *Controller) Dragged() *models.Issue { return c.dragged }
func (c *Controller) ModalOpen() bool { return c.modalOpen }
func (c *Controller) Draft() Draft { return c.draft }
func (c *Controller) SetDraft(d Draft) { c.draft = d }
func (c *Controller) OpenModal() { c.modalOpen = true }
func (c *Controller) CloseModal() { c.modalOpen = false }

// CreateIssue submits the current draft. It returns (nil, nil) when the
// user declines the similar-title confirmation.
func (c *Controller) CreateIssue(ctx context.Context) (*models.Issue, error) {
	d := c.draft
	if err := ValidateNew(d.Title, d.Description); err != nil {
		return nil, c.report(err)
	}

	if FindSimilar(c.issues, d.Title) != nil && !c.prompt.Confirm(ConfirmSimilar) {
		return nil, nil
	}

	priority := d.Priority
	if priority == "" {
		priority = models.IssuePriorityLow
	}
	issue := &models.Issue{
		Title:       d.Title,
		Description: d.Description,
		Priority:    priority,
		Status:      models.IssueStatusOpen,
		CreatedBy:   c.identity,
		AssignedTo:  c.identity,
	}
	if err := c.store.CreateIssue(ctx, issue); err != nil {
		return nil, c.report(err)
	}

	c.draft = emptyDraft()
	c.modalOpen = false
	return issue, c.Load(ctx)
}

// StartDrag records the card being dragged and returns its drag effect.
func (c *Controller) StartDrag(issue *models.Issue) string {
	c.dragged = issue
	return DragEffectMove
}

// Drop moves the dragged card to the column with the given status.
func (c *Controller) Drop(ctx context.Context, status models.IssueStatus) error {
	return c.MoveIssue(ctx, c.dragged, status)
}

// MoveIssue changes an issue's status. A nil issue is a no-op.
func (c *Controller) MoveIssue(ctx context.Context, issue *models.Issue, status models.IssueStatus) error {
	if issue == nil {
		return nil
	}
	if err := ValidateTransition(issue.Status, status); err != nil {
		return c.report(err)
	}
	if err := c.store.SetIssueStatus(ctx, issue.ID, status); err != nil {
		return c.report(err)
	}
	c.dragged = nil
	return c.Load(ctx)
}

// DeleteIssue permanently removes a Done issue after confirmation. It
// returns false when the user declines.
func (c *Controller) DeleteIssue(ctx context.Context, issue *models.Issue) (bool, error) {
	if err := CanDelete(issue); err != nil {
		return false, c.report(err)
	}
	if !c.prompt.Confirm(ConfirmDelete) {
		return false, nil
	}
	if err := c.store.DeleteIssue(ctx, issue.ID); err != nil {
		return false, c.report(err)
	}
	return true, c.Load(ctx)
}

// report alerts the user and marks err as already shown.
func (c *Controller) report(err error) error {
	c.prompt.Alert(Message(err))
	return MarkReported(err)
}

// Message returns the text shown to the user for err. Rule violations get
// their fixed wording; anything else is passed through verbatim.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Fill all fields"
	case errors.Is(err, ErrForbiddenTransition):
		return "Move issue to In Progress first"
	case errors.Is(err, ErrNotDeletable):
		return "Only Done issues can be deleted"
	}
	return err.Error()
}

type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// MarkReported wraps an error that has already been shown to the user.
func MarkReported(err error) error {
	if err == nil || IsReported(err) {
		return err
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was already shown to the user via Alert.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
