package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/llm"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

var (
	issueTitle    string
	issueDesc     string
	issuePriority string
	issueSuggest  bool
	issueYes      bool
	filterSearch  string
	filterPrio    string
	filterStatus  string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage board issues",
	Long:  "Add, list, move and delete issues on the board.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(context.Background(), criteriaFlags())
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new issue",
	Long: `Add a new Open issue assigned to you. If an issue with a similar title
already exists you are asked to confirm (skip with --yes).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(context.Background(), cmd.Flags().Changed("priority"))
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(context.Background(), criteriaFlags())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(context.Background(), args[0])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <issue-id> <status>",
	Short: "Move an issue to Open, In Progress or Done",
	Long: `Move an issue to another column. An Open issue must be moved to
In Progress before it can be moved to Done.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(context.Background(), args[0], args[1])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Permanently delete a Done issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(context.Background(), args[0])
	},
}

// addFilterFlags registers --search, --priority and --status on c.
func addFilterFlags(c *cobra.Command) {
	c.Flags().StringVar(&filterSearch, "search", "", "Only issues whose title or description contains this text")
	c.Flags().StringVar(&filterPrio, "priority", "All", "Filter by priority: All, Low, Medium, High")
	c.Flags().StringVar(&filterStatus, "status", "All", "Filter by status: All, Open, In Progress, Done")
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "Issue description (required)")
	issueAddCmd.Flags().StringVar(&issuePriority, "priority", "Low", "Priority: Low, Medium, High")
	issueAddCmd.Flags().BoolVar(&issueSuggest, "suggest-priority", false, "Ask the LLM to pick the priority")
	issueAddCmd.Flags().BoolVarP(&issueYes, "yes", "y", false, "Create even if a similar issue exists")

	issueDeleteCmd.Flags().BoolVarP(&issueYes, "yes", "y", false, "Skip the confirmation prompt")

	addFilterFlags(issueListCmd)

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueMoveCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

func criteriaFlags() board.Criteria {
	return board.Criteria{Search: filterSearch, Priority: filterPrio, Status: filterStatus}
}

// normalizeCriteria maps user spellings (done, in_progress, high) to the
// stored values so the exact-match filters behave.
func normalizeCriteria(c board.Criteria) (board.Criteria, error) {
	if !models.IsAll(c.Priority) {
		p, err := models.ParseIssuePriority(c.Priority)
		if err != nil {
			return c, err
		}
		c.Priority = string(p)
	}
	if !models.IsAll(c.Status) {
		s, err := models.ParseIssueStatus(c.Status)
		if err != nil {
			return c, err
		}
		c.Status = string(s)
	}
	return c, nil
}

func issueAddRun(ctx context.Context, priorityChanged bool) error {
	priority, err := models.ParseIssuePriority(issuePriority)
	if err != nil {
		return err
	}

	c, err := newController(ctx)
	if err != nil {
		return err
	}

	if issueSuggest && !priorityChanged {
		priority = suggestPriority(ctx, c, priority)
	}

	if dryRun {
		ui.DryRunMsg("Would add issue: %s [%s] assigned to %s", issueTitle, priority, c.Identity())
		return nil
	}

	ui.AssumeYes = issueYes
	c.OpenModal()
	c.SetDraft(board.Draft{Title: issueTitle, Description: issueDesc, Priority: priority})
	issue, err := c.CreateIssue(ctx)
	if err != nil {
		return err
	}
	if issue == nil {
		ui.Info("Cancelled.")
		return nil
	}

	ui.Success("Created issue %s: %s [%s]", output.Cyan(shortID(issue.ID)), issue.Title, output.PriorityColor(string(issue.Priority)))
	return nil
}

// suggestPriority asks the LLM for a priority. Any failure keeps fallback.
func suggestPriority(ctx context.Context, c *board.Controller, fallback models.IssuePriority) models.IssuePriority {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		ui.Warning("--suggest-priority needs anthropic.api_key; using %s", fallback)
		return fallback
	}

	var open []string
	for _, i := range c.Issues() {
		if i.Status != models.IssueStatusDone {
			open = append(open, i.Title)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client := llm.NewClient(apiKey, viper.GetString("anthropic.model"))
	s, err := client.SuggestPriority(ctx, issueTitle, issueDesc, open)
	if err != nil {
		ui.Warning("Priority suggestion failed: %v; using %s", err, fallback)
		return fallback
	}
	ui.Info("Suggested priority %s: %s", output.PriorityColor(string(s.Priority)), s.Reason)
	return s.Priority
}

func issueListRun(ctx context.Context, criteria board.Criteria) error {
	criteria, err := normalizeCriteria(criteria)
	if err != nil {
		return err
	}
	c, err := newController(ctx)
	if err != nil {
		return err
	}
	c.SetCriteria(criteria)

	issues := c.Visible()
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Status", "Priority", "Assignee", "Created"})
	for _, issue := range issues {
		_ = table.Append([]string{
			shortID(issue.ID),
			issue.Title,
			output.StatusColor(string(issue.Status)),
			output.PriorityColor(string(issue.Priority)),
			issue.AssignedTo,
			issue.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}

func issueShowRun(ctx context.Context, id string) error {
	if _, err := newController(ctx); err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(issue.ID)), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(issue.Priority)))
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", issue.Description)
	fmt.Fprintf(ui.Out, "  Created by: %s\n", issue.CreatedBy)
	fmt.Fprintf(ui.Out, "  Assignee:   %s\n", issue.AssignedTo)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", issue.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", issue.ID)
	return nil
}

func issueMoveRun(ctx context.Context, id, rawStatus string) error {
	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return err
	}
	c, err := newController(ctx)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		if err := board.ValidateTransition(issue.Status, status); err != nil {
			return err
		}
		ui.DryRunMsg("Would move %s from %s to %s", shortID(issue.ID), issue.Status, status)
		return nil
	}

	c.StartDrag(issue)
	if err := c.Drop(ctx, status); err != nil {
		return err
	}
	ui.Success("Moved %s to %s", output.Cyan(shortID(issue.ID)), output.StatusColor(string(status)))
	return nil
}

func issueDeleteRun(ctx context.Context, id string) error {
	c, err := newController(ctx)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		if err := board.CanDelete(issue); err != nil {
			return err
		}
		ui.DryRunMsg("Would delete %s: %s", shortID(issue.ID), issue.Title)
		return nil
	}

	ui.AssumeYes = issueYes
	deleted, err := c.DeleteIssue(ctx, issue)
	if err != nil {
		return err
	}
	if !deleted {
		ui.Info("Cancelled.")
		return nil
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(shortID(issue.ID)), issue.Title)
	return nil
}

// findIssue finds an issue by full ID or unique prefix.
func findIssue(ctx context.Context, s store.Store, id string) (*models.Issue, error) {
	// Try exact match first
	if issue, err := s.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
