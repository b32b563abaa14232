package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
)

// Server exposes the board as MCP tools, acting as a single user.
type Server struct {
	store   board.IssueStore
	actor   string
	version string
}

// NewServer creates the MCP server wrapper. actor is the email recorded as
// creator and assignee of new issues.
func NewServer(s board.IssueStore, actor, version string) *Server {
	return &Server{store: s, actor: actor, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("board", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.moveIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// toolPrompter answers confirmations from a tool argument and keeps the
// last alert for the error result.
type toolPrompter struct {
	confirm bool
	alert   string
}

func (p *toolPrompter) Alert(msg string)      { p.alert = msg }
func (p *toolPrompter) Confirm(_ string) bool { return p.confirm }

func (s *Server) controller(ctx context.Context, confirm bool) (*board.Controller, *toolPrompter, error) {
	p := &toolPrompter{confirm: confirm}
	c := board.NewController(s.store, p, s.actor)
	if err := c.Load(ctx); err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

type issueOut struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedBy   string `json:"created_by"`
	AssignedTo  string `json:"assigned_to"`
	CreatedAt   string `json:"created_at"`
}

func toIssueOut(i *models.Issue) issueOut {
	return issueOut{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Priority:    string(i.Priority),
		Status:      string(i.Status),
		CreatedBy:   i.CreatedBy,
		AssignedTo:  i.AssignedTo,
		CreatedAt:   i.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// findIssue resolves an ID or unique ID prefix against the loaded list.
func findIssue(c *board.Controller, id string) (*models.Issue, error) {
	var match *models.Issue
	for _, i := range c.Issues() {
		if i.ID == id {
			return i, nil
		}
		if strings.HasPrefix(i.ID, strings.ToUpper(id)) {
			if match != nil {
				return nil, fmt.Errorf("issue ID prefix %q is ambiguous", id)
			}
			match = i
		}
	}
	if match == nil {
		return nil, fmt.Errorf("issue not found: %s", id)
	}
	return match, nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// board_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_list_issues",
		mcp.WithDescription("List board issues, newest first. Filters combine: search matches title or description, priority and status match exactly. Use All or omit a filter to match everything."),
		mcp.WithString("search", mcp.Description("Case-insensitive text to find in title or description")),
		mcp.WithString("priority", mcp.Description("Low, Medium, High or All")),
		mcp.WithString("status", mcp.Description("Open, In Progress, Done or All")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, _, err := s.controller(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}
	c.SetCriteria(board.Criteria{
		Search:   request.GetString("search", ""),
		Priority: request.GetString("priority", ""),
		Status:   request.GetString("status", ""),
	})

	visible := c.Visible()
	out := make([]issueOut, len(visible))
	for i, issue := range visible {
		out[i] = toIssueOut(issue)
	}
	return jsonResult(out)
}

// board_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_create_issue",
		mcp.WithDescription("Create an Open issue assigned to the signed-in user. If a similar title already exists the call fails unless confirm is true."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Issue description")),
		mcp.WithString("priority", mcp.Description("Low (default), Medium or High")),
		mcp.WithBoolean("confirm", mcp.Description("Create even if a similar issue exists")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	priority := models.IssuePriorityLow
	if p := request.GetString("priority", ""); p != "" {
		parsed, err := models.ParseIssuePriority(p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		priority = parsed
	}

	c, prompt, err := s.controller(ctx, request.GetBool("confirm", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load issues: %v", err)), nil
	}
	c.SetDraft(board.Draft{
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
		Priority:    priority,
	})

	issue, err := c.CreateIssue(ctx)
	if err != nil {
		return mcp.NewToolResultError(prompt.alert), nil
	}
	if issue == nil {
		return mcp.NewToolResultError(board.ConfirmSimilar + " Pass confirm=true to create it anyway."), nil
	}
	return jsonResult(toIssueOut(issue))
}

// board_move_issue
func (s *Server) moveIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_move_issue",
		mcp.WithDescription("Move an issue to another column. Open issues must pass through In Progress before Done."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID or unique prefix")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Open, In Progress or Done")),
	)
	return tool, s.handleMoveIssue
}

func (s *Server) handleMoveIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	rawStatus, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status, err := models.ParseIssueStatus(rawStatus)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, prompt, err := s.controller(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load issues: %v", err)), nil
	}
	issue, err := findIssue(c, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.StartDrag(issue)
	if err := c.Drop(ctx, status); err != nil {
		return mcp.NewToolResultError(prompt.alert), nil
	}
	moved, err := findIssue(c, issue.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toIssueOut(moved))
}

// board_delete_issue
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_delete_issue",
		mcp.WithDescription("Permanently delete a Done issue. Requires confirm=true."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID or unique prefix")),
		mcp.WithBoolean("confirm", mcp.Description("Confirm the permanent deletion")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	c, prompt, err := s.controller(ctx, request.GetBool("confirm", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load issues: %v", err)), nil
	}
	issue, err := findIssue(c, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	deleted, err := c.DeleteIssue(ctx, issue)
	if err != nil {
		return mcp.NewToolResultError(prompt.alert), nil
	}
	if !deleted {
		return mcp.NewToolResultError(board.ConfirmDelete + " Pass confirm=true to delete."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted issue %s: %s", issue.ID, issue.Title)), nil
}
