package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools act as the user signed in with 'board login'. Configure your MCP
client with:

  {
    "mcpServers": {
      "board": { "command": "board", "args": ["mcp"] }
    }
  }

Available tools: board_list_issues, board_create_issue, board_move_issue,
board_delete_issue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	client, err := getClient(ctx)
	if err != nil {
		return err
	}
	user, err := client.RequireUser()
	if err != nil {
		return fmt.Errorf("%w: run 'board login' before starting the MCP server", err)
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	return mcp.NewServer(s, user.Email, buildVersion).ServeStdio(ctx)
}
