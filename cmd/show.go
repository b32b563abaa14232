package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/output"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the board as three columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardShowRun(context.Background(), criteriaFlags())
	},
}

func init() {
	addFilterFlags(showCmd)
	rootCmd.AddCommand(showCmd)
}

func boardShowRun(ctx context.Context, criteria board.Criteria) error {
	criteria, err := normalizeCriteria(criteria)
	if err != nil {
		return err
	}
	c, err := newController(ctx)
	if err != nil {
		return err
	}
	c.SetCriteria(criteria)

	fmt.Fprintf(ui.Out, "Signed in as %s\n", output.Cyan(c.Identity()))
	for _, col := range c.Columns() {
		fmt.Fprintln(ui.Out)
		fmt.Fprintf(ui.Out, "%s (%d)\n", output.StatusColor(col.Title), col.Count)
		if col.Count == 0 {
			fmt.Fprintln(ui.Out, "  (empty)")
			continue
		}
		table := ui.Table([]string{"ID", "Title", "Priority", "Assignee"})
		for _, issue := range col.Issues {
			_ = table.Append([]string{
				shortID(issue.ID),
				issue.Title,
				output.PriorityColor(string(issue.Priority)),
				issue.AssignedTo,
			})
		}
		_ = table.Render()
		if col.Deletable {
			ui.VerboseLog("Delete with: board issue delete <id>")
		}
	}
	return nil
}
