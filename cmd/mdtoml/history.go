package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"mdtoml/internal/db"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded tool executions",
	Long:  "Show recorded tool executions, newest first. With --session only that session is listed, oldest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.store == nil {
				return errors.New("audit is disabled (set audit.enabled or MDTOML_AUDIT)")
			}

			var (
				rows []db.ToolExecution
				err  error
			)
			if sessionID != "" {
				rows, err = a.store.Session(ctx, sessionID)
			} else {
				rows, err = a.store.Recent(ctx, historyLimit)
			}
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}

			return render(cmd.OutOrStdout(), outputFormat, rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, dimStyle.Render("no tool executions recorded"))
					return
				}
				for _, r := range rows {
					mark := successStyle.Render("✓")
					if !r.Success {
						mark = failStyle.Render("✗")
					}
					fmt.Fprintf(w, "%s %s %s %s %s\n", mark, dimStyle.Render(r.CreatedAt), r.ToolName, dimStyle.Render(r.Kind), dimStyle.Render(r.SessionID))
					if r.ErrorMessage != "" {
						fmt.Fprintf(w, "    %s\n", r.ErrorMessage)
					}
				}
			})
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of recent executions to show")
}
