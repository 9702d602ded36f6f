package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memovai/contextgit/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every commit reachable from any branch tip, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		rows, err := history.History(r.Store(), r.Catalog())
		if err != nil {
			return err
		}
		for _, row := range rows {
			branch := row.Branch
			if branch == "" {
				branch = "-"
			}
			fmt.Printf("%s  %-7s  %-10s  %s\n", row.CommitID, row.Operation, branch, row.Prompt)
		}
		return nil
	},
}
