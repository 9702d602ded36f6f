package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memovai/contextgit/internal/history"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show untracked, modified, and deleted files relative to HEAD",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		engine := r.Engine()
		diff, err := history.Status(r.Store(), engine.Matcher, engine.ProjectRoot, engine.ControlDirName, engine.HostSCMDir)
		if err != nil {
			return err
		}
		printPaths("untracked", diff.Untracked)
		printPaths("modified", diff.Modified)
		printPaths("deleted", diff.Deleted)
		return nil
	},
}

func printPaths(label string, paths []string) {
	for _, p := range paths {
		fmt.Printf("%-10s %s\n", label, p)
	}
}
