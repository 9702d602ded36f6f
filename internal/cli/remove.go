package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Stop tracking a file and delete it from the workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := r.Remove(args[0], promptFlag, responseFlag, byUserFlag)
		if err != nil {
			return err
		}
		drainAndReport(r)
		fmt.Printf("%s  remove  %s\n", result.CommitID, args[0])
		return nil
	},
}
