package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a tracked file, recording its current contents under the new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := r.Rename(args[0], args[1], promptFlag, responseFlag, byUserFlag)
		if err != nil {
			return err
		}
		drainAndReport(r)
		fmt.Printf("%s  rename  %s -> %s\n", result.CommitID, args[0], args[1])
		return nil
	},
}
