package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapFiles []string

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Snapshot modified tracked files",
	Long: `Rehashes and commits the workspace state of every already-tracked
file. With --files, only the listed paths are rehashed; every other tracked
path inherits HEAD's blob unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := r.Snap(snapFiles, promptFlag, responseFlag, byUserFlag)
		if err != nil {
			return err
		}
		drainAndReport(r)
		if len(result.Files) == 0 {
			fmt.Printf("%s  snap  (no changes)\n", result.CommitID)
			return nil
		}
		fmt.Printf("%s  snap  %v\n", result.CommitID, result.Files)
		return nil
	},
}

func init() {
	snapCmd.Flags().StringSliceVar(&snapFiles, "files", nil, "restrict the snapshot to these paths (default: every tracked file)")
}
