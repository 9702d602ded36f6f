package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track [paths...]",
	Short: "Start tracking one or more untracked files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := r.Track(args, promptFlag, responseFlag, byUserFlag)
		if err != nil {
			return err
		}
		drainAndReport(r)
		fmt.Printf("%s  track  %v\n", result.CommitID, result.Files)
		return nil
	},
}
