package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var amendCmd = &cobra.Command{
	Use:   "amend <id>",
	Short: "Attach a note overriding a commit's displayed prompt/response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.AmendCommit(args[0], promptFlag, responseFlag); err != nil {
			return err
		}
		fmt.Printf("%s  amended\n", args[0])
		return nil
	},
}
