package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memovai/contextgit/internal/history"
)

var jumpCmd = &cobra.Command{
	Use:   "jump <id>",
	Short: "Restore the workspace to an earlier commit and detach HEAD",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := history.Jump(r.Engine(), args[0]); err != nil {
			return err
		}
		fmt.Printf("jumped to %s (detached)\n", args[0])
		return nil
	},
}
