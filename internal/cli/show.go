package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memovai/contextgit/internal/history"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one commit's message and the files tracked at it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		result, err := history.Show(r.Store(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("commit  %s\n", result.CommitID)
		fmt.Printf("verb    %s\n", result.Message.Verb)
		fmt.Printf("prompt  %s\n", result.Message.Prompt)
		fmt.Printf("response %s\n", result.Message.Response)
		fmt.Printf("source  %s\n", result.Message.Source)
		fmt.Printf("files   %s\n", strings.Join(result.Files, ", "))
		return nil
	},
}
