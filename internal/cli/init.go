package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the memov store in the project directory",
	Long: `Creates .mem/memov.git and an empty ref catalog, writes a starter
.memignore, and tracks it as the first commit. A no-op if the store already
exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.EnsureInitialized(); err != nil {
			return err
		}
		drainAndReport(r)
		fmt.Printf("initialized memov store in %s/.mem\n", projectDir)
		return nil
	},
}
