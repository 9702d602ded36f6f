// Package cli implements memov's command-line surface: a thin cobra layer
// over the recorder and history packages. Every command resolves a project
// path, opens a Recorder or Store/Catalog pair against it, and exits 1 on
// any precondition failure.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memovai/contextgit/internal/recorder"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	projectDir   string
	promptFlag   string
	responseFlag string
	byUserFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "memov",
	Short: "AI-assisted snapshot version control",
	Long: `memov records AI coding-agent interactions as content-addressed
snapshots alongside a project, separate from the host repository's own
version control, and makes the resulting history semantically searchable.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "loc", ".", "project directory")
	rootCmd.PersistentFlags().StringVarP(&promptFlag, "prompt", "p", "", "prompt text to attach to the commit")
	rootCmd.PersistentFlags().StringVarP(&responseFlag, "response", "r", "", "response text to attach to the commit")
	rootCmd.PersistentFlags().BoolVarP(&byUserFlag, "by_user", "u", true, "attribute the commit to the human user rather than the AI")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(snapCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(jumpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(amendCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("memov %s\n", Version)
	},
}

// Execute runs the root command. Callers translate a non-nil error into
// exit code 1, per the external-interfaces exit-code contract.
func Execute() error {
	return rootCmd.Execute()
}

// openRecorder wires a Recorder against the --loc project directory. It does
// not drain pending vector-store writes; write commands call drainAndReport.
func openRecorder() (*recorder.Recorder, error) {
	return recorder.New(projectDir)
}

// drainAndReport flushes the pending-writes queue and reports any embedding
// failures without treating them as fatal, matching the recorder's
// per-entry failure contract.
func drainAndReport(r *recorder.Recorder) {
	successful, failed := r.Drain()
	if failed > 0 {
		fmt.Printf("warning: %d pending vector-store writes failed (%d records written)\n", failed, successful)
	}
}
