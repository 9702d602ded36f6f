package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchByFiles string
	searchType    string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over recorded prompts, responses, and plans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := openRecorder()
		if err != nil {
			return err
		}
		defer r.Close()

		where := map[string]string{}
		if searchType != "" {
			where["role"] = searchType
		}

		results, err := r.VectorStore().Search(args[0], 0, where)
		if err != nil {
			return err
		}
		shown := 0
		for _, res := range results {
			if searchByFiles != "" && !strings.Contains(","+res.Metadata["files"]+",", ","+searchByFiles+",") {
				continue
			}
			if searchLimit > 0 && shown >= searchLimit {
				break
			}
			fmt.Printf("%.4f  %s  %s\n", res.Distance, res.Metadata["commit_hash"], res.Text)
			shown++
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchByFiles, "by-files", "", "restrict to records whose files metadata contains this value")
	searchCmd.Flags().StringVar(&searchType, "type", "", "restrict to one role: prompt, response, or plan")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
}
