package graphfuse

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		results, err := eng.Search(cmd.Context(), strings.Join(args, " "), searchTopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for _, r := range results {
			fmt.Printf("%2d. [%.4f] %s\n    %s\n", r.Rank, r.Score, r.FileName, r.Content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of results")
}
