package graphfuse

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryTopK   int
	showSources bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question over the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		answer, err := eng.Query(cmd.Context(), strings.Join(args, " "), queryTopK)
		if err != nil {
			return err
		}

		fmt.Println(answer.Answer)
		fmt.Printf("\n(%.2fs)\n", answer.Elapsed)

		if showSources {
			fmt.Println("\nSources:")
			for _, r := range answer.Sources {
				fmt.Printf("%2d. [%.4f] %s\n", r.Rank, r.Score, r.FileName)
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of context passages")
	queryCmd.Flags().BoolVar(&showSources, "sources", false, "list the passages behind the answer")
}
