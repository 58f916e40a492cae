package graphfuse

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		st := eng.Status(cmd.Context())
		fmt.Printf("ready:              %v\n", st.Ready)
		fmt.Printf("data source:        %s\n", st.DataSource)
		fmt.Printf("vector db:          %s\n", st.VectorDB)
		fmt.Printf("search db:          %s\n", st.SearchDB)
		fmt.Printf("graph db:           %s\n", st.GraphDB)
		fmt.Printf("llm provider:       %s\n", st.LLMProvider)
		fmt.Printf("embedding provider: %s\n", st.EmbeddingProvider)
		return nil
	},
}
