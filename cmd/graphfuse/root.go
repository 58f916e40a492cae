// Package graphfuse holds the CLI commands.
package graphfuse

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/log"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	version = "dev"
)

var RootCmd = &cobra.Command{
	Use:   "graphfuse",
	Short: "GraphFuse - hybrid document retrieval engine",
	Long: `GraphFuse ingests documents into up to three retrieval modalities
(dense vectors, BM25 full-text and an LLM-extracted knowledge graph)
and answers queries by fusing their rankings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			log.SetDebug(true)
		}
		return nil
	},
}

// GetRootCmd returns the root command for main and tests.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
	RootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("graphfuse version %s\n", version)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default: ./graphfuse.toml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging output")

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(ingestCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(queryCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(resetCmd)
}
