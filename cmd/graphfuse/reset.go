package graphfuse

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every enabled store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			fmt.Print("This deletes all indexed data. Continue? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		if err := eng.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All stores cleared.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "skip the confirmation prompt")
}
