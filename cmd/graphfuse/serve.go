package graphfuse

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphfuse/graphfuse/api"
	"github.com/graphfuse/graphfuse/pkg/engine"
	"github.com/graphfuse/graphfuse/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := engine.New(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}

		server := api.NewServer(cfg, eng)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			log.Info("shutting down")
			if err := server.Stop(); err != nil {
				log.Errf("shutdown: %v", err)
			}
		}()

		return server.Start()
	},
}

// newEngine is the shared construction path for the one-shot commands.
func newEngine(ctx context.Context) (*engine.Engine, error) {
	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return eng, nil
}
