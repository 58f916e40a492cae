package graphfuse

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphfuse/graphfuse/pkg/jobs"
)

var ingestText string

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Ingest documents into the enabled stores",
	Long: `Ingest documents and block until processing finishes. With paths the
filesystem connector reads them directly; without arguments the
configured data source is enumerated. --text ingests a literal string.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		var jobID string
		switch {
		case ingestText != "":
			jobID, err = eng.IngestText(cmd.Context(), "cli-text", ingestText)
		case len(args) > 0:
			jobID, err = eng.IngestPaths(cmd.Context(), args)
		default:
			jobID, err = eng.Ingest(cmd.Context())
		}
		if err != nil {
			return err
		}

		events, err := eng.Events(cmd.Context(), jobID, 500*time.Millisecond)
		if err != nil {
			return err
		}

		var last jobs.Job
		for job := range events {
			last = job
			eta := ""
			if job.EstimatedRemain != "" {
				eta = " (" + job.EstimatedRemain + ")"
			}
			fmt.Printf("\r[%s] %3d%% %s%s", job.Status, job.Progress, job.Message, eta)
		}
		fmt.Println()

		for _, f := range last.Files {
			if f.Error != "" {
				fmt.Printf("  %s: %s\n", f.FileName, f.Error)
			}
		}
		if last.Status != jobs.StatusCompleted {
			return fmt.Errorf("ingestion ended with status %s", last.Status)
		}
		fmt.Printf("Processed %d of %d files\n", last.FilesCompleted, last.TotalFiles)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "ingest this literal text instead of files")
}
