package cmd

import (
	"github.com/spf13/cobra"
)

// resumeCmd is the re-entry point invoked by the generated run_job.sh
// wrapper. It is hidden: operators use run, repair and rerun instead.
var resumeCmd = &cobra.Command{
	Use:    "resume",
	Short:  "Execute a submitted job's workload in this process",
	Hidden: true,
	RunE:   runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().Int64("id", 0, "Job id to resume")
	_ = resumeCmd.MarkFlagRequired("id")
}

func runResume(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	id, _ := cmd.Flags().GetInt64("id")

	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	engine, err := buildEngine(store)
	if err != nil {
		return err
	}
	return engine.Resume(ctx, id)
}
