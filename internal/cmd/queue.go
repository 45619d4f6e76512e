package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/internal/observability"
	"github.com/forgelab/jobmill/pkg/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Interact with the external batch scheduler",
}

var queueReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair job records the scheduler no longer lists",
	Long: `Scan all records persisted as submitted or running in queue mode and
check each against the scheduler. Records whose queue id is no longer
listed are marked aborted. Run this after scheduler crashes or node
failures to clear stuck records.`,
	RunE: runQueueReconcile,
}

var queueDeleteCmd = &cobra.Command{
	Use:   "delete <queue_id>",
	Short: "Remove a job from the scheduler queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueDelete,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueReconcileCmd)
	queueCmd.AddCommand(queueDeleteCmd)
}

func loadQueueAdapter() (*queue.Adapter, error) {
	if cfg.QueueProfile == "" {
		return nil, fmt.Errorf("no queue profile configured (set --queue-profile or JOBMILL_QUEUE_PROFILE)")
	}
	profile, err := queue.LoadProfile(cfg.QueueProfile)
	if err != nil {
		return nil, err
	}
	return queue.NewAdapter(profile, observability.CLILogger), nil
}

func runQueueReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if _, err := loadQueueAdapter(); err != nil {
		return err
	}

	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	engine, err := buildEngine(store)
	if err != nil {
		return err
	}

	repaired, err := engine.ReconcileQueuedJobs(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "%d record(s) repaired\n", repaired)
	return nil
}

func runQueueDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	adapter, err := loadQueueAdapter()
	if err != nil {
		return err
	}
	if err := adapter.Delete(ctx, args[0]); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "queue job %s deleted\n", args[0])
	return nil
}
