package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var waitCmd = &cobra.Command{
	Use:   "wait <job_id>",
	Short: "Block until a job reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	RunE:  runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().Duration("interval", 0, "Poll interval (default from config)")
	waitCmd.Flags().Int("max-iterations", 0, "Give up after this many checks (default from config)")
}

func runWait(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = cfg.Wait.Interval
	}
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	if maxIterations <= 0 {
		maxIterations = cfg.Wait.MaxIterations
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

	st, err := engine.WaitForJob(ctx, id, interval, maxIterations)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "job %d %s\n", id, st)
	return nil
}
