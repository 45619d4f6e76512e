package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/pkg/lifecycle"
	"github.com/forgelab/jobmill/pkg/manifest"
)

var runCmd = &cobra.Command{
	Use:   "run <manifest>",
	Short: "Run a job described by a manifest",
	Long: `Run a job described by a manifest file (YAML or JSON).

The run mode decides how the workload executes:

  modal      synchronously, blocking until the workload finishes
  non_modal  as a detached background process
  queue      submitted to the configured batch scheduler
  manual     nothing is started; instructions are printed

If a job with the same project and name already exists, its record is
adopted and the run continues from the persisted status.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("mode", "", "Override the manifest run mode")
	runCmd.Flags().Bool("again", false, "Discard previous artifacts and run under a fresh id")
	runCmd.Flags().Bool("repair", false, "Force a stuck job back to created and run it")
	runCmd.Flags().String("wait-for", "", "Queue id the submission must wait for (queue mode)")
	runCmd.Flags().Bool("wait", false, "Block until the job reaches a terminal status")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(args[0])
	if err != nil {
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

	j, err := engine.NewJob(ctx, m)
	if err != nil {
		return err
	}
	defer j.Close()

	opts := lifecycle.RunOptions{}
	opts.RunAgain, _ = cmd.Flags().GetBool("again")
	opts.Repair, _ = cmd.Flags().GetBool("repair")
	opts.WaitForQueueID, _ = cmd.Flags().GetString("wait-for")
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		opts.Mode, err = lifecycle.ParseRunMode(mode)
		if err != nil {
			return err
		}
	}

	if err := j.Run(ctx, opts); err != nil {
		return err
	}

	if wait, _ := cmd.Flags().GetBool("wait"); wait && !j.Status().Terminal() {
		st, err := engine.WaitForJob(ctx, j.ID(), cfg.Wait.Interval, cfg.Wait.MaxIterations)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "job %d %s\n", j.ID(), st)
		return nil
	}

	_, _ = fmt.Fprintf(os.Stdout, "job %d %s\n", j.ID(), j.Status())
	return nil
}
