package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/pkg/lifecycle"
)

var repairCmd = &cobra.Command{
	Use:   "repair <job_id>",
	Short: "Force a stuck or aborted job back to created and run it",
	Long: `Force a non-finished job back to created and execute its workload
again. The record, id and working directory are kept; only the status is
rewound. Use rerun to start over from scratch instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rerunJob(cmd, args[0], lifecycle.RunOptions{Repair: true})
	},
}

var rerunCmd = &cobra.Command{
	Use:   "rerun <job_id>",
	Short: "Delete a job's artifacts and run it again under a fresh id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rerunJob(cmd, args[0], lifecycle.RunOptions{RunAgain: true})
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(rerunCmd)
}

func rerunJob(cmd *cobra.Command, arg string, opts lifecycle.RunOptions) error {
	ctx := cmd.Context()

	id, err := parseJobID(arg)
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

	j, err := engine.LoadJob(ctx, id)
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.Run(ctx, opts); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "job %d %s\n", j.ID(), j.Status())
	return nil
}
