package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/pkg/jobstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect job records",
	Long: `Inspect the shared job table.

Output is designed to be script-friendly:

- stable integer job ids
- predictable on-disk working directories
- optional JSON output for machine parsing`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job records",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show one job record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsListCmd.Flags().StringSlice("status", nil, "Only show jobs in these statuses")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")
	statuses, _ := cmd.Flags().GetStringSlice("status")

	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var recs []jobstore.Record
	if len(statuses) > 0 {
		recs, err = store.ListByStatus(ctx, statuses...)
	} else {
		recs, err = store.List(ctx)
	}
	if err != nil {
		return err
	}

	if len(recs) == 0 && !jsonOutput {
		_, _ = fmt.Fprintln(os.Stdout, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "ID\tPROJECT\tNAME\tTYPE\tSTATUS\tMODE\tQUEUE ID\tSTARTED\tSTOPPED")
	for _, rec := range recs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.Project,
			rec.Name,
			rec.JobType,
			rec.Status,
			rec.RunMode,
			orDash(rec.QueueID),
			formatOptionalTime(rec.TimeStart),
			formatOptionalTime(rec.TimeStop),
		)
	}
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	id, err := parseJobID(args[0])
	if err != nil {
		return err
	}

	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	_, _ = fmt.Fprintf(os.Stdout, "id=%d\n", rec.ID)
	_, _ = fmt.Fprintf(os.Stdout, "project=%s\n", rec.Project)
	_, _ = fmt.Fprintf(os.Stdout, "name=%s\n", rec.Name)
	_, _ = fmt.Fprintf(os.Stdout, "type=%s\n", rec.JobType)
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", rec.Status)
	_, _ = fmt.Fprintf(os.Stdout, "run_mode=%s\n", rec.RunMode)
	if rec.QueueID != "" {
		_, _ = fmt.Fprintf(os.Stdout, "queue_id=%s\n", rec.QueueID)
	}
	if rec.ParentID != 0 {
		_, _ = fmt.Fprintf(os.Stdout, "parent_id=%d\n", rec.ParentID)
	}
	if rec.MasterID != 0 {
		_, _ = fmt.Fprintf(os.Stdout, "master_id=%d\n", rec.MasterID)
	}
	_, _ = fmt.Fprintf(os.Stdout, "working_dir=%s\n", rec.WorkingDir)
	if rec.TimeStart != nil {
		_, _ = fmt.Fprintf(os.Stdout, "time_start=%s\n", formatOptionalTime(rec.TimeStart))
	}
	if rec.TimeStop != nil {
		_, _ = fmt.Fprintf(os.Stdout, "time_stop=%s\n", formatOptionalTime(rec.TimeStop))
		_, _ = fmt.Fprintf(os.Stdout, "total_cpu_secs=%d\n", rec.TotalCPUSecs)
	}
	return nil
}
