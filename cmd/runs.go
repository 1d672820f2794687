package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect harvest and merge run history",
	Long:  "Commands for listing, viewing, and summarizing ledger runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		job, _ := cmd.Flags().GetString("job")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := ledger.New(pool).List(ctx, ledger.Filter{
			Job:    job,
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		run, err := ledger.New(pool).Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-job aggregates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		stats, err := ledger.New(pool).Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		if len(stats) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("job", "", "filter by job (perenual, permapeople, merge)")
	runsListCmd.Flags().String("status", "", "filter by status (running, completed, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tJOB\tSTATUS\tREASON\tNEW\tUPDATED\tGAP\tERRORS\tPAGE\tTRIGGER\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t------\t---\t-------\t---\t------\t----\t-------\t-------\t--------")

	for _, r := range runs {
		reason := ""
		if r.FailReason != nil {
			reason = *r.FailReason
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Job,
			r.Status,
			reason,
			r.NewRecords,
			r.Updated,
			r.GapFilled,
			r.Errors,
			formatPage(r),
			r.TriggeredBy,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Duration().Round(time.Second).String(),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes per-job aggregates to w.
func formatRunStats(out io.Writer, stats []ledger.JobStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "JOB\tTOTAL\tCOMPLETED\tFAILED\tRUNNING\tNEW\tUPDATED\tLAST RUN")
	_, _ = fmt.Fprintln(w, "---\t-----\t---------\t------\t-------\t---\t-------\t--------")

	for _, s := range stats {
		last := ""
		if s.LastRun != nil {
			last = s.LastRun.Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Job, s.Total, s.Completed, s.Failed, s.Running, s.NewRecords, s.Updated, last)
	}
	_ = w.Flush()
}

// formatPage renders the pagination checkpoint, e.g. "12/40" for a harvest
// mid-catalog, or "" for jobs that never paged.
func formatPage(r model.Run) string {
	if r.TotalPages != nil {
		return fmt.Sprintf("%d/%d", r.CurrentPage, *r.TotalPages)
	}
	if r.CurrentPage > 0 {
		return strconv.Itoa(r.CurrentPage)
	}
	return ""
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
