package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent import runs",
	Long:  "Shows the local ledger of import runs, newest first. Use 'runs rejects' to inspect the rows a run skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ledger, err := runlog.Open(cfg.Import.RunLog)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := ledger.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

var runsRejectsCmd = &cobra.Command{
	Use:   "rejects <run-id>",
	Short: "Show the rows a run rejected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := runlog.Open(cfg.Import.RunLog)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		rejects, err := ledger.ListRejects(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs rejects")
		}

		if len(rejects) == 0 {
			fmt.Fprintln(os.Stderr, "No rejects recorded for this run.")
			return nil
		}

		formatRejects(os.Stdout, rejects)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsCmd.AddCommand(runsRejectsCmd)
	rootCmd.AddCommand(runsCmd)
}

// startRun opens the run ledger and records the start of an import.
// Ledger trouble is logged and swallowed; the import proceeds without a
// ledger rather than failing on bookkeeping.
func startRun(ctx context.Context, kind, source string) (*runlog.Ledger, *runlog.Run) {
	ledger, err := runlog.Open(cfg.Import.RunLog)
	if err != nil {
		zap.L().Warn("could not open run ledger", zap.String("path", cfg.Import.RunLog), zap.Error(err))
		return nil, nil
	}
	run, err := ledger.StartRun(ctx, kind, source)
	if err != nil {
		zap.L().Warn("could not record run start", zap.Error(err))
		_ = ledger.Close()
		return nil, nil
	}
	return ledger, run
}

// finishRun closes out a run and the ledger. Safe to call when startRun
// handed back nils.
func finishRun(ctx context.Context, ledger *runlog.Ledger, run *runlog.Run, imported, skipped int, runErr error) {
	if ledger == nil || run == nil {
		return
	}
	if err := ledger.FinishRun(ctx, run.ID, imported, skipped, runErr); err != nil {
		zap.L().Warn("could not record run finish", zap.String("run", run.ID), zap.Error(err))
	}
	_ = ledger.Close()
}

// formatRuns writes a tabular list of runs to w.
func formatRuns(out io.Writer, runs []runlog.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSOURCE\tSTATUS\tSTARTED\tDURATION\tIMPORTED\tSKIPPED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t-------\t--------\t--------\t-------\t-----")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Kind,
			truncate(r.Source, 40),
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Imported,
			r.Skipped,
			truncate(r.Error, 60),
		)
	}
	_ = w.Flush()
}

// formatRejects writes a tabular list of rejected rows to w.
func formatRejects(out io.Writer, rejects []runlog.Reject) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LINE\tKIND\tREASON\tRAW")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t---")

	for _, r := range rejects {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			r.Line,
			r.Kind,
			truncate(r.Reason, 60),
			truncate(r.Raw, 80),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
