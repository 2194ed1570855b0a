package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/runlog"
	"github.com/caprock-geo/gms-cli/internal/survey"
)

var surveyCmd = &cobra.Command{
	Use:   "survey",
	Short: "Import pavement surface-distress surveys",
	Long:  "Commands for ingesting road-analyzer survey exports (JSON or shapefile) into the gms schema.",
}

// -- survey import --

var surveyImportCmd = &cobra.Command{
	Use:   "import <path|url>",
	Short: "Import a survey export",
	Long: "Parses a survey export, inserts surface observations, and by default correlates the " +
		"new observations against nearby geotechnical points. Malformed records are skipped " +
		"and recorded in the run ledger.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("db"); err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		format, _ := cmd.Flags().GetString("format")
		doCorrelate, _ := cmd.Flags().GetBool("correlate")
		doReport, _ := cmd.Flags().GetBool("report")

		pool, err := gmsPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		imp := &survey.Importer{
			Store:  geotech.NewPostgresStore(pool),
			Source: source,
			Format: format,
			Fetch:  fetchOptions(),
		}

		ledger, run := startRun(ctx, "survey", args[0])
		if run != nil {
			imp.Rejects = &runlog.RunSink{Ledger: ledger, RunID: run.ID}
		}

		sum, err := imp.Run(ctx, args[0])
		imported, skipped := 0, 0
		if sum != nil {
			imported, skipped = sum.Imported, sum.Skipped
		}
		finishRun(ctx, ledger, run, imported, skipped, err)
		if err != nil {
			return eris.Wrap(err, "survey import")
		}

		formatSurveySummary(os.Stdout, sum)

		if doCorrelate && len(sum.InsertedIDs) > 0 {
			corr := newCorrelator(pool)
			if v, _ := cmd.Flags().GetFloat64("max-distance"); v > 0 {
				corr.MaxDistanceM = v
			}
			if v, _ := cmd.Flags().GetInt("k"); v > 0 {
				corr.K = v
			}

			csum, err := corr.Run(ctx, sum.InsertedIDs)
			if err != nil {
				return eris.Wrap(err, "survey import")
			}
			formatCorrelationSummary(os.Stdout, csum)
		}

		if doReport {
			patterns, err := geotech.DistressPatterns(ctx, pool, defaultReportMaxDepthM, defaultReportMinBorings)
			if err != nil {
				return eris.Wrap(err, "survey import")
			}
			formatDistressPatterns(os.Stdout, patterns)
		}
		return nil
	},
}

func init() {
	surveyImportCmd.Flags().String("source", "", "data source stamp for inserted observations; default "+survey.DefaultSource)
	surveyImportCmd.Flags().String("format", "", "input format (json or shp); default inferred from the extension")
	surveyImportCmd.Flags().Bool("correlate", true, "correlate imported observations against geotechnical points")
	surveyImportCmd.Flags().Bool("report", false, "print the distress pattern report after importing")
	surveyImportCmd.Flags().Float64("max-distance", 0, "correlation search radius in meters")
	surveyImportCmd.Flags().Int("k", 0, "max correlated points per observation")

	surveyCmd.AddCommand(surveyImportCmd)
	rootCmd.AddCommand(surveyCmd)
}

// formatSurveySummary writes the counters of a finished survey import to w.
func formatSurveySummary(out io.Writer, sum *survey.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Records seen:\t%d\n", sum.RecordsSeen)
	_, _ = fmt.Fprintf(w, "Imported:\t%d\n", sum.Imported)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", sum.Skipped)
	_ = w.Flush()
}
