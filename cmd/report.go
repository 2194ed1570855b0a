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
)

const (
	defaultReportMaxDepthM  = 3.0
	defaultReportMinBorings = 3
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Analytical reports over correlated data",
}

// -- report distress --

var reportDistressCmd = &cobra.Command{
	Use:   "distress",
	Short: "Summarize distress patterns against shallow soil conditions",
	Long: "Aggregates correlated observation/boring pairs by distress type and severity, " +
		"averaging shallow SPT N-values to characterize the soil under each pattern.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("db"); err != nil {
			return err
		}

		maxDepth, _ := cmd.Flags().GetFloat64("max-depth")
		minBorings, _ := cmd.Flags().GetInt("min-borings")

		pool, err := gmsPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		patterns, err := geotech.DistressPatterns(ctx, pool, maxDepth, minBorings)
		if err != nil {
			return eris.Wrap(err, "report distress")
		}

		formatDistressPatterns(os.Stdout, patterns)
		return nil
	},
}

func init() {
	reportDistressCmd.Flags().Float64("max-depth", defaultReportMaxDepthM, "max SPT depth in meters counted as shallow")
	reportDistressCmd.Flags().Int("min-borings", defaultReportMinBorings, "min distinct borings for a pattern to be reported")

	reportCmd.AddCommand(reportDistressCmd)
	rootCmd.AddCommand(reportCmd)
}

// formatDistressPatterns writes a tabular distress report to w.
func formatDistressPatterns(out io.Writer, patterns []geotech.DistressPattern) {
	if len(patterns) == 0 {
		_, _ = fmt.Fprintln(out, "No correlated distress patterns found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DISTRESS\tSEVERITY\tOBS\tBORINGS\tAVG_RUT_MM\tAVG_DIST_M\tAVG_SCORE\tAVG_N\tN_RANGE\tSOIL")
	_, _ = fmt.Fprintln(w, "--------\t--------\t---\t-------\t----------\t----------\t---------\t-----\t-------\t----")

	for _, p := range patterns {
		rut := "-"
		if p.AvgRutDepthMM != nil {
			rut = fmt.Sprintf("%.1f", *p.AvgRutDepthMM)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%.1f\t%.2f\t%.1f\t%d-%d\t%s\n",
			p.DistressType,
			p.Severity,
			p.ObservationCount,
			p.BoringCount,
			rut,
			p.AvgDistanceM,
			p.AvgScore,
			p.AvgShallowN,
			p.MinShallowN,
			p.MaxShallowN,
			p.SoilCondition,
		)
	}
	_ = w.Flush()
}
