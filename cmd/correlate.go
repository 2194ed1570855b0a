package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/caprock-geo/gms-cli/internal/correlate"
	"github.com/caprock-geo/gms-cli/internal/geotech"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlate surface observations with geotechnical points",
	Long: "Finds the nearest target rows for every source row within the search radius and " +
		"upserts scored correlation edges. By default all surface observations are correlated " +
		"against geotechnical points.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("db"); err != nil {
			return err
		}

		pool, err := gmsPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		corr := newCorrelator(pool)
		if v, _ := cmd.Flags().GetString("source-table"); v != "" {
			corr.SourceTable = v
		}
		if v, _ := cmd.Flags().GetString("target-table"); v != "" {
			corr.TargetTable = v
		}
		if v, _ := cmd.Flags().GetFloat64("max-distance"); v > 0 {
			corr.MaxDistanceM = v
		}
		if v, _ := cmd.Flags().GetInt("k"); v > 0 {
			corr.K = v
		}
		if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
			corr.Concurrency = v
		}

		sum, err := corr.Run(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "correlate")
		}

		formatCorrelationSummary(os.Stdout, sum)
		return nil
	},
}

func init() {
	correlateCmd.Flags().String("source-table", "", "source table; default "+correlate.DefaultSourceTable)
	correlateCmd.Flags().String("target-table", "", "target table; default "+correlate.DefaultTargetTable)
	correlateCmd.Flags().Float64("max-distance", 0, "search radius in meters")
	correlateCmd.Flags().Int("k", 0, "max correlated points per source row")
	correlateCmd.Flags().Int("concurrency", 0, "concurrent source rows in flight")
	rootCmd.AddCommand(correlateCmd)
}

// newCorrelator builds a correlator on pool with the configured tunables.
func newCorrelator(pool *pgxpool.Pool) *correlate.Correlator {
	return &correlate.Correlator{
		Pool:         pool,
		Store:        geotech.NewPostgresStore(pool),
		MaxDistanceM: cfg.Correlate.MaxDistanceM,
		K:            cfg.Correlate.K,
		Concurrency:  cfg.Correlate.Concurrency,
	}
}

// formatCorrelationSummary writes the counters of a correlation run to w.
func formatCorrelationSummary(out io.Writer, sum *correlate.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Sources correlated:\t%d\n", sum.Sources)
	_, _ = fmt.Fprintf(w, "Edges written:\t%d\n", sum.Edges)
	_, _ = fmt.Fprintf(w, "Failures:\t%d\n", sum.Failures)
	_ = w.Flush()
}
