package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/caprock-geo/gms-cli/internal/boring"
	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/runlog"
)

var boringsCmd = &cobra.Command{
	Use:   "borings",
	Short: "Import and validate boring log files",
	Long:  "Commands for ingesting CSV and XLSX boring logs with SPT blow counts into the gms schema.",
}

// -- borings import --

var boringsImportCmd = &cobra.Command{
	Use:   "import <path|url>",
	Short: "Import a boring log file",
	Long: "Parses a CSV or XLSX boring log (optionally inside a single-file zip), normalizes " +
		"SPT blow counts, and upserts points and their test intervals keyed by (project, " +
		"boring id). Malformed rows are skipped and recorded in the run ledger.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		project, _ := cmd.Flags().GetString("project")
		projectName, _ := cmd.Flags().GetString("project-name")
		mappingPath, _ := cmd.Flags().GetString("mapping")
		encoding, _ := cmd.Flags().GetString("encoding")
		sheet, _ := cmd.Flags().GetString("sheet")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if encoding == "" {
			encoding = cfg.Import.Encoding
		}
		if batchSize == 0 {
			batchSize = cfg.Import.BatchSize
		}

		var mapping *boring.Mapping
		if mappingPath != "" {
			m, err := boring.LoadMapping(mappingPath)
			if err != nil {
				return err
			}
			mapping = m
		}

		var store geotech.Store
		if dryRun {
			if err := cfg.Validate("local"); err != nil {
				return err
			}
			store = dryRunStore{}
		} else {
			if err := cfg.Validate("db"); err != nil {
				return err
			}
			pool, err := gmsPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			store = geotech.NewPostgresStore(pool)
		}

		imp := &boring.Importer{
			Store:     store,
			BatchSize: batchSize,
			Encoding:  encoding,
			Sheet:     sheet,
			Mapping:   mapping,
			Fetch:     fetchOptions(),
		}

		// Dry runs leave no trace, not even in the local ledger.
		var (
			ledger *runlog.Ledger
			run    *runlog.Run
		)
		if !dryRun {
			ledger, run = startRun(ctx, "borings", args[0])
			if run != nil {
				imp.Rejects = &runlog.RunSink{Ledger: ledger, RunID: run.ID}
			}
		}

		sum, err := imp.Run(ctx, project, projectName, args[0])
		imported, skipped := 0, 0
		if sum != nil {
			imported, skipped = sum.PointsImported, sum.RowsSkipped
		}
		finishRun(ctx, ledger, run, imported, skipped, err)
		if err != nil {
			return eris.Wrap(err, "borings import")
		}

		if dryRun {
			fmt.Fprintln(os.Stderr, "Dry run: nothing was written.")
		}
		formatImportSummary(os.Stdout, sum)
		return nil
	},
}

// -- borings validate --

var boringsValidateCmd = &cobra.Command{
	Use:   "validate <path|url>",
	Short: "Check a boring log file without importing it",
	Long: "Reads the header and trial-parses a preview of rows, reporting missing columns " +
		"and per-row problems. Exits non-zero when required columns are absent.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("local"); err != nil {
			return err
		}

		mappingPath, _ := cmd.Flags().GetString("mapping")
		encoding, _ := cmd.Flags().GetString("encoding")
		sheet, _ := cmd.Flags().GetString("sheet")

		if encoding == "" {
			encoding = cfg.Import.Encoding
		}

		var mapping *boring.Mapping
		if mappingPath != "" {
			m, err := boring.LoadMapping(mappingPath)
			if err != nil {
				return err
			}
			mapping = m
		}

		imp := &boring.Importer{
			Encoding: encoding,
			Sheet:    sheet,
			Mapping:  mapping,
			Fetch:    fetchOptions(),
		}

		v, err := imp.Inspect(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "borings validate")
		}

		formatValidation(os.Stdout, v)
		if !v.OK() {
			return eris.Errorf("borings validate: %s is not importable", args[0])
		}
		return nil
	},
}

// -- borings sample --

var boringsSampleCmd = &cobra.Command{
	Use:   "sample <path>",
	Short: "Write a sample boring log CSV",
	Long:  "Writes a small CSV showing the expected columns and token shapes, for use as an import template.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := boring.WriteSampleCSV(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote sample boring log to %s\n", args[0])
		return nil
	},
}

func init() {
	boringsImportCmd.Flags().String("project", "", "project number to import into (required)")
	boringsImportCmd.Flags().String("project-name", "", "project name, used when the project is created")
	boringsImportCmd.Flags().String("mapping", "", "YAML column mapping file for nonstandard headers")
	boringsImportCmd.Flags().String("encoding", "", "source text encoding (e.g. latin1, shift_jis); default UTF-8")
	boringsImportCmd.Flags().String("sheet", "", "XLSX sheet name; default first sheet")
	boringsImportCmd.Flags().Int("batch-size", 0, "rows per progress log line")
	boringsImportCmd.Flags().Bool("dry-run", false, "parse and validate without writing to the database")
	_ = boringsImportCmd.MarkFlagRequired("project")

	boringsValidateCmd.Flags().String("mapping", "", "YAML column mapping file for nonstandard headers")
	boringsValidateCmd.Flags().String("encoding", "", "source text encoding (e.g. latin1, shift_jis); default UTF-8")
	boringsValidateCmd.Flags().String("sheet", "", "XLSX sheet name; default first sheet")

	boringsCmd.AddCommand(boringsImportCmd)
	boringsCmd.AddCommand(boringsValidateCmd)
	boringsCmd.AddCommand(boringsSampleCmd)
	rootCmd.AddCommand(boringsCmd)
}

// dryRunStore satisfies geotech.Store without touching any database, so an
// import can be rehearsed end to end from the file alone.
type dryRunStore struct{}

func (dryRunStore) GetOrCreateProject(_ context.Context, projectNumber, name string) (*geotech.Project, error) {
	now := time.Now().UTC()
	return &geotech.Project{
		ID:            uuid.New(),
		ProjectNumber: projectNumber,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (dryRunStore) ImportBoring(context.Context, *geotech.GeotechnicalPoint, []geotech.SPTResult) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (dryRunStore) InsertObservation(context.Context, *geotech.SurfaceObservation) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (dryRunStore) ReplaceElevationPoints(_ context.Context, _ string, pts []geotech.ElevationPoint) (int64, error) {
	return int64(len(pts)), nil
}

func (dryRunStore) ReplaceSlopeCells(_ context.Context, _ string, cells []geotech.SlopeCell) (int64, error) {
	return int64(len(cells)), nil
}

func (dryRunStore) ReplaceSubsidenceRegions(_ context.Context, _, _ string, regions []geotech.SubsidenceRegion) (int64, error) {
	return int64(len(regions)), nil
}

func (dryRunStore) UpsertCorrelationEdges(_ context.Context, edges []geotech.CorrelationEdge) (int64, error) {
	return int64(len(edges)), nil
}

// formatImportSummary writes the counters of a finished import to w.
func formatImportSummary(out io.Writer, sum *boring.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows seen:\t%d\n", sum.RowsSeen)
	_, _ = fmt.Fprintf(w, "Points imported:\t%d\n", sum.PointsImported)
	_, _ = fmt.Fprintf(w, "Rows skipped:\t%d\n", sum.RowsSkipped)
	_, _ = fmt.Fprintf(w, "Intervals written:\t%d\n", sum.IntervalsWritten)
	_, _ = fmt.Fprintf(w, "Intervals skipped:\t%d\n", sum.IntervalsSkipped)
	_, _ = fmt.Fprintf(w, "Sub-token drops:\t%d\n", sum.SubTokenDrops)
	_ = w.Flush()
}

// formatValidation writes an Inspect report to w.
func formatValidation(out io.Writer, v *boring.Validation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Columns found:\t%d\n", len(v.Columns))
	for _, col := range v.MissingRequired {
		_, _ = fmt.Fprintf(w, "Missing required:\t%s\n", col)
	}
	for _, col := range v.MissingRecommended {
		_, _ = fmt.Fprintf(w, "Missing recommended:\t%s\n", col)
	}
	_, _ = fmt.Fprintf(w, "Rows checked:\t%d\n", v.RowsChecked)
	_, _ = fmt.Fprintf(w, "Rows with issues:\t%d\n", len(v.RowIssues))
	for _, issue := range v.RowIssues {
		_, _ = fmt.Fprintf(w, "  line %d:\t%s\n", issue.Line, issue.Reason)
	}
	_ = w.Flush()
}
