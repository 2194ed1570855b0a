package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/caprock-geo/gms-cli/internal/geotech"
	"github.com/caprock-geo/gms-cli/internal/terrain"
)

var demCmd = &cobra.Command{
	Use:   "dem",
	Short: "Derive terrain products from digital elevation models",
	Long:  "Commands for sampling elevations, deriving slope and aspect cells, and detecting subsidence from ESRI ASCII grids.",
}

// -- dem process --

var demProcessCmd = &cobra.Command{
	Use:   "process <path|url>",
	Short: "Sample elevations and derive slope cells from a DEM",
	Long: "Loads an ESRI ASCII grid (or a .zip containing one), samples elevation points, " +
		"derives slope/aspect cells with risk classes, and replaces prior rows from the same source.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("db"); err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			// Resolved here so a downloaded temp file does not become the source label.
			source = filepath.Base(args[0])
		}

		opts := terrainOptions()
		if v, _ := cmd.Flags().GetString("crs"); v != "" {
			opts.CRS = v
		}
		if v, _ := cmd.Flags().GetInt("cell-size"); v > 0 {
			opts.CellSizePx = v
		}
		if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
			opts.SlopeThresholdDeg = v
		}
		if v, _ := cmd.Flags().GetInt("stride"); v > 0 {
			opts.SampleStride = v
		}
		if v, _ := cmd.Flags().GetFloat64("pixel-size"); v > 0 {
			opts.PixelSizeM = v
		}

		pool, err := gmsPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		path, cleanup, err := localPath(ctx, args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		analyzer := terrain.NewAnalyzer(geotech.NewPostgresStore(pool), opts)
		res, err := analyzer.ProcessDEM(ctx, path, source)
		if err != nil {
			return eris.Wrap(err, "dem process")
		}

		formatProcessResult(os.Stdout, res)
		return nil
	},
}

// -- dem subsidence --

var demSubsidenceCmd = &cobra.Command{
	Use:   "subsidence <old-path|url> <new-path|url>",
	Short: "Detect subsidence between two DEM acquisitions",
	Long: "Differences two grids of the same area, flags cells that dropped past the threshold, " +
		"groups them into connected regions, and replaces prior rows for the same source pair.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("db"); err != nil {
			return err
		}

		oldSource, _ := cmd.Flags().GetString("old-source")
		if oldSource == "" {
			oldSource = filepath.Base(args[0])
		}
		newSource, _ := cmd.Flags().GetString("new-source")
		if newSource == "" {
			newSource = filepath.Base(args[1])
		}

		opts := terrainOptions()
		if v, _ := cmd.Flags().GetString("crs"); v != "" {
			opts.CRS = v
		}
		if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
			opts.SubsidenceThreshM = v
		}
		if v, _ := cmd.Flags().GetInt("stride"); v > 0 {
			opts.SubsidenceStride = v
		}
		if v, _ := cmd.Flags().GetInt("min-pixels"); v > 0 {
			opts.MinRegionPixels = v
		}
		if v, _ := cmd.Flags().GetFloat64("pixel-size"); v > 0 {
			opts.PixelSizeM = v
		}

		pool, err := gmsPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		oldPath, oldCleanup, err := localPath(ctx, args[0])
		if err != nil {
			return err
		}
		defer oldCleanup()

		newPath, newCleanup, err := localPath(ctx, args[1])
		if err != nil {
			return err
		}
		defer newCleanup()

		analyzer := terrain.NewAnalyzer(geotech.NewPostgresStore(pool), opts)
		res, err := analyzer.CompareDEMs(ctx, oldPath, newPath, oldSource, newSource)
		if err != nil {
			return eris.Wrap(err, "dem subsidence")
		}

		formatSubsidenceResult(os.Stdout, res)
		return nil
	},
}

func init() {
	demProcessCmd.Flags().String("source", "", "source label for persisted rows; default file base name")
	demProcessCmd.Flags().String("crs", "", "override the grid CRS (e.g. EPSG:26913) when the .prj sidecar is missing or wrong")
	demProcessCmd.Flags().Int("cell-size", 0, "slope cell size in pixels")
	demProcessCmd.Flags().Float64("threshold", 0, "slope threshold in degrees for keeping a cell")
	demProcessCmd.Flags().Int("stride", 0, "elevation sampling stride in pixels")
	demProcessCmd.Flags().Float64("pixel-size", 0, "pixel size in meters for slope gradients")

	demSubsidenceCmd.Flags().String("old-source", "", "source label for the older grid; default file base name")
	demSubsidenceCmd.Flags().String("new-source", "", "source label for the newer grid; default file base name")
	demSubsidenceCmd.Flags().String("crs", "", "override the grid CRS when the .prj sidecar is missing or wrong")
	demSubsidenceCmd.Flags().Float64("threshold", 0, "elevation drop in meters that flags a cell")
	demSubsidenceCmd.Flags().Int("stride", 0, "comparison stride in pixels")
	demSubsidenceCmd.Flags().Int("min-pixels", 0, "minimum flagged pixels for a region to be kept")
	demSubsidenceCmd.Flags().Float64("pixel-size", 0, "pixel size in meters for region areas")

	demCmd.AddCommand(demProcessCmd)
	demCmd.AddCommand(demSubsidenceCmd)
	rootCmd.AddCommand(demCmd)
}

// terrainOptions maps the configured terrain tunables onto analyzer options.
func terrainOptions() terrain.Options {
	opts := terrain.DefaultOptions()
	opts.SampleStride = cfg.Terrain.SampleStride
	opts.CellSizePx = cfg.Terrain.CellSize
	opts.SlopeThresholdDeg = cfg.Terrain.SlopeThreshold
	opts.PixelSizeM = cfg.Terrain.PixelSizeM
	opts.SubsidenceStride = cfg.Terrain.SubsidenceStride
	opts.SubsidenceThreshM = cfg.Terrain.SubsidenceThreshold
	return opts
}

// formatProcessResult writes the counters of a finished DEM run to w.
func formatProcessResult(out io.Writer, res *terrain.ProcessResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", res.Source)
	_, _ = fmt.Fprintf(w, "Grid:\t%dx%d\n", res.Width, res.Height)
	_, _ = fmt.Fprintf(w, "Elevation points:\t%d\n", res.ElevationPoints)
	_, _ = fmt.Fprintf(w, "Slope cells:\t%d\n", res.SlopeCells)
	_ = w.Flush()
}

// formatSubsidenceResult writes the counters of a subsidence comparison to w.
func formatSubsidenceResult(out io.Writer, res *terrain.SubsidenceResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Old source:\t%s\n", res.OldSource)
	_, _ = fmt.Fprintf(w, "New source:\t%s\n", res.NewSource)
	_, _ = fmt.Fprintf(w, "Regions:\t%d\n", res.Regions)
	_ = w.Flush()
}
