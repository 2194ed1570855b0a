package boring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/fetch"
	"github.com/caprock-geo/gms-cli/internal/geotech"
)

// Provenance stamped onto every imported record.
const (
	dataSourceFieldInvestigation = "field_investigation"
	confidenceMedium             = "medium"
	samplerType                  = "Standard Split-Spoon"
	hammerType                   = "140 lb Hammer"
)

// RejectSink receives rows and intervals the importer skipped, keyed by the
// 1-based source line. raw is the rejoined record for later inspection.
type RejectSink interface {
	Reject(ctx context.Context, line int, kind, reason, raw string)
}

// Reject kinds recorded in the ledger.
const (
	RejectMalformedRow     = "malformed_row"
	RejectUnsupportedToken = "unsupported_token"
	RejectPersistence      = "persistence"
)

// Importer streams field-log rows into storage, one transaction per boring.
// A zero BatchSize disables progress logging; Rejects may be nil.
type Importer struct {
	Store     geotech.Store
	Rejects   RejectSink
	BatchSize int
	Encoding  string
	Sheet     string
	Mapping   *Mapping
	Fetch     fetch.Options
}

// Summary reports one import run.
type Summary struct {
	RowsSeen         int `json:"rows_seen"`
	PointsImported   int `json:"points_imported"`
	RowsSkipped      int `json:"rows_skipped"`
	IntervalsWritten int `json:"intervals_written"`
	IntervalsSkipped int `json:"intervals_skipped"`
	SubTokenDrops    int `json:"sub_token_drops"`
}

// Run imports the file at path (or an http/ftp URL) into the named project.
// A .zip path must hold exactly one log file, which is extracted first.
// Parse and persistence failures skip the affected row; the error return is
// reserved for conditions that stop the whole run, such as an unreadable
// file or missing required columns.
func (imp *Importer) Run(ctx context.Context, projectNumber, projectName, path string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "boring.import"))

	if fetch.IsRemote(path) {
		local, err := fetch.Download(ctx, path, imp.Fetch)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		log.Info("downloaded source", zap.String("url", path), zap.String("tmp", local))
		path = local
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		inner, cleanup, err := unzipSingle(path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = inner
	}
	log = log.With(zap.String("file", filepath.Base(path)))

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return imp.runXLSX(ctx, log, projectNumber, projectName, path)
	}
	return imp.runCSV(ctx, log, projectNumber, projectName, path)
}

// unzipSingle extracts a one-file archive so zipped field logs import
// directly. The cleanup removes the extraction dir.
func unzipSingle(path string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "gms-borings-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "boring: create temp dir")
	}
	inner, err := fetch.ExtractZIPSingle(path, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	return inner, func() { _ = os.RemoveAll(dir) }, nil
}

func (imp *Importer) runCSV(ctx context.Context, log *zap.Logger, projectNumber, projectName, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boring: open %s", path)
	}
	defer f.Close()

	r, err := fetch.DecodeReader(fetch.StripBOM(f), imp.Encoding)
	if err != nil {
		return nil, err
	}

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetch.StreamCSV(ctx, r, fetch.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err, ok := <-errCh:
		if ok && err != nil {
			return nil, err
		}
		// Stream ended; the header may still be sitting in its buffer.
		select {
		case header = <-headerCh:
		default:
			return nil, eris.Errorf("boring: %s has no header row", path)
		}
	}

	colIdx, project, err := imp.prepare(ctx, log, projectNumber, projectName, &header)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	line := 1
	for record := range rowCh {
		line++
		sum.RowsSeen++
		imp.importRow(ctx, log, sum, project.ID, colIdx, record, line)
	}
	if err := <-errCh; err != nil {
		return sum, err
	}

	imp.logSummary(log, sum)
	return sum, nil
}

func (imp *Importer) runXLSX(ctx context.Context, log *zap.Logger, projectNumber, projectName, path string) (*Summary, error) {
	rows, err := fetch.ReadXLSX(path, fetch.XLSXOptions{SheetName: imp.Sheet})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("boring: %s has no header row", path)
	}

	header := rows[0]
	colIdx, project, err := imp.prepare(ctx, log, projectNumber, projectName, &header)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	for i, record := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "boring: import cancelled")
		}
		sum.RowsSeen++
		imp.importRow(ctx, log, sum, project.ID, colIdx, record, i+2)
	}

	imp.logSummary(log, sum)
	return sum, nil
}

// prepare applies the column mapping, refuses to start without the required
// columns, and resolves the target project.
func (imp *Importer) prepare(ctx context.Context, log *zap.Logger, projectNumber, projectName string, header *[]string) (map[string]int, *geotech.Project, error) {
	*header = imp.Mapping.Apply(*header)

	v := Validate(*header, nil, 0)
	if !v.OK() {
		return nil, nil, eris.Errorf("boring: missing required columns: %s", strings.Join(v.MissingRequired, ", "))
	}
	if len(v.MissingRecommended) > 0 {
		log.Warn("missing recommended columns; SPT data will not be imported",
			zap.Strings("columns", v.MissingRecommended))
	}

	project, err := imp.Store.GetOrCreateProject(ctx, projectNumber, projectName)
	if err != nil {
		return nil, nil, err
	}
	return mapColumns(*header), project, nil
}

// importRow normalizes and persists a single record, folding every failure
// into the summary so the batch keeps going.
func (imp *Importer) importRow(ctx context.Context, log *zap.Logger, sum *Summary, projectID uuid.UUID, colIdx map[string]int, record []string, line int) {
	b, err := ParseRow(record, colIdx)
	if err != nil {
		sum.RowsSkipped++
		log.Warn("skipping row", zap.Int("line", line), zap.Error(err))
		imp.reject(ctx, line, RejectMalformedRow, err.Error(), record)
		return
	}

	for _, issue := range b.TokenIssues {
		if issue.Partial {
			sum.SubTokenDrops++
			log.Warn("dropped non-numeric increments",
				zap.Int("line", line), zap.String("boring", b.Point.BoringID),
				zap.Float64("depth_ft", issue.DepthFt), zap.String("token", issue.Token))
			continue
		}
		sum.IntervalsSkipped++
		log.Warn("skipping blow-count token",
			zap.Int("line", line), zap.String("boring", b.Point.BoringID),
			zap.Float64("depth_ft", issue.DepthFt), zap.String("token", issue.Token))
		imp.reject(ctx, line, RejectUnsupportedToken,
			fmt.Sprintf("token %q at %g ft", issue.Token, issue.DepthFt), record)
	}

	b.Point.ProjectID = projectID
	b.Point.DataSource = dataSourceFieldInvestigation
	b.Point.Confidence = confidenceMedium
	for i := range b.Intervals {
		r := &b.Intervals[i]
		r.SamplerType = samplerType
		r.HammerType = hammerType
		r.Notes = fmt.Sprintf("Penetration: %gmm", r.PenetrationMM)
		if r.Refusal {
			r.Notes += " (Refusal)"
		}
	}

	if _, err := imp.Store.ImportBoring(ctx, &b.Point, b.Intervals); err != nil {
		sum.RowsSkipped++
		log.Error("failed to import boring",
			zap.Int("line", line), zap.String("boring", b.Point.BoringID), zap.Error(err))
		imp.reject(ctx, line, RejectPersistence, err.Error(), record)
		return
	}

	sum.PointsImported++
	sum.IntervalsWritten += len(b.Intervals)
	if imp.BatchSize > 0 && sum.PointsImported%imp.BatchSize == 0 {
		log.Info("import progress", zap.Int("points", sum.PointsImported))
	}
}

func (imp *Importer) reject(ctx context.Context, line int, kind, reason string, record []string) {
	if imp.Rejects == nil {
		return
	}
	imp.Rejects.Reject(ctx, line, kind, reason, strings.Join(record, ","))
}

func (imp *Importer) logSummary(log *zap.Logger, sum *Summary) {
	log.Info("import complete",
		zap.Int("rows", sum.RowsSeen),
		zap.Int("points", sum.PointsImported),
		zap.Int("rows_skipped", sum.RowsSkipped),
		zap.Int("intervals", sum.IntervalsWritten),
		zap.Int("intervals_skipped", sum.IntervalsSkipped),
		zap.Int("sub_token_drops", sum.SubTokenDrops))
}

// Inspect reads the header and trial-parses a short preview so operators can
// check a file before importing it. It never touches the database.
func (imp *Importer) Inspect(ctx context.Context, path string) (*Validation, error) {
	if fetch.IsRemote(path) {
		local, err := fetch.Download(ctx, path, imp.Fetch)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		path = local
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		inner, cleanup, err := unzipSingle(path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = inner
	}

	var (
		header  []string
		preview [][]string
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := fetch.ReadXLSX(path, fetch.XLSXOptions{SheetName: imp.Sheet})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("boring: %s has no header row", path)
		}
		header = rows[0]
		preview = rows[1:]
	} else {
		var err error
		header, preview, err = imp.previewCSV(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	return Validate(imp.Mapping.Apply(header), preview, PreviewRows), nil
}

// previewCSV reads the header plus up to PreviewRows records, then cancels
// the stream.
func (imp *Importer) previewCSV(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "boring: open %s", path)
	}
	defer f.Close()

	r, err := fetch.DecodeReader(fetch.StripBOM(f), imp.Encoding)
	if err != nil {
		return nil, nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetch.StreamCSV(cctx, r, fetch.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err, ok := <-errCh:
		if ok && err != nil {
			return nil, nil, err
		}
		select {
		case header = <-headerCh:
		default:
			return nil, nil, eris.Errorf("boring: %s has no header row", path)
		}
	}

	var preview [][]string
	for record := range rowCh {
		preview = append(preview, record)
		if len(preview) >= PreviewRows {
			cancel()
			break
		}
	}
	return header, preview, nil
}
