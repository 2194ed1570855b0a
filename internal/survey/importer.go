package survey

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/fetch"
	"github.com/caprock-geo/gms-cli/internal/geotech"
)

// Input formats. Blank detects from the file extension.
const (
	FormatJSON = "json"
	FormatSHP  = "shp"
)

// RejectSink receives records the importer skipped, keyed by the 1-based
// record ordinal. raw is the original record for later inspection.
type RejectSink interface {
	Reject(ctx context.Context, line int, kind, reason, raw string)
}

// Reject kinds recorded in the ledger.
const (
	RejectMalformedRecord = "malformed_record"
	RejectPersistence     = "persistence"
)

// Importer streams survey observations into storage, one insert per record.
// Rejects may be nil.
type Importer struct {
	Store   geotech.Store
	Rejects RejectSink
	Source  string
	Format  string
	Fetch   fetch.Options
}

// Summary reports one import run. InsertedIDs feeds the correlation pass
// that usually follows an import.
type Summary struct {
	RecordsSeen int         `json:"records_seen"`
	Imported    int         `json:"imported"`
	Skipped     int         `json:"skipped"`
	InsertedIDs []uuid.UUID `json:"-"`
}

// Run imports the file at path (or an http/ftp URL). Validation and
// persistence failures skip the affected record; the error return is
// reserved for conditions that stop the whole run, such as an unreadable
// file or malformed JSON framing.
func (imp *Importer) Run(ctx context.Context, path string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "survey.import"))

	if fetch.IsRemote(path) {
		local, err := fetch.Download(ctx, path, imp.Fetch)
		if err != nil {
			return nil, err
		}
		defer os.Remove(local)
		log.Info("downloaded source", zap.String("url", path), zap.String("tmp", local))
		path = local
	}
	log = log.With(zap.String("file", filepath.Base(path)))

	format, err := imp.resolveFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return imp.runJSON(ctx, log, path)
	case FormatSHP:
		return imp.runSHP(ctx, log, path)
	default:
		return nil, eris.Errorf("survey: unsupported format %q", format)
	}
}

func (imp *Importer) resolveFormat(path string) (string, error) {
	if imp.Format != "" {
		return strings.ToLower(imp.Format), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".shp", ".zip":
		return FormatSHP, nil
	default:
		return "", eris.Errorf("survey: cannot determine format of %s", path)
	}
}

func (imp *Importer) source() string {
	if imp.Source == "" {
		return DefaultSource
	}
	return imp.Source
}

// importRecord validates and persists a single record, folding every
// failure into the summary so the run keeps going.
func (imp *Importer) importRecord(ctx context.Context, log *zap.Logger, sum *Summary, rec *Record, ordinal int, raw string) {
	obs, err := rec.observation(imp.source())
	if err != nil {
		sum.Skipped++
		log.Warn("skipping record", zap.Int("record", ordinal), zap.Error(err))
		imp.reject(ctx, ordinal, RejectMalformedRecord, err.Error(), raw)
		return
	}

	id, err := imp.Store.InsertObservation(ctx, obs)
	if err != nil {
		sum.Skipped++
		log.Error("failed to insert observation",
			zap.Int("record", ordinal), zap.String("distress", obs.DistressType), zap.Error(err))
		imp.reject(ctx, ordinal, RejectPersistence, err.Error(), raw)
		return
	}

	sum.Imported++
	sum.InsertedIDs = append(sum.InsertedIDs, id)
}

func (imp *Importer) reject(ctx context.Context, line int, kind, reason, raw string) {
	if imp.Rejects == nil {
		return
	}
	imp.Rejects.Reject(ctx, line, kind, reason, raw)
}

func (imp *Importer) logSummary(log *zap.Logger, sum *Summary) {
	log.Info("import complete",
		zap.Int("records", sum.RecordsSeen),
		zap.Int("imported", sum.Imported),
		zap.Int("skipped", sum.Skipped))
}
