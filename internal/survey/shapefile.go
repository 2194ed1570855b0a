package survey

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/fetch"
)

func (imp *Importer) runSHP(ctx context.Context, log *zap.Logger, path string) (*Summary, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "gms-survey-*")
		if err != nil {
			return nil, eris.Wrap(err, "survey: create temp dir")
		}
		defer os.RemoveAll(dir)

		if _, err := fetch.ExtractZIP(path, dir); err != nil {
			return nil, err
		}
		shpPath, err := fetch.FindByExt(dir, ".shp")
		if err != nil {
			return nil, err
		}
		if shpPath == "" {
			return nil, eris.Errorf("survey: no .shp entry in %s", path)
		}
		path = shpPath
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map. DBF names are fixed-width and
	// NUL-padded.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	sum := &Summary{}
	ordinal := 0
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "survey: import cancelled")
		}
		ordinal++
		sum.RecordsSeen++

		_, shape := reader.Shape()
		raw := rawAttributes(reader, len(fields))

		rec, err := shapeRecord(reader, fieldIdx, shape)
		if err != nil {
			sum.Skipped++
			log.Warn("skipping record", zap.Int("record", ordinal), zap.Error(err))
			imp.reject(ctx, ordinal, RejectMalformedRecord, err.Error(), raw)
			continue
		}
		imp.importRecord(ctx, log, sum, rec, ordinal, raw)
	}

	imp.logSummary(log, sum)
	return sum, nil
}

// shapeRecord maps one shapefile record onto the common survey shape. The
// segment runs from a polyline's first vertex to its last; a point becomes
// a degenerate segment.
func shapeRecord(reader *shp.Reader, fieldIdx map[string]int, shape shp.Shape) (*Record, error) {
	startLon, startLat, endLon, endLat, err := segmentEndpoints(shape)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		SurveyID:     attr(reader, fieldIdx, "survey_id"),
		RouteID:      attr(reader, fieldIdx, "route_id"),
		StartLat:     startLat,
		StartLon:     startLon,
		EndLat:       endLat,
		EndLon:       endLon,
		DistressType: attr(reader, fieldIdx, "distress", "distress_t"),
		Severity:     attr(reader, fieldIdx, "severity"),
	}

	if rec.RutDepthMM, err = attrFloat(reader, fieldIdx, "rut_mm"); err != nil {
		return nil, err
	}
	if rec.IRIValue, err = attrFloat(reader, fieldIdx, "iri"); err != nil {
		return nil, err
	}
	return rec, nil
}

func segmentEndpoints(shape shp.Shape) (startLon, startLat, endLon, endLat float64, err error) {
	switch s := shape.(type) {
	case *shp.Point:
		return s.X, s.Y, s.X, s.Y, nil
	case *shp.PolyLine:
		if len(s.Points) == 0 {
			return 0, 0, 0, 0, eris.New("survey: polyline has no vertices")
		}
		first := s.Points[0]
		last := s.Points[len(s.Points)-1]
		return first.X, first.Y, last.X, last.Y, nil
	default:
		return 0, 0, 0, 0, eris.Errorf("survey: unsupported shape type %T", shape)
	}
}

// attr returns the first non-blank value among the named DBF fields,
// matched case-insensitively.
func attr(reader *shp.Reader, fieldIdx map[string]int, names ...string) string {
	for _, name := range names {
		idx, ok := fieldIdx[name]
		if !ok {
			continue
		}
		v := strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		if v != "" {
			return v
		}
	}
	return ""
}

func attrFloat(reader *shp.Reader, fieldIdx map[string]int, name string) (*float64, error) {
	return parseOptFloat(name, attr(reader, fieldIdx, name))
}

// parseOptFloat parses an optional numeric attribute; blank means absent.
func parseOptFloat(name, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: invalid %s %q", name, v)
	}
	return &f, nil
}

func rawAttributes(reader *shp.Reader, n int) string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}
	return strings.Join(vals, ",")
}
