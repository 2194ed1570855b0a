// Package boring normalizes drillers' field logs into geotechnical points
// with standard penetration test intervals. Each row is an independent unit
// of work: a bad row is skipped and counted, never fatal to the batch.
package boring

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/geotech"
)

// Canonical column names. Agency exports are renamed onto these by an
// optional mapping profile before validation and parsing.
const (
	ColBoringID       = "boring_id"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
	ColElevation      = "elevation"
	ColDate           = "date"
	ColTotalDepth     = "total_depth"
	ColRockDepth      = "rock_depth"
	ColWaterDepth     = "water_depth"
	ColDepthIntervals = "depth_intervals"
	ColBlowCounts     = "blow_counts"
	ColPenetrationMM  = "penetration_mm"
	ColDescription    = "description"
)

// RequiredColumns must be present in the header before an import may start.
var RequiredColumns = []string{ColBoringID, ColLatitude, ColLongitude}

// RecommendedColumns carry the SPT lists; without them only point locations
// are imported.
var RecommendedColumns = []string{ColDepthIntervals, ColBlowCounts, ColPenetrationMM}

var (
	// ErrMalformedRow marks a row that cannot be normalized: missing or
	// unparseable required fields, out-of-range coordinates, bad numerics,
	// or a total depth above the recorded rock depth.
	ErrMalformedRow = eris.New("boring: malformed row")

	// ErrUnsupportedToken marks a blow-count token whose shape the grammar
	// does not recognize. The interval is omitted; the row survives.
	ErrUnsupportedToken = eris.New("boring: unsupported blow-count token")
)

const (
	// feetToMeters converts interval depths; only the depth_intervals list
	// arrives in feet, the scalar depth columns are already metric.
	feetToMeters = 0.3048

	// refusalN is the standard N-value recorded when the sampler cannot
	// advance.
	refusalN = 50

	// defaultPenetrationMM applies when the penetration list has no usable
	// entry for an interval.
	defaultPenetrationMM = 150.0
)

// Boring is one normalized field-log row: the point plus its SPT intervals
// in ascending depth order. TokenIssues records blow-count tokens the
// grammar skipped outright or kept only partially.
type Boring struct {
	Point       geotech.GeotechnicalPoint
	Intervals   []geotech.SPTResult
	TokenIssues []TokenIssue
}

// TokenIssue ties a problem blow-count token to its interval depth. Partial
// means the interval was kept but non-numeric increments were discarded;
// otherwise the whole interval was omitted.
type TokenIssue struct {
	DepthFt float64
	Token   string
	Partial bool
}

// ParseRow normalizes one data row against a header index built with
// mapColumns. The returned point carries no project or provenance fields;
// the importer stamps those before persisting.
func ParseRow(record []string, colIdx map[string]int) (*Boring, error) {
	boringID := strings.TrimSpace(sanitizeUTF8(getCol(record, colIdx, ColBoringID)))
	if boringID == "" {
		return nil, eris.Wrap(ErrMalformedRow, "missing boring_id")
	}

	lat, err := parseCoord(getCol(record, colIdx, ColLatitude), ColLatitude, 90)
	if err != nil {
		return nil, err
	}
	lon, err := parseCoord(getCol(record, colIdx, ColLongitude), ColLongitude, 180)
	if err != nil {
		return nil, err
	}

	elevation, err := optFloat(getCol(record, colIdx, ColElevation), ColElevation)
	if err != nil {
		return nil, err
	}
	totalDepth, err := optFloat(getCol(record, colIdx, ColTotalDepth), ColTotalDepth)
	if err != nil {
		return nil, err
	}
	rockDepth, err := optFloat(getCol(record, colIdx, ColRockDepth), ColRockDepth)
	if err != nil {
		return nil, err
	}
	waterDepth, err := optFloat(getCol(record, colIdx, ColWaterDepth), ColWaterDepth)
	if err != nil {
		return nil, err
	}
	if totalDepth != nil && rockDepth != nil && *totalDepth < *rockDepth {
		return nil, eris.Wrapf(ErrMalformedRow, "total_depth %g is above rock_depth %g", *totalDepth, *rockDepth)
	}

	date, err := optDate(getCol(record, colIdx, ColDate))
	if err != nil {
		return nil, err
	}

	b := &Boring{
		Point: geotech.GeotechnicalPoint{
			BoringID:          boringID,
			Latitude:          lat,
			Longitude:         lon,
			GroundElevationM:  elevation,
			InvestigationDate: date,
			TotalDepthM:       totalDepth,
			RockDepthM:        rockDepth,
			WaterDepthM:       waterDepth,
			Description:       strings.TrimSpace(sanitizeUTF8(getCol(record, colIdx, ColDescription))),
		},
	}

	depthsRaw := strings.TrimSpace(getCol(record, colIdx, ColDepthIntervals))
	blowsRaw := strings.TrimSpace(getCol(record, colIdx, ColBlowCounts))
	if depthsRaw == "" || blowsRaw == "" {
		return b, nil
	}
	pensRaw := strings.TrimSpace(getCol(record, colIdx, ColPenetrationMM))

	intervals, issues, err := parseIntervals(depthsRaw, blowsRaw, pensRaw)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(intervals, func(i, j int) bool { return intervals[i].DepthM < intervals[j].DepthM })
	b.Intervals = intervals
	b.TokenIssues = issues
	return b, nil
}

// parseIntervals walks the three comma-joined lists pairwise, truncating to
// the shorter of depths and blow tokens. The blow list keeps blank slots so
// the pairing with depths holds; blank penetration slots fall back to the
// 150 mm default.
func parseIntervals(depthsRaw, blowsRaw, pensRaw string) ([]geotech.SPTResult, []TokenIssue, error) {
	var depths []float64
	for _, tok := range strings.Split(depthsRaw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, nil, eris.Wrapf(ErrMalformedRow, "depth interval %q is not a number", tok)
		}
		depths = append(depths, d)
	}

	blows := strings.Split(blowsRaw, ",")
	var pens []string
	if pensRaw != "" {
		pens = strings.Split(pensRaw, ",")
	}

	n := len(depths)
	if len(blows) < n {
		n = len(blows)
	}

	var (
		intervals []geotech.SPTResult
		issues    []TokenIssue
	)
	for i := 0; i < n; i++ {
		pen := defaultPenetrationMM
		if i < len(pens) && strings.TrimSpace(pens[i]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(pens[i]), 64)
			if err != nil {
				return nil, nil, eris.Wrapf(ErrMalformedRow, "penetration %q is not a number", strings.TrimSpace(pens[i]))
			}
			pen = v
		}

		token := strings.TrimSpace(blows[i])
		spt, partial, err := parseBlowToken(token, pen)
		if err != nil {
			issues = append(issues, TokenIssue{DepthFt: depths[i], Token: token})
			continue
		}
		if partial {
			issues = append(issues, TokenIssue{DepthFt: depths[i], Token: token, Partial: true})
		}
		spt.DepthM = depths[i] * feetToMeters
		intervals = append(intervals, spt)
	}
	return intervals, issues, nil
}

// parseBlowToken reads one blow-count token. The refusal marker R/r wins
// over the increment form; tokens matching neither form return
// ErrUnsupportedToken. partial reports that non-numeric increments were
// discarded from an increment-form token.
func parseBlowToken(token string, penetrationMM float64) (spt geotech.SPTResult, partial bool, err error) {
	upper := strings.ToUpper(token)

	switch {
	case strings.HasSuffix(upper, "R"):
		// Increments before the refusal marker are informational only.
		var inc []int32
		if strings.Contains(token, "-") {
			cleaned := strings.NewReplacer("R", "", "r", "").Replace(token)
			for _, p := range strings.Split(cleaned, "-") {
				if v, ok := blowValue(p); ok {
					inc = append(inc, v)
				}
			}
		}
		if penetrationMM <= 0 {
			penetrationMM = 0
		}
		return geotech.SPTResult{
			NValue:        refusalN,
			BlowCounts:    inc,
			PenetrationMM: penetrationMM,
			Refusal:       true,
		}, false, nil

	case strings.Contains(token, "-"):
		var inc []int32
		for _, p := range strings.Split(token, "-") {
			v, ok := blowValue(p)
			if !ok {
				partial = true
				continue
			}
			inc = append(inc, v)
		}
		nValue := 0
		if len(inc) >= 2 {
			nValue = int(inc[len(inc)-1]) + int(inc[len(inc)-2])
		} else {
			for _, v := range inc {
				nValue += int(v)
			}
		}
		return geotech.SPTResult{
			NValue:        nValue,
			BlowCounts:    inc,
			PenetrationMM: penetrationMM,
		}, partial, nil

	default:
		return geotech.SPTResult{}, false, eris.Wrapf(ErrUnsupportedToken, "%q", token)
	}
}

// blowValue parses an increment sub-token. Only unsigned ASCII digit runs
// count; anything else is dropped by the caller.
func blowValue(s string) (int32, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func parseCoord(raw, name string, bound float64) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, eris.Wrapf(ErrMalformedRow, "missing %s", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(ErrMalformedRow, "%s %q is not a number", name, s)
	}
	if v < -bound || v > bound {
		return 0, eris.Wrapf(ErrMalformedRow, "%s %g out of range", name, v)
	}
	return v, nil
}

func optFloat(raw, name string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedRow, "%s %q is not a number", name, s)
	}
	return &v, nil
}

func optDate(raw string) (*time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedRow, "date %q is not ISO yyyy-mm-dd", s)
	}
	return &t, nil
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name from a record, returning empty string
// if the column is absent.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[strings.ToLower(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// sanitizeUTF8 drops invalid UTF-8 byte sequences (e.g. stray Latin-1 data)
// so Postgres does not reject the row.
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
