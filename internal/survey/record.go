// Package survey ingests pavement surface-distress observations from
// automated road-analyzer exports, in JSON or shapefile form, and hands the
// surviving records to storage one at a time.
package survey

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/caprock-geo/gms-cli/internal/geotech"
)

// DefaultSource is the provenance stamp for automated road-analyzer runs.
const DefaultSource = "aran_survey"

// Record is one raw observation after format decoding but before
// validation. Both input formats reduce to this shape.
type Record struct {
	SurveyID     string
	RouteID      string
	StartLat     float64
	StartLon     float64
	EndLat       float64
	EndLon       float64
	DistressType string
	Severity     string
	RutDepthMM   *float64
	IRIValue     *float64
	Date         string
	Metadata     map[string]any
}

// observation validates the record and converts it to a storable
// observation stamped with the given data source.
func (r *Record) observation(source string) (*geotech.SurfaceObservation, error) {
	distress := strings.TrimSpace(sanitizeUTF8(r.DistressType))
	if distress == "" {
		return nil, eris.New("survey: missing distress_type")
	}
	if err := checkLatLon("start", r.StartLat, r.StartLon); err != nil {
		return nil, err
	}
	if err := checkLatLon("end", r.EndLat, r.EndLon); err != nil {
		return nil, err
	}
	severity, err := normalizeSeverity(r.Severity)
	if err != nil {
		return nil, err
	}

	var observedAt *time.Time
	if d := strings.TrimSpace(r.Date); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, eris.Wrapf(err, "survey: invalid date %q", d)
		}
		observedAt = &t
	}

	return &geotech.SurfaceObservation{
		SurveyID:     strings.TrimSpace(sanitizeUTF8(r.SurveyID)),
		RouteID:      strings.TrimSpace(sanitizeUTF8(r.RouteID)),
		StartLat:     r.StartLat,
		StartLon:     r.StartLon,
		EndLat:       r.EndLat,
		EndLon:       r.EndLon,
		DistressType: distress,
		Severity:     severity,
		RutDepthMM:   r.RutDepthMM,
		IRIMPerKM:    r.IRIValue,
		ObservedAt:   observedAt,
		Source:       source,
		Metadata:     r.Metadata,
	}, nil
}

// normalizeSeverity maps free-form severity text onto the stored levels.
// Blank defaults to medium; unknown values are an error so typos do not
// masquerade as real ratings.
func normalizeSeverity(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return geotech.SeverityMedium, nil
	case geotech.SeverityLow, geotech.SeverityMedium, geotech.SeverityHigh:
		return s, nil
	default:
		return "", eris.Errorf("survey: unknown severity %q", s)
	}
}

func checkLatLon(which string, lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return eris.Errorf("survey: %s latitude %g out of range", which, lat)
	}
	if lon < -180 || lon > 180 {
		return eris.Errorf("survey: %s longitude %g out of range", which, lon)
	}
	return nil
}

func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}
