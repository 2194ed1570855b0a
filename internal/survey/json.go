package survey

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caprock-geo/gms-cli/internal/fetch"
)

// jsonPoint is a lat/lon pair as the survey export writes it.
type jsonPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// jsonObservation is the wire shape of one exported observation. Endpoints
// are pointers so an absent point is distinguishable from coordinate zero.
type jsonObservation struct {
	SurveyID     string         `json:"survey_id"`
	RouteID      string         `json:"route_id"`
	StartPoint   *jsonPoint     `json:"start_point"`
	EndPoint     *jsonPoint     `json:"end_point"`
	DistressType string         `json:"distress_type"`
	Severity     string         `json:"severity"`
	RutDepthMM   *float64       `json:"rut_depth_mm"`
	IRIValue     *float64       `json:"iri_value"`
	Date         string         `json:"date"`
	Metadata     map[string]any `json:"metadata"`
}

// record flattens the wire shape.
func (j *jsonObservation) record() (*Record, error) {
	if j.StartPoint == nil {
		return nil, eris.New("survey: missing start_point")
	}
	if j.EndPoint == nil {
		return nil, eris.New("survey: missing end_point")
	}
	return &Record{
		SurveyID:     j.SurveyID,
		RouteID:      j.RouteID,
		StartLat:     j.StartPoint.Lat,
		StartLon:     j.StartPoint.Lon,
		EndLat:       j.EndPoint.Lat,
		EndLon:       j.EndPoint.Lon,
		DistressType: j.DistressType,
		Severity:     j.Severity,
		RutDepthMM:   j.RutDepthMM,
		IRIValue:     j.IRIValue,
		Date:         j.Date,
		Metadata:     j.Metadata,
	}, nil
}

func (j *jsonObservation) raw() string {
	b, err := json.Marshal(j)
	if err != nil {
		return ""
	}
	return string(b)
}

func (imp *Importer) runJSON(ctx context.Context, log *zap.Logger, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "survey: open %s", path)
	}
	defer f.Close()

	br := bufio.NewReader(fetch.StripBOM(f))
	field, err := sniffTopLevel(br)
	if err != nil {
		return nil, err
	}

	recCh, errCh := fetch.StreamJSONArray[jsonObservation](ctx, br, field)

	sum := &Summary{}
	ordinal := 0
	for item := range recCh {
		ordinal++
		sum.RecordsSeen++
		rec, err := item.record()
		if err != nil {
			sum.Skipped++
			log.Warn("skipping record", zap.Int("record", ordinal), zap.Error(err))
			imp.reject(ctx, ordinal, RejectMalformedRecord, err.Error(), item.raw())
			continue
		}
		imp.importRecord(ctx, log, sum, rec, ordinal, item.raw())
	}
	if err := <-errCh; err != nil {
		return sum, err
	}

	imp.logSummary(log, sum)
	return sum, nil
}

// sniffTopLevel reports which array the stream carries: "" for a bare
// array, the observations field for the object wrapper the survey export
// normally writes.
func sniffTopLevel(br *bufio.Reader) (string, error) {
	for skip := 0; ; skip++ {
		buf, err := br.Peek(skip + 1)
		if err != nil {
			if err == io.EOF {
				return "", eris.New("survey: empty input")
			}
			return "", eris.Wrap(err, "survey: read input")
		}
		switch buf[skip] {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return "", nil
		default:
			return "observations", nil
		}
	}
}
