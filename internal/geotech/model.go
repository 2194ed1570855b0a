package geotech

import (
	"time"

	"github.com/google/uuid"
)

// Project groups borings under an engineering project number.
type Project struct {
	ID            uuid.UUID `json:"id"`
	ProjectNumber string    `json:"project_number"`
	Name          string    `json:"name,omitempty"`
	Client        string    `json:"client,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GeotechnicalPoint is a boring location with recorded site metadata.
// TotalDepthM is never less than RockDepthM when both are recorded.
type GeotechnicalPoint struct {
	ID                uuid.UUID  `json:"id"`
	ProjectID         uuid.UUID  `json:"project_id"`
	BoringID          string     `json:"boring_id"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	GroundElevationM  *float64   `json:"ground_elevation_m,omitempty"`
	InvestigationDate *time.Time `json:"investigation_date,omitempty"`
	TotalDepthM       *float64   `json:"total_depth_m,omitempty"`
	RockDepthM        *float64   `json:"rock_depth_m,omitempty"`
	WaterDepthM       *float64   `json:"water_depth_m,omitempty"`
	Description       string     `json:"description,omitempty"`
	DataSource        string     `json:"data_source"`
	Confidence        string     `json:"confidence"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SPTResult is one normalized standard penetration test interval.
// BlowCounts preserves the recorded per-increment blows in drive order.
type SPTResult struct {
	ID            uuid.UUID `json:"id"`
	PointID       uuid.UUID `json:"point_id"`
	DepthM        float64   `json:"depth_m"`
	NValue        int       `json:"n_value"`
	BlowCounts    []int32   `json:"blow_counts"`
	PenetrationMM float64   `json:"penetration_mm"`
	Refusal       bool      `json:"refusal"`
	SamplerType   string    `json:"sampler_type,omitempty"`
	HammerType    string    `json:"hammer_type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ElevationPoint is a sampled DEM elevation at a geographic position.
type ElevationPoint struct {
	ID         uuid.UUID `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ElevationM float64   `json:"elevation_m"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// SlopeCell is an aggregated slope-analysis grid cell with a risk rating.
// RingLonLat holds the cell polygon as a closed lon/lat ring.
type SlopeCell struct {
	ID             uuid.UUID    `json:"id"`
	RingLonLat     [][2]float64 `json:"ring,omitempty"`
	AvgSlopeDeg    float64      `json:"avg_slope_deg"`
	MaxSlopeDeg    float64      `json:"max_slope_deg"`
	PctAboveThresh float64      `json:"pct_above_threshold"`
	PixelCount     int          `json:"pixel_count"`
	RiskLevel      string       `json:"risk_level"`
	Source         string       `json:"source"`
	CreatedAt      time.Time    `json:"created_at"`
}

// SubsidenceRegion is a contiguous area of detected elevation loss between
// two DEM epochs. Avg/Max are signed change in meters; Max is the most
// negative value in the region.
type SubsidenceRegion struct {
	ID             uuid.UUID    `json:"id"`
	RingLonLat     [][2]float64 `json:"ring,omitempty"`
	AvgSubsidenceM float64      `json:"avg_subsidence_m"`
	MaxSubsidenceM float64      `json:"max_subsidence_m"`
	AreaM2         float64      `json:"area_m2"`
	PixelCount     int          `json:"pixel_count"`
	OldSource      string       `json:"old_source"`
	NewSource      string       `json:"new_source"`
	DetectedAt     time.Time    `json:"detected_at"`
}

// Severity levels accepted for surface observations.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SurfaceObservation is one pavement distress record from a survey run. The
// observed segment runs from the start coordinate to the end coordinate.
type SurfaceObservation struct {
	ID           uuid.UUID      `json:"id"`
	SurveyID     string         `json:"survey_id,omitempty"`
	RouteID      string         `json:"route_id,omitempty"`
	StartLat     float64        `json:"start_lat"`
	StartLon     float64        `json:"start_lon"`
	EndLat       float64        `json:"end_lat"`
	EndLon       float64        `json:"end_lon"`
	DistressType string         `json:"distress_type"`
	Severity     string         `json:"severity"`
	RutDepthMM   *float64       `json:"rut_depth_mm,omitempty"`
	IRIMPerKM    *float64       `json:"iri_m_per_km,omitempty"`
	ObservedAt   *time.Time     `json:"observed_at,omitempty"`
	Source       string         `json:"source"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// CorrelationEdge links a source record to a nearby target record with a
// distance-tiered confidence score. The 4-tuple (source_table, source_id,
// target_table, target_id) is unique; re-correlating updates in place.
type CorrelationEdge struct {
	ID          uuid.UUID `json:"id"`
	SourceTable string    `json:"source_table"`
	SourceID    uuid.UUID `json:"source_id"`
	TargetTable string    `json:"target_table"`
	TargetID    uuid.UUID `json:"target_id"`
	DistanceM   float64   `json:"distance_m"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
