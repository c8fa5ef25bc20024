package export

import (
	"github.com/banshee-data/laptrace/internal/compare"
	"github.com/banshee-data/laptrace/internal/diagnostics"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// SchemaVersion of the session document.
const SchemaVersion = "1.0"

// Document is the self-contained session export.
type Document struct {
	Meta        Meta                  `json:"meta"`
	Environment Environment           `json:"environment"`
	Mode        Mode                  `json:"mode"`
	Calibration telemetry.Calibration `json:"calibration"`
	Analysis    Analysis              `json:"analysis"`
	Track       TrackInfo             `json:"track"`
	References  References            `json:"references"`
	Laps        []LapEntry            `json:"laps"`
	Sectors     []SectorSummary       `json:"sectors"`
	Deltas      Deltas                `json:"deltas"`
	Aggregates  Aggregates            `json:"aggregates"`
	Integrity   Integrity             `json:"integrity"`
}

type Meta struct {
	SessionID     string  `json:"session_id"`
	SessionName   string  `json:"session_name"`
	ExportID      string  `json:"export_id"`
	SourceFile    string  `json:"source_file,omitempty"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
	DurationSec   float64 `json:"duration_sec"`
	LoggerVersion string  `json:"logger_version"`
	SchemaVersion string  `json:"schema_version"`
}

type GPSQuality struct {
	TotalFixes     int     `json:"total_fixes"`
	FixDropouts    int     `json:"fix_dropouts"`
	MeanSatellites float64 `json:"mean_satellites"`
}

type Environment struct {
	TrackTemperature   *float64   `json:"track_temperature"`
	AmbientTemperature *float64   `json:"ambient_temperature"`
	Pressure           *float64   `json:"pressure"`
	GPSQuality         GPSQuality `json:"gps_quality_summary"`
}

type Mode struct {
	ModeType       string `json:"mode_type"`
	LearningActive bool   `json:"learning_active"`
	Notes          string `json:"notes"`
}

type Analysis struct {
	Signals     *telemetry.Signals  `json:"signals"`
	Metrics     *telemetry.Metrics  `json:"metrics"`
	Diagnostics *diagnostics.Report `json:"diagnostics"`
}

type SectorSource struct {
	FastestLapSessionID *string  `json:"fastest_lap_session_id"`
	FastestLapTime      *float64 `json:"fastest_lap_time"`
}

type TrackInfo struct {
	TrackID                int          `json:"track_id"`
	TrackName              string       `json:"track_name"`
	SectorCount            int          `json:"sector_count"`
	SectorDefinitionSource SectorSource `json:"sector_definition_source"`
}

type LapReference struct {
	LapTime   *float64 `json:"lap_time"`
	SessionID *string  `json:"session_id"`
}

type References struct {
	BestRealLap     LapReference `json:"best_real_lap_reference"`
	TheoreticalBest *float64     `json:"theoretical_best_reference"`
	SectorTimes     []float64    `json:"sector_times"`
	DeltaReference  string       `json:"reference_type_used_for_deltas"`
}

// LapEntry is one lap with dense sector times; a nil entry is a sector
// whose gate was not reached.
type LapEntry struct {
	LapIndex         int        `json:"lap_index"`
	LapNumber        int        `json:"lap_number"`
	StartTime        float64    `json:"start_time"`
	LapTime          *float64   `json:"lap_time"`
	Valid            bool       `json:"valid"`
	ReasonInvalid    *string    `json:"reason_invalid"`
	SectorTimes      []*float64 `json:"sector_times"`
	DeltaToReference float64    `json:"delta_to_reference"`
	IsSessionBest    bool       `json:"is_session_best"`
}

type SectorSummary struct {
	SectorID  string  `json:"sector_id"`
	Best      float64 `json:"best_time_this_session"`
	Median    float64 `json:"median_time"`
	Worst     float64 `json:"worst_time"`
	LapsCount int     `json:"laps_count"`
}

// LapDelta compares one lap against the session's best lap over distance.
type LapDelta struct {
	LapNumber int `json:"lap_number"`
	compare.Summary
}

// SectorDelta is the gap between the session's best time for a sector and
// the track's all-time best.
type SectorDelta struct {
	SectorIndex     int      `json:"sector_index"`
	SessionBest     *float64 `json:"session_best"`
	TheoreticalBest *float64 `json:"theoretical_best"`
	Gap             *float64 `json:"gap"`
}

type Deltas struct {
	ReferenceLap *int          `json:"reference_lap"`
	Laps         []LapDelta    `json:"distance_aligned_delta_summary"`
	MaxGain      float64       `json:"max_gain"`
	MaxLoss      float64       `json:"max_loss"`
	MeanDelta    float64       `json:"mean_delta"`
	Sectors      []SectorDelta `json:"sector_delta_summary"`
}

type Aggregates struct {
	BestLapTime          *float64 `json:"best_lap_time"`
	GapToTheoreticalBest *float64 `json:"gap_to_theoretical_best"`
	ConsistencyScore     *float64 `json:"consistency_score"`
}

type Integrity struct {
	CleanShutdown       bool     `json:"clean_shutdown"`
	DataLossDetected    bool     `json:"data_loss_detected"`
	GPSReliabilityScore float64  `json:"gps_reliability_score"`
	Warnings            []string `json:"warnings"`
}
