package telemetry

// LapMetrics summarises the rider load within one lap.
type LapMetrics struct {
	Lap         int     `json:"lap"`
	LateralAvg  float64 `json:"lateral_avg_g"`
	LateralPeak float64 `json:"lateral_peak_g"`
	BrakingAvg  float64 `json:"braking_avg_g"`
	BrakingPeak float64 `json:"braking_peak_g"`
	AccelAvg    float64 `json:"accel_avg_g"`
	AccelPeak   float64 `json:"accel_peak_g"`
	JerkAvg     float64 `json:"jerk_avg"`
	JerkPeak    float64 `json:"jerk_peak"`
	MaxLean     float64 `json:"max_lean_deg"`

	// Scores are 0-100, relative to the best lap of the session.
	LateralLoadScore float64 `json:"lateral_load_score"`
	StabilityScore   float64 `json:"stability_score"`
}

// Metrics are the per-lap sensor metrics of a session.
type Metrics struct {
	Version string       `json:"version"`
	Laps    []LapMetrics `json:"laps"`
}
