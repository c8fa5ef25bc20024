package telemetry

// Signals are the per-sample channels attached to a session after fusion.
// Every slice has one entry per session sample. Angles are degrees,
// accelerations are G.
type Signals struct {
	AlignedAccelX []float64 `json:"aligned_accel_x"`
	AlignedAccelY []float64 `json:"aligned_accel_y"`
	AlignedAccelZ []float64 `json:"aligned_accel_z"`
	LeanAngle     []float64 `json:"lean_angle"`
	Pitch         []float64 `json:"pitch"`
	Yaw           []float64 `json:"yaw"`

	LongitudinalG []float64 `json:"longitudinal_g"`
	LateralG      []float64 `json:"lateral_g"`
	VerticalG     []float64 `json:"vertical_g"`
	Acceleration  []float64 `json:"acceleration"`
	Braking       []float64 `json:"braking"`

	Confidence float64 `json:"confidence"`
}

// Empty reports whether no channel has been filled.
func (s *Signals) Empty() bool {
	return s == nil || (len(s.AlignedAccelX) == 0 && len(s.LeanAngle) == 0)
}

// Calibration records whether the IMU stage produced trustworthy signals.
type Calibration struct {
	Calibrated bool   `json:"calibrated"`
	Confidence string `json:"confidence,omitempty"`
	Method     string `json:"method,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
