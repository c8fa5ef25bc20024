// Package telemetry holds the in-memory session model shared by every
// pipeline stage: immutable samples, the session container and laps as
// index ranges into it.
package telemetry

// GPS is one satellite fix.
type GPS struct {
	Lat        float64
	Lon        float64
	SpeedKmh   float64
	Satellites int
}

// IMU is one inertial reading in raw sensor units. Gyro channels are nil
// when the logger did not record them.
type IMU struct {
	AccelX float64
	AccelY float64
	AccelZ float64
	GyroX  *float64
	GyroY  *float64
	GyroZ  *float64
}

// HasGyro reports whether all three gyro channels are present.
func (m IMU) HasGyro() bool {
	return m.GyroX != nil && m.GyroY != nil && m.GyroZ != nil
}

// Env carries the ambient readings.
type Env struct {
	Temp     float64
	Pressure float64
}

// Sample is one logger row. Samples are values and are never mutated after
// ingestion.
type Sample struct {
	Timestamp float64 // unix seconds
	GPS       GPS
	IMU       IMU
	Env       Env
}

// Float returns a pointer to v, for populating optional channels.
func Float(v float64) *float64 { return &v }

// Deref returns *p, or 0 when p is nil.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
