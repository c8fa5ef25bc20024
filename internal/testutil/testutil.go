// Package testutil provides shared test utilities and fixtures.
//
// Session fixtures are built from simple geometric paths so tests can
// reason about crossing times without recorded logs.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatNear fails the test if got is further than tol from want.
func AssertFloatNear(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.4f, want %.4f (±%.4f)", name, got, want, tol)
	}
}

// Origin is the reference point fixtures are laid out around.
var Origin = struct{ Lat, Lon float64 }{10.9265, 77.0620}

// Waypoint is a position along a north-south line through Origin, in
// meters north of it, at time T seconds.
type Waypoint struct {
	NorthM float64
	T      float64
}

// LineSession builds one sample per waypoint on the meridian through
// Origin. Timestamps are offset from base.
func LineSession(name string, base float64, pts []Waypoint) *telemetry.Session {
	samples := make([]telemetry.Sample, len(pts))
	for i, p := range pts {
		lat, lon := geo.Destination(Origin.Lat, Origin.Lon, 0, p.NorthM)
		samples[i] = Sample(base+p.T, lat, lon, 60)
	}
	return telemetry.NewSession(name, samples)
}

// Sample returns a sample at the given position with a level, stationary
// IMU reading.
func Sample(ts, lat, lon, speedKmh float64) telemetry.Sample {
	return telemetry.Sample{
		Timestamp: ts,
		GPS:       telemetry.GPS{Lat: lat, Lon: lon, SpeedKmh: speedKmh, Satellites: 10},
		IMU:       telemetry.IMU{AccelZ: 9.81},
		Env:       telemetry.Env{Temp: 30.5, Pressure: 1013.2},
	}
}

// Circuit describes a clockwise circular track. The start line sits on the
// circle at bearing StartBearing from the center.
type Circuit struct {
	CenterLat    float64
	CenterLon    float64
	RadiusM      float64
	SpeedMps     float64
	Hz           float64
	StartBearing float64
}

// DefaultCircuit is a 525 m radius circle lapped in about 110 s at 30 m/s.
func DefaultCircuit() Circuit {
	return Circuit{
		CenterLat: Origin.Lat,
		CenterLon: Origin.Lon,
		RadiusM:   525,
		SpeedMps:  30,
		Hz:        10,
	}
}

// LapTime is the time for one full revolution.
func (c Circuit) LapTime() float64 {
	return 2 * math.Pi * c.RadiusM / c.SpeedMps
}

// StartPoint returns the position of the start line.
func (c Circuit) StartPoint() (float64, float64) {
	return geo.Destination(c.CenterLat, c.CenterLon, c.StartBearing, c.RadiusM)
}

// PointAt returns the position after travelling for t seconds from the
// bearing offsetDeg relative to the start line.
func (c Circuit) PointAt(t, offsetDeg float64) (float64, float64) {
	angle := offsetDeg + t*c.SpeedMps/c.RadiusM*180/math.Pi
	return geo.Destination(c.CenterLat, c.CenterLon, c.StartBearing+angle, c.RadiusM)
}

// Session samples the circuit for duration seconds, starting offsetDeg
// around the circle from the start line. Timestamps begin at base.
func (c Circuit) Session(name string, base, duration, offsetDeg float64) *telemetry.Session {
	n := int(duration*c.Hz) + 1
	samples := make([]telemetry.Sample, n)
	for i := 0; i < n; i++ {
		t := float64(i) / c.Hz
		lat, lon := c.PointAt(t, offsetDeg)
		samples[i] = Sample(base+t, lat, lon, c.SpeedMps*3.6)
	}
	return telemetry.NewSession(name, samples)
}
