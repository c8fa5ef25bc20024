// Package laps splits a session into laps by watching for start-line
// geofence crossings.
package laps

import (
	"time"

	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

const (
	DefaultRadiusM          = 20.0
	DefaultMinLapTime       = 10 * time.Second
	DefaultHeadingTolerance = 90.0
)

// StartLine is the circular geofence that marks lap boundaries.
// ExpectedHeading, when set, replaces the heading learned from the first
// accepted crossing.
type StartLine struct {
	Lat             float64
	Lon             float64
	RadiusM         float64
	ExpectedHeading *float64
}

// ZoneState is the detector's position relative to the start line.
type ZoneState int

const (
	OutsideZone ZoneState = iota
	InsideZone
)

func (z ZoneState) String() string {
	if z == InsideZone {
		return "inside"
	}
	return "outside"
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinLapTime sets the debounce interval between recorded crossings.
func WithMinLapTime(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.minLapTime = d.Seconds()
		}
	}
}

// WithHeadingTolerance sets the largest heading deviation, in degrees, from
// the reference heading that still counts as a crossing.
func WithHeadingTolerance(deg float64) Option {
	return func(det *Detector) {
		if deg > 0 {
			det.headingTolerance = deg
		}
	}
}

// Detector finds start-line crossings. A Detector holds no per-session
// state and may be reused.
type Detector struct {
	line             StartLine
	minLapTime       float64 // seconds
	headingTolerance float64 // degrees
}

// NewDetector returns a Detector for line. A non-positive radius falls back
// to DefaultRadiusM.
func NewDetector(line StartLine, opts ...Option) *Detector {
	if line.RadiusM <= 0 {
		line.RadiusM = DefaultRadiusM
	}
	d := &Detector{
		line:             line,
		minLapTime:       DefaultMinLapTime.Seconds(),
		headingTolerance: DefaultHeadingTolerance,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Line returns the geofence the detector watches.
func (d *Detector) Line() StartLine { return d.line }

// Crossings returns the sample indices of every recorded start-line
// crossing in session order.
//
// Entering the zone is an edge. On an edge after the first sample the
// approach heading (previous sample to current) must lie within the
// tolerance of the reference heading; the first accepted edge sets that
// reference. Accepted edges are recorded only when more than the minimum
// lap time has passed since the previous recorded crossing.
func (d *Detector) Crossings(session *telemetry.Session) []int {
	var (
		crossings []int
		state     = OutsideZone
		reference *float64
	)

	samples := session.Samples
	for i, s := range samples {
		dist := geo.DistanceMeters(s.GPS.Lat, s.GPS.Lon, d.line.Lat, d.line.Lon)
		if dist >= d.line.RadiusM {
			state = OutsideZone
			continue
		}
		if state == InsideZone {
			continue
		}
		state = InsideZone

		if i > 0 {
			prev := samples[i-1]
			heading := geo.Bearing(prev.GPS.Lat, prev.GPS.Lon, s.GPS.Lat, s.GPS.Lon)
			if reference != nil && geo.HeadingDiff(heading, *reference) >= d.headingTolerance {
				tracef("crossing at %d rejected: heading %.0f vs reference %.0f", i, heading, *reference)
				continue
			}
			if reference == nil {
				ref := heading
				if d.line.ExpectedHeading != nil {
					ref = *d.line.ExpectedHeading
				}
				reference = &ref
			}
		}

		if len(crossings) == 0 || s.Timestamp-samples[crossings[len(crossings)-1]].Timestamp > d.minLapTime {
			crossings = append(crossings, i)
			tracef("crossing at %d (t=%.2f)", i, s.Timestamp)
		}
	}
	return crossings
}

// Detect converts consecutive crossings into laps numbered from 1. Lap k
// spans samples [crossing k, crossing k+1). Fewer than two crossings yield
// no laps.
func (d *Detector) Detect(session *telemetry.Session) []telemetry.Lap {
	crossings := d.Crossings(session)
	if len(crossings) < 2 {
		return nil
	}

	out := make([]telemetry.Lap, 0, len(crossings)-1)
	for k := 0; k < len(crossings)-1; k++ {
		out = append(out, telemetry.NewLap(session, crossings[k], crossings[k+1], k+1))
	}
	diagf("%s: %d crossings, %d laps", session.Name, len(crossings), len(out))
	return out
}
