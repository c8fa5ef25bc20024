// Package compare aligns laps by distance travelled so they can be
// compared point for point.
package compare

import (
	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// DefaultStepM is the default resampling distance.
const DefaultStepM = 10.0

// minSegmentM is the shortest segment counted as movement.
const minSegmentM = 0.001

// Point is a position interpolated at a fixed distance along a lap. Time is
// relative to the first sample.
type Point struct {
	Distance float64 `json:"distance"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Time     float64 `json:"time"`
	Speed    float64 `json:"speed"`
}

// Resampler interpolates samples onto an even distance grid.
type Resampler struct {
	StepM float64
}

// NewResampler returns a Resampler; a non-positive step uses DefaultStepM.
func NewResampler(stepM float64) *Resampler {
	if stepM <= 0 {
		stepM = DefaultStepM
	}
	return &Resampler{StepM: stepM}
}

// Resample returns one point every StepM metres, starting with the first
// sample. Segments shorter than a millimetre are skipped.
func (r *Resampler) Resample(samples []telemetry.Sample) []Point {
	if len(samples) == 0 {
		return nil
	}
	t0 := samples[0].Timestamp
	first := samples[0]
	out := []Point{{Lat: first.GPS.Lat, Lon: first.GPS.Lon, Speed: first.GPS.SpeedKmh}}

	cum, target := 0.0, r.StepM
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		seg := geo.DistanceMeters(a.GPS.Lat, a.GPS.Lon, b.GPS.Lat, b.GPS.Lon)
		if seg <= minSegmentM {
			continue
		}
		for target <= cum+seg+1e-6 {
			f := (target - cum) / seg
			if f > 1 {
				f = 1
			}
			out = append(out, Point{
				Distance: target,
				Lat:      lerp(a.GPS.Lat, b.GPS.Lat, f),
				Lon:      lerp(a.GPS.Lon, b.GPS.Lon, f),
				Time:     lerp(a.Timestamp, b.Timestamp, f) - t0,
				Speed:    lerp(a.GPS.SpeedKmh, b.GPS.SpeedKmh, f),
			})
			target += r.StepM
		}
		cum += seg
	}
	tracef("resampled %d samples to %d points over %.0f m", len(samples), len(out), cum)
	return out
}

// ResampleLap resamples the samples of one lap.
func (r *Resampler) ResampleLap(lap telemetry.Lap) []Point {
	return r.Resample(lap.Samples())
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }
