package compare

import (
	"math"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Row is one aligned distance step. Deltas are target minus reference, so
// a negative DeltaTime means the target lap is ahead.
type Row struct {
	Distance    float64 `json:"distance"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	RefTime     float64 `json:"ref_time"`
	TargetTime  float64 `json:"target_time"`
	RefSpeed    float64 `json:"ref_speed"`
	TargetSpeed float64 `json:"target_speed"`
	DeltaSpeed  float64 `json:"delta_speed"`
	DeltaTime   float64 `json:"delta_time"`
}

// Compare aligns two resampled laps, truncated to the shorter one.
func Compare(ref, target []Point) []Row {
	n := min(len(ref), len(target))
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		r, t := ref[i], target[i]
		rows[i] = Row{
			Distance:    r.Distance,
			Lat:         r.Lat,
			Lon:         r.Lon,
			RefTime:     r.Time,
			TargetTime:  t.Time,
			RefSpeed:    r.Speed,
			TargetSpeed: t.Speed,
			DeltaSpeed:  t.Speed - r.Speed,
			DeltaTime:   t.Time - r.Time,
		}
	}
	return rows
}

// CompareLaps resamples both laps with r and compares them.
func (r *Resampler) CompareLaps(ref, target telemetry.Lap) []Row {
	return Compare(r.ResampleLap(ref), r.ResampleLap(target))
}

// Summary condenses a comparison. MaxGain is the largest lead of the
// target lap, MaxLoss its largest deficit, both non-negative seconds.
type Summary struct {
	MaxGain    float64 `json:"max_gain"`
	MaxLoss    float64 `json:"max_loss"`
	MeanDelta  float64 `json:"mean_delta"`
	FinalDelta float64 `json:"final_delta"`
}

// Summarize returns the delta summary of rows.
func Summarize(rows []Row) Summary {
	if len(rows) == 0 {
		return Summary{}
	}
	var s Summary
	sum := 0.0
	for _, r := range rows {
		s.MaxGain = math.Max(s.MaxGain, -r.DeltaTime)
		s.MaxLoss = math.Max(s.MaxLoss, r.DeltaTime)
		sum += r.DeltaTime
	}
	s.MeanDelta = sum / float64(len(rows))
	s.FinalDelta = rows[len(rows)-1].DeltaTime
	return s
}
