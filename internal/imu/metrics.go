package imu

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

// MetricsVersion identifies the metrics layout written into exports.
const MetricsVersion = "7.3.2"

// ComputeMetrics derives per-lap load metrics from the fused signals. It
// returns nil when there are no laps or no signals.
func ComputeMetrics(s *telemetry.Session, sig *telemetry.Signals) *telemetry.Metrics {
	if len(s.Laps) == 0 || sig.Empty() || len(sig.LateralG) != len(s.Samples) {
		return nil
	}
	_, fs := sampleSpacing(s.Timestamps())

	jerk := gradient(sig.LongitudinalG)
	floats.Scale(fs, jerk)

	m := &telemetry.Metrics{Version: MetricsVersion}
	for _, lap := range s.Laps {
		if lap.Len() == 0 {
			continue
		}
		lo, hi := lap.Start, lap.End
		lm := telemetry.LapMetrics{Lap: lap.Number}

		lat := absAll(sig.LateralG[lo:hi])
		lm.LateralAvg = stat.Mean(lat, nil)
		lm.LateralPeak = floats.Max(lat)
		lm.BrakingAvg, lm.BrakingPeak = activeStats(sig.Braking[lo:hi])
		lm.AccelAvg, lm.AccelPeak = activeStats(sig.Acceleration[lo:hi])

		j := absAll(jerk[lo:hi])
		lm.JerkAvg = stat.Mean(j, nil)
		lm.JerkPeak = floats.Max(j)
		lm.MaxLean = floats.Max(absAll(sig.LeanAngle[lo:hi]))

		m.Laps = append(m.Laps, lm)
	}
	if len(m.Laps) == 0 {
		return nil
	}

	maxLateral, maxJerk := 0.0, 0.0
	for _, lm := range m.Laps {
		maxLateral = math.Max(maxLateral, lm.LateralAvg)
		maxJerk = math.Max(maxJerk, lm.JerkAvg)
	}
	for i := range m.Laps {
		lm := &m.Laps[i]
		if maxLateral > 0 {
			lm.LateralLoadScore = round1(lm.LateralAvg / maxLateral * 100)
		}
		lm.StabilityScore = 100
		if maxJerk > 0 {
			lm.StabilityScore = round1((1 - lm.JerkAvg/maxJerk) * 100)
		}
		for _, v := range []*float64{
			&lm.LateralAvg, &lm.LateralPeak, &lm.BrakingAvg, &lm.BrakingPeak,
			&lm.AccelAvg, &lm.AccelPeak, &lm.JerkAvg, &lm.JerkPeak,
		} {
			*v = math.Round(*v*100) / 100
		}
		lm.MaxLean = round1(lm.MaxLean)
	}
	return m
}

// activeStats is the mean and peak over the non-zero entries of x.
func activeStats(x []float64) (avg, peak float64) {
	var active []float64
	for _, v := range x {
		if v > 0 {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return 0, 0
	}
	return stat.Mean(active, nil), floats.Max(active)
}

func absAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v)
	}
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
