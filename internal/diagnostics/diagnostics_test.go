package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

func lapsWith(rows ...[]float64) []telemetry.Lap {
	s := telemetry.NewSession("d.csv", make([]telemetry.Sample, 2))
	var laps []telemetry.Lap
	for n, row := range rows {
		lap := telemetry.NewLap(s, 0, 2, n+1)
		for k, v := range row {
			if v < 0 {
				continue
			}
			lap.SectorTimes[telemetry.SectorID(k+1)] = telemetry.Float(v)
		}
		laps = append(laps, lap)
	}
	return laps
}

func TestAnalyze_IdenticalLapsScoreHundred(t *testing.T) {
	r := Analyze(lapsWith([]float64{30, 40, 50}, []float64{30, 40, 50}, []float64{30, 40, 50}), 3)
	require.NotNil(t, r.ConsistencyScore)
	assert.Equal(t, 100.0, *r.ConsistencyScore)
	assert.Equal(t, LabelVeryStable, r.Label)
	assert.Equal(t, 3, r.ValidLaps)
	require.Len(t, r.Sectors, 3)
	assert.Equal(t, 0.0, *r.Sectors[0].CV)
	assert.Empty(t, r.Reason)
}

func TestAnalyze_Dispersion(t *testing.T) {
	// Sector 1: 10 and 12, mean 11, sample std √2.
	// The third lap missed gate 1 but still times sector 2.
	r := Analyze(lapsWith([]float64{10, 20}, []float64{12, 20}, []float64{-1, 20}), 2)
	assert.Equal(t, 3, r.ValidLaps)
	assert.Equal(t, 3, r.Sectors[1].Count)

	s1 := r.Sectors[0]
	assert.Equal(t, 2, s1.Count)
	assert.InDelta(t, 11, *s1.Mean, 1e-9)
	assert.InDelta(t, 1.41421356, *s1.StdDev, 1e-6)
	assert.InDelta(t, 0.12856487, *s1.CV, 1e-6)
	assert.Equal(t, 10.0, *s1.Min)
	assert.Equal(t, 12.0, *s1.Max)

	// mean CV = (0.1286 + 0) / 2 -> 93.6
	assert.Equal(t, 93.6, *r.ConsistencyScore)
	assert.Equal(t, LabelVariable, r.Label)

	require.Len(t, r.Hotspots, 2)
	assert.Equal(t, Hotspot{Sector: 1, CVPercent: 12.9}, r.Hotspots[0])
}

func TestAnalyze_PartiallyTimedLaps(t *testing.T) {
	r := Analyze(lapsWith([]float64{30, 40, 50}, []float64{31, -1, -1}), 3)
	assert.Equal(t, 2, r.ValidLaps)
	assert.Empty(t, r.Reason)

	require.Len(t, r.Sectors, 3)
	assert.Equal(t, 2, r.Sectors[0].Count)
	assert.InDelta(t, 30.5, *r.Sectors[0].Mean, 1e-9)
	for _, s := range r.Sectors[1:] {
		assert.Equal(t, 1, s.Count)
		assert.Nil(t, s.CV)
		require.NotNil(t, s.Min)
	}

	// Sector 1 CV = 0.7071 / 30.5 = 0.0232.
	require.NotNil(t, r.ConsistencyScore)
	assert.Equal(t, 97.7, *r.ConsistencyScore)
	assert.Equal(t, LabelStable, r.Label)
	assert.Equal(t, []Hotspot{{Sector: 1, CVPercent: 2.3}}, r.Hotspots)
}

func TestAnalyze_NoSectorSpread(t *testing.T) {
	r := Analyze(lapsWith([]float64{1, -1}, []float64{-1, 2}), 2)
	assert.Equal(t, 2, r.ValidLaps)
	require.NotNil(t, r.ConsistencyScore)
	assert.Equal(t, 100.0, *r.ConsistencyScore)
	assert.Empty(t, r.Hotspots)
}

func TestAnalyze_ScoreFloorsAtZero(t *testing.T) {
	r := Analyze(lapsWith([]float64{1}, []float64{100}), 1)
	assert.Equal(t, 0.0, *r.ConsistencyScore)
	assert.Equal(t, LabelHighlyVariable, r.Label)
}

func TestAnalyze_HotspotsLimitedToThree(t *testing.T) {
	r := Analyze(lapsWith(
		[]float64{10, 10, 10, 10},
		[]float64{11, 12, 13, 14},
	), 4)
	require.Len(t, r.Hotspots, 3)
	assert.Equal(t, 4, r.Hotspots[0].Sector)
	assert.Equal(t, 3, r.Hotspots[1].Sector)
	assert.Equal(t, 2, r.Hotspots[2].Sector)
}

func TestAnalyze_EmptyReports(t *testing.T) {
	tests := []struct {
		name   string
		laps   []telemetry.Lap
		count  int
		reason string
	}{
		{"no laps", nil, 3, ReasonNoData},
		{"no sectors", lapsWith([]float64{1}, []float64{2}), 0, ReasonNoData},
		{"one lap", lapsWith([]float64{1, 2}), 2, ReasonInsufficientLaps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Analyze(tt.laps, tt.count)
			assert.Equal(t, tt.reason, r.Reason)
			assert.Nil(t, r.ConsistencyScore)
			assert.Empty(t, r.Sectors)
			assert.Empty(t, r.Hotspots)
		})
	}
}

func TestLabel(t *testing.T) {
	tests := map[float64]string{
		100: LabelVeryStable, 98: LabelVeryStable, 97.9: LabelStable, 95: LabelStable,
		94.9: LabelVariable, 90: LabelVariable, 89.9: LabelHighlyVariable, 0: LabelHighlyVariable,
	}
	for score, want := range tests {
		assert.Equal(t, want, Label(score), "score %.1f", score)
	}
}
