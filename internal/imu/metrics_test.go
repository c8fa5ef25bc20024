package imu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

func TestComputeMetrics(t *testing.T) {
	n := 40
	samples := make([]telemetry.Sample, n)
	for i := range samples {
		samples[i].Timestamp = float64(i) / 10
	}
	s := telemetry.NewSession("m.csv", samples)
	s.Laps = []telemetry.Lap{telemetry.NewLap(s, 0, 20, 1), telemetry.NewLap(s, 20, 40, 2)}

	sig := &telemetry.Signals{
		LeanAngle:     make([]float64, n),
		LateralG:      make([]float64, n),
		LongitudinalG: make([]float64, n),
		Acceleration:  make([]float64, n),
		Braking:       make([]float64, n),
		AlignedAccelX: make([]float64, n),
	}
	for i := 0; i < 20; i++ {
		sig.LateralG[i] = 0.5
		sig.LeanAngle[i] = 26.6
	}
	for i := 20; i < 40; i++ {
		sig.LateralG[i] = -1.0
		sig.LeanAngle[i] = -45
	}
	sig.Braking[5], sig.Braking[6] = 0.4, 0.8
	sig.Acceleration[25] = 0.3

	m := ComputeMetrics(s, sig)
	require.NotNil(t, m)
	assert.Equal(t, MetricsVersion, m.Version)
	require.Len(t, m.Laps, 2)

	l1, l2 := m.Laps[0], m.Laps[1]
	assert.Equal(t, 1, l1.Lap)
	assert.Equal(t, 0.5, l1.LateralAvg)
	assert.Equal(t, 1.0, l2.LateralPeak)
	assert.Equal(t, 0.6, l1.BrakingAvg)
	assert.Equal(t, 0.8, l1.BrakingPeak)
	assert.Equal(t, 0.3, l2.AccelAvg)
	assert.Equal(t, 45.0, l2.MaxLean)
	assert.Equal(t, 50.0, l1.LateralLoadScore)
	assert.Equal(t, 100.0, l2.LateralLoadScore)
	assert.Equal(t, 100.0, l1.StabilityScore)
}

func TestComputeMetrics_Empty(t *testing.T) {
	s := telemetry.NewSession("m.csv", make([]telemetry.Sample, 5))
	assert.Nil(t, ComputeMetrics(s, &telemetry.Signals{LateralG: make([]float64, 5)}))

	s.Laps = []telemetry.Lap{telemetry.NewLap(s, 0, 5, 1)}
	assert.Nil(t, ComputeMetrics(s, nil))
}
