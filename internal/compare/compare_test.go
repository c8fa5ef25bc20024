package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/testutil"
)

func TestResample_StraightLine(t *testing.T) {
	s := testutil.LineSession("r.csv", 100, []testutil.Waypoint{{NorthM: 0, T: 0}, {NorthM: 20, T: 2}})
	pts := NewResampler(10).Resample(s.Samples)

	require.Len(t, pts, 3)
	assert.Equal(t, 0.0, pts[0].Distance)
	assert.Equal(t, 0.0, pts[0].Time)
	assert.InDelta(t, 1.0, pts[1].Time, 0.01)
	assert.InDelta(t, 2.0, pts[2].Time, 0.01)
	assert.InDelta(t, s.Samples[1].GPS.Lat, pts[2].Lat, 1e-7)
}

func TestResample_SkipsStationarySamples(t *testing.T) {
	s := testutil.LineSession("r.csv", 0, []testutil.Waypoint{
		{NorthM: 0, T: 0}, {NorthM: 0, T: 5}, {NorthM: 0, T: 6}, {NorthM: 30, T: 9},
	})
	pts := NewResampler(10).Resample(s.Samples)
	require.Len(t, pts, 4)
	// Movement starts at t=6; the first 10 m is covered in 1 s.
	assert.InDelta(t, 7.0, pts[1].Time, 0.01)
	assert.InDelta(t, 30.0, pts[3].Distance, 1e-9)
}

func TestResample_Defaults(t *testing.T) {
	assert.Equal(t, DefaultStepM, NewResampler(0).StepM)
	assert.Nil(t, NewResampler(10).Resample(nil))
}

func TestCompare(t *testing.T) {
	fast := testutil.LineSession("fast", 0, []testutil.Waypoint{{NorthM: 0, T: 0}, {NorthM: 40, T: 2}})
	slow := testutil.LineSession("slow", 50, []testutil.Waypoint{{NorthM: 0, T: 0}, {NorthM: 30, T: 3}})

	r := NewResampler(10)
	rows := r.CompareLaps(
		telemetry.NewLap(fast, 0, 2, 1),
		telemetry.NewLap(slow, 0, 2, 1),
	)
	require.Len(t, rows, 4)
	assert.InDelta(t, 0.5, rows[1].RefTime, 0.01)
	assert.InDelta(t, 1.0, rows[1].TargetTime, 0.01)
	assert.InDelta(t, 1.5, rows[3].DeltaTime, 0.01)

	sum := Summarize(rows)
	assert.InDelta(t, 1.5, sum.MaxLoss, 0.01)
	assert.Zero(t, sum.MaxGain)
	assert.InDelta(t, 0.75, sum.MeanDelta, 0.01)
	assert.InDelta(t, 1.5, sum.FinalDelta, 0.01)

	assert.Equal(t, Summary{}, Summarize(nil))
}
