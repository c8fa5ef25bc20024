package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/timeutil"
)

func f(v float64) *float64 { return &v }

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	c.SetClock(timeutil.NewMockClock(time.Date(2025, 1, 21, 10, 0, 0, 0, time.UTC)))
	return c
}

func TestOpen_MigratesToLatest(t *testing.T) {
	c := openTest(t)
	v, dirty, err := c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	require.NoError(t, c.MigrateDown())
	v, _, err = c.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	require.NoError(t, c.MigrateUp())
	require.NoError(t, c.MigrateUp(), "second run is a no-op")
}

func TestInsertAndList(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	s := &Session{
		ExportID:    "e1",
		TrackID:     1,
		TrackName:   "Kari",
		SessionName: "jan21Session1",
		SourceFile:  "run.csv",
		StartTime:   1737451800,
		DurationSec: 400,
		LapCount:    2,
		BestLapTime: f(98.2),
		TBLTotal:    f(96.4),
		Calibrated:  true,
		Laps: []Lap{
			{LapNumber: 1, LapTime: f(98.2), SectorTimes: []*float64{f(30), f(33), f(35.2)}},
			{LapNumber: 2, LapTime: f(101.5), SectorTimes: []*float64{f(31), nil, f(36)}},
		},
	}
	require.NoError(t, c.Insert(ctx, s))
	require.NotEmpty(t, s.SessionID)
	assert.Equal(t, "2025-01-21T10:00:00.000000Z", s.ProcessedAt)

	require.NoError(t, c.Insert(ctx, &Session{TrackID: 2, SessionName: "other", ProcessedAt: "2025-01-22T00:00:00.000000Z"}))

	all, err := c.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "other", all[0].SessionName, "newest first")

	kari, err := c.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kari, 1)
	got := kari[0]
	assert.Equal(t, "Kari", got.TrackName)
	assert.Equal(t, 98.2, *got.BestLapTime)
	assert.Nil(t, got.ConsistencyScore)
	assert.True(t, got.Calibrated)

	laps, err := c.Laps(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, laps, 2)
	assert.Nil(t, laps[1].SectorTimes[1])
	assert.Equal(t, 36.0, *laps[1].SectorTimes[2])

	fastest, err := c.FastestLaps(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, fastest, 1)
	assert.Equal(t, 1, fastest[0].LapNumber)
}

func TestInsert_ReplacesSameID(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	s := &Session{SessionID: "fixed", TrackID: 1, SessionName: "a", Laps: []Lap{{LapNumber: 1}, {LapNumber: 2}}}
	require.NoError(t, c.Insert(ctx, s))
	s.SessionName = "b"
	s.Laps = s.Laps[:1]
	require.NoError(t, c.Insert(ctx, s))

	all, err := c.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].SessionName)

	laps, err := c.Laps(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, laps, 1)
}

func TestDelete(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	require.NoError(t, c.Insert(ctx, &Session{SessionID: "x", TrackID: 1, SessionName: "x", Laps: []Lap{{LapNumber: 1, LapTime: f(50)}}}))

	ok, err := c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	laps, err := c.Laps(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, laps)

	ok, err = c.Delete(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
