package tbl

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/testutil"
	"github.com/banshee-data/laptrace/internal/timeutil"
	"github.com/banshee-data/laptrace/internal/track"
)

const tracksDir = "/data/tracks"

func fixture(t *testing.T) (*Manager, *fsutil.MemoryFileSystem, *track.Track) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2025, 1, 21, 9, 30, 0, 0, time.UTC))
	reg := registry.NewStore("/data/metadata/registry.json", mfs, clock)
	reg.Register(1, "Kari", "kari")

	tr := &track.Track{
		TrackID:    1,
		TrackName:  "Kari",
		FolderName: "kari",
		StartLine:  &track.StartLine{},
		Sectors:    []track.Sector{{ID: "S1"}, {ID: "S2"}, {ID: "S3"}},
	}
	return NewManager(tracksDir, mfs, reg, clock), mfs, tr
}

// sessionWith builds a session whose laps carry the given sector times.
// A negative time is a missed gate.
func sessionWith(name string, laps ...[]float64) *telemetry.Session {
	s := testutil.LineSession(name, 0, []testutil.Waypoint{{NorthM: 0, T: 0}, {NorthM: 0, T: 1}})
	for n, times := range laps {
		lap := telemetry.NewLap(s, 0, 2, n+1)
		for k, v := range times {
			if v < 0 {
				lap.SectorTimes[telemetry.SectorID(k+1)] = nil
				continue
			}
			lap.SectorTimes[telemetry.SectorID(k+1)] = telemetry.Float(v)
		}
		s.Laps = append(s.Laps, lap)
	}
	return s
}

func TestManager_PathFallsBackToTrackID(t *testing.T) {
	m, _, _ := fixture(t)
	assert.Equal(t, filepath.Join(tracksDir, "kari", "tbl.json"), m.Path(1))
	assert.Equal(t, filepath.Join(tracksDir, "track_9", "tbl.json"), m.Path(9))
}

func TestManager_InitAndLoad(t *testing.T) {
	m, _, tr := fixture(t)
	require.NoError(t, m.Init(tr))

	rec := m.Load(1)
	assert.Equal(t, 1, rec.TrackID)
	assert.Equal(t, "Kari", rec.TrackName)
	assert.Equal(t, 3, rec.SectorCount)
	assert.Empty(t, rec.Sectors)
	assert.Nil(t, rec.TotalBestTime)
	require.NotNil(t, rec.Records)
}

func TestManager_LoadMissingOrCorrupt(t *testing.T) {
	m, mfs, _ := fixture(t)
	assert.Equal(t, NewRecord(1), m.Load(1))

	require.NoError(t, mfs.WriteFile(m.Path(1), []byte("{broken"), 0644))
	assert.Equal(t, NewRecord(1), m.Load(1))
}

func TestUpdateFromSession(t *testing.T) {
	m, _, tr := fixture(t)

	s := sessionWith("run1.csv", []float64{20, 31, 40}, []float64{21, 30, -1})
	updated, err := m.UpdateFromSession(s, tr)
	require.NoError(t, err)
	require.True(t, updated)

	rec := m.Load(1)
	want := []SectorBest{{0, 20}, {1, 30}, {2, 40}}
	if diff := cmp.Diff(want, rec.Sectors); diff != "" {
		t.Errorf("sectors mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, rec.TotalBestTime)
	assert.Equal(t, 90.0, *rec.TotalBestTime)
	assert.Equal(t, "run1.csv", *rec.LastUpdatedSessionID)
	assert.Equal(t, "2025-01-21T09:30:00.000000Z", *rec.LastUpdatedTime)
	assert.Equal(t, []float64{20, 30, 40}, rec.SectorTimes())

	// No improvement leaves the ledger untouched.
	updated, err = m.UpdateFromSession(sessionWith("run2.csv", []float64{20, 30, 41}), tr)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, "run1.csv", *m.Load(1).LastUpdatedSessionID)

	// One better sector lowers the total.
	updated, err = m.UpdateFromSession(sessionWith("run3.csv", []float64{-1, 29.5, 45}), tr)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 89.5, *m.Load(1).TotalBestTime)
}

func TestUpdateFromSession_PartialSectorsExcludedFromTotal(t *testing.T) {
	m, _, tr := fixture(t)
	updated, err := m.UpdateFromSession(sessionWith("run.csv", []float64{12, -1, -1}), tr)
	require.NoError(t, err)
	require.True(t, updated)

	rec := m.Load(1)
	assert.Len(t, rec.Sectors, 1)
	assert.Equal(t, 12.0, *rec.TotalBestTime)
}

func TestUpdateFromSession_NothingToDo(t *testing.T) {
	m, mfs, tr := fixture(t)

	updated, err := m.UpdateFromSession(sessionWith("empty.csv"), tr)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.False(t, mfs.Exists(m.Path(1)))

	updated, _ = m.UpdateFromSession(sessionWith("x.csv", []float64{1}), nil)
	assert.False(t, updated)
}

func TestSectorIndex(t *testing.T) {
	tests := map[string]int{
		"S1": 0, "S3": 2, "S12": 11,
		"S0": -1, "S": -1, "s1": -1, "S+1": -1, "X1": -1, "": -1,
	}
	for id, want := range tests {
		assert.Equal(t, want, sectorIndex(id), id)
	}
}

// Across any sequence of sessions every stored sector best is
// non-increasing, and the total converges to the sum of the best time ever
// observed in each sector.
func TestUpdateFromSession_Monotonic(t *testing.T) {
	m, _, tr := fixture(t)
	rng := rand.New(rand.NewSource(42))

	observed := map[int]float64{}
	prev := map[int]float64{}
	for run := 0; run < 50; run++ {
		var laps [][]float64
		for l := 0; l < 1+rng.Intn(4); l++ {
			times := make([]float64, 3)
			for k := range times {
				if rng.Float64() < 0.1 {
					times[k] = -1
					continue
				}
				times[k] = 20 + rng.Float64()*10
				if cur, ok := observed[k]; !ok || times[k] < cur {
					observed[k] = times[k]
				}
			}
			laps = append(laps, times)
		}

		_, err := m.UpdateFromSession(sessionWith("run.csv", laps...), tr)
		require.NoError(t, err)

		for _, s := range m.Load(1).Sectors {
			if p, ok := prev[s.SectorIndex]; ok && s.BestTime > p {
				t.Fatalf("run %d: sector %d best rose from %.3f to %.3f", run, s.SectorIndex, p, s.BestTime)
			}
			prev[s.SectorIndex] = s.BestTime
		}
	}

	want := 0.0
	for _, v := range observed {
		want += v
	}
	rec := m.Load(1)
	require.NotNil(t, rec.TotalBestTime)
	assert.InDelta(t, want, *rec.TotalBestTime, 1e-9)
}

func TestUpdateRecords(t *testing.T) {
	m, _, tr := fixture(t)
	require.NoError(t, m.Init(tr))

	s := sessionWith("run1.csv", []float64{20, 31, 40})
	updated, err := m.UpdateRecords(s, tr)
	require.NoError(t, err)
	assert.True(t, updated)

	rec := m.Load(1)
	require.NotNil(t, rec.Records)
	assert.Equal(t, 31.0, *rec.Records.SectorBests["S2"].Time)
	assert.Equal(t, "run1.csv", rec.Records.SectorBests["S2"].Session)
	assert.Equal(t, 1.0, *rec.Records.BestRealLap.Time)

	updated, err = m.UpdateRecords(s, tr)
	require.NoError(t, err)
	assert.False(t, updated)
}
