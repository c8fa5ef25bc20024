package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/catalog"
	"github.com/banshee-data/laptrace/internal/config"
	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/imu"
	"github.com/banshee-data/laptrace/internal/ingest"
	"github.com/banshee-data/laptrace/internal/simulate"
	"github.com/banshee-data/laptrace/internal/timeutil"
	"github.com/banshee-data/laptrace/internal/track"
)

const kariCSV = "/in/kari_simulation.csv"

func testConfig() *config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	dataDir, tz, off := "/data", "UTC", false
	cfg.DataDir = &dataDir
	cfg.Timezone = &tz
	cfg.RenderMap = &off
	return cfg
}

func newTestProcessor(t *testing.T, cat *catalog.Catalog) (*Processor, *fsutil.MemoryFileSystem) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, simulate.NewKari(11).WriteFile(mfs, kariCSV))

	p, err := NewProcessor(Options{
		Config:  testConfig(),
		FS:      mfs,
		Clock:   timeutil.NewMockClock(time.Date(2025, 1, 21, 9, 30, 0, 0, time.UTC)),
		Catalog: cat,
	})
	require.NoError(t, err)
	return p, mfs
}

func TestProcess_NewTrackEndToEnd(t *testing.T) {
	p, mfs := newTestProcessor(t, nil)

	res := p.Process(context.Background(), kariCSV, 0)
	require.True(t, res.OK, "kind %s: %v", res.Kind, res.Err)
	assert.Empty(t, res.Degraded)

	require.NotNil(t, res.Track)
	assert.True(t, res.Generated)
	assert.Equal(t, 1, res.Track.TrackID)
	assert.Equal(t, "track_1", res.Track.FolderName)
	require.Len(t, res.Track.Sectors, 3)
	assert.True(t, mfs.Exists("/data/tracks/track_1/track.json"))
	assert.True(t, mfs.Exists("/data/tracks/track_1/geometry.json"))

	entry, ok := p.Registry().ByID(1)
	require.True(t, ok)
	assert.Equal(t, "track_1", entry.FolderName)

	require.GreaterOrEqual(t, len(res.Laps), 2)
	for _, l := range res.Laps {
		for _, s := range res.Track.Sectors {
			assert.NotNil(t, l.SectorTimes[s.ID], "%s %s", l.Name(), s.ID)
		}
	}

	assert.True(t, res.TBLUpdated)
	rec := p.Ledger().Load(1)
	require.Len(t, rec.Sectors, 3)
	require.NotNil(t, rec.TotalBestTime)
	sum := 0.0
	for _, s := range rec.Sectors {
		sum += s.BestTime
	}
	assert.InDelta(t, sum, *rec.TotalBestTime, 1e-6)

	assert.True(t, res.Session.Calibration.Calibrated)
	assert.Equal(t, imu.MethodGPSPhysics, res.Session.Calibration.Method)
	require.NotNil(t, res.Session.Signals)
	assert.Len(t, res.Session.Signals.LeanAngle, res.Session.Len())

	assert.Equal(t, "/data/sessions/track_1/nov14Session1.json", res.ExportPath)
	assert.True(t, mfs.Exists("/data/sessions/track_1/nov14Session1_telemetry.json"))
	assert.NotNil(t, res.Diagnostics.ConsistencyScore)
}

func TestProcess_SecondRunIdentifiesTrack(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	ctx := context.Background()

	first := p.Process(ctx, kariCSV, 0)
	require.True(t, first.OK)

	second := p.Process(ctx, kariCSV, 0)
	require.True(t, second.OK)
	assert.False(t, second.Generated)
	assert.Equal(t, first.Track.TrackID, second.Track.TrackID)
	assert.False(t, second.TBLUpdated, "identical laps cannot improve the ledger")
	assert.Equal(t, "/data/sessions/track_1/nov14Session2.json", second.ExportPath)
	assert.Equal(t, 2, p.Registry().PeekNextID())
}

func TestProcess_ForcedTrack(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	ctx := context.Background()
	require.True(t, p.Process(ctx, kariCSV, 0).OK)

	res := p.Process(ctx, kariCSV, 1)
	require.True(t, res.OK)
	assert.Equal(t, 1, res.Track.TrackID)

	res = p.Process(ctx, kariCSV, 9)
	assert.False(t, res.OK)
	assert.Equal(t, KindNoTrack, res.Kind)
	assert.ErrorIs(t, res.Err, ErrUnknownTrack)
}

func TestProcess_LoadFailures(t *testing.T) {
	p, mfs := newTestProcessor(t, nil)
	require.NoError(t, mfs.WriteFile("/in/empty.csv", []byte("timestamp,latitude,longitude\n"), 0644))

	tests := []struct {
		name string
		path string
		is   error
	}{
		{"missing file", "/in/nope.csv", nil},
		{"header only", "/in/empty.csv", ingest.ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Process(context.Background(), tt.path, 0)
			assert.False(t, res.OK)
			assert.Equal(t, KindLoad, res.Kind)
			require.Error(t, res.Err)
			if tt.is != nil {
				assert.ErrorIs(t, res.Err, tt.is)
			}
		})
	}
}

func TestProcess_FolderCollision(t *testing.T) {
	p, mfs := newTestProcessor(t, nil)
	require.NoError(t, mfs.MkdirAll("/data/tracks/track_1", 0755))

	res := p.Process(context.Background(), kariCSV, 0)
	assert.False(t, res.OK)
	assert.Equal(t, KindNoTrack, res.Kind)
	assert.ErrorIs(t, res.Err, track.ErrTrackExists)
	assert.False(t, mfs.Exists("/data/tracks/track_1/track.json"))
}

func TestProcess_FusionFailureDegrades(t *testing.T) {
	p, mfs := newTestProcessor(t, nil)
	ctx := context.Background()
	require.True(t, p.Process(ctx, kariCSV, 0).OK)

	short := simulate.NewKari(2)
	short.Laps = 1
	short.Waypoints = simulate.KariWaypoints[:2]
	short.StepsPerSegment = 10
	require.NoError(t, short.WriteFile(mfs, "/in/short.csv"))

	res := p.Process(ctx, "/in/short.csv", 1)
	require.True(t, res.OK)
	require.NotEmpty(t, res.Degraded)
	assert.Equal(t, KindFusion, res.Degraded[0].Kind)
	assert.ErrorIs(t, res.Degraded[0], imu.ErrInsufficientData)
	assert.False(t, res.Session.Calibration.Calibrated)
	assert.NotEmpty(t, res.Session.Calibration.Reason)
	assert.Nil(t, res.Session.Signals)
	assert.NotEmpty(t, res.ExportPath, "export still runs")
}

func TestProcess_FusionPanicDegrades(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	p.fusion = func(imu.Input) (*imu.Result, error) {
		var sig []float64
		_ = sig[3]
		return nil, nil
	}

	res := p.Process(context.Background(), kariCSV, 0)
	require.True(t, res.OK, "kind %s: %v", res.Kind, res.Err)
	require.Len(t, res.Degraded, 1)
	assert.Equal(t, KindFusion, res.Degraded[0].Kind)
	assert.ErrorContains(t, res.Degraded[0], "index out of range")
	assert.False(t, res.Session.Calibration.Calibrated)
	assert.Nil(t, res.Session.Signals)
	assert.True(t, res.TBLUpdated, "later stages still run")
	assert.NotEmpty(t, res.ExportPath)
}

func TestProcess_Canceled(t *testing.T) {
	p, mfs := newTestProcessor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Process(ctx, kariCSV, 0)
	assert.False(t, res.OK)
	assert.Equal(t, KindCanceled, res.Kind)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.False(t, mfs.Exists("/data/tracks"))
}

func TestProcess_Catalog(t *testing.T) {
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	p, _ := newTestProcessor(t, cat)
	ctx := context.Background()
	res := p.Process(ctx, kariCSV, 0)
	require.True(t, res.OK)
	assert.Empty(t, res.Degraded)

	sessions, err := cat.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, "nov14Session1", s.SessionName)
	assert.Equal(t, "kari_simulation.csv", s.SourceFile)
	assert.Equal(t, len(res.Laps), s.LapCount)
	assert.NotNil(t, s.TBLTotal)

	laps, err := cat.Laps(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, laps, len(res.Laps))
	assert.Len(t, laps[0].SectorTimes, 3)
}

func TestNewProcessor_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	zero := 0
	cfg.SectorCount = &zero
	_, err := NewProcessor(Options{Config: cfg, FS: fsutil.NewMemoryFileSystem()})
	assert.Error(t, err)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		kind  ErrorKind
		name  string
		fatal bool
	}{
		{KindLoad, "load", true},
		{KindNoTrack, "no_track", true},
		{KindCanceled, "canceled", true},
		{KindFusion, "fusion", false},
		{KindPersistence, "persistence", false},
		{KindDiagnostics, "diagnostics", false},
		{KindExport, "export", false},
		{KindCatalog, "catalog", false},
		{ErrorKind(42), "ErrorKind(42)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.fatal, tt.kind.Fatal())
		})
	}

	err := StageError{Kind: KindExport, Err: ingest.ErrEmpty}
	assert.Equal(t, "export: no samples in input", err.Error())
	assert.ErrorIs(t, err, ingest.ErrEmpty)
}
