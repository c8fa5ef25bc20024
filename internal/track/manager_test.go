package track

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/testutil"
)

func writeTrack(t *testing.T, mfs *fsutil.MemoryFileSystem, folder string, tr *Track) {
	t.Helper()
	require.NoError(t, fsutil.WriteJSON(mfs, filepath.Join(tracksDir, folder, TrackFile), tr, 4))
}

func trackAt(id int, lat, lon, radius float64) *Track {
	return &Track{
		TrackID:   id,
		TrackName: "t",
		StartLine: &StartLine{Lat: lat, Lon: lon, RadiusM: radius},
		Sectors:   []Sector{{ID: "S1", EndLat: lat, EndLon: lon, RadiusM: 20}},
	}
}

func TestManager_LoadAndIdentify(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	o := testutil.Origin
	farLat, farLon := geo.Destination(o.Lat, o.Lon, 90, 5000)

	writeTrack(t, mfs, "alpha", trackAt(1, farLat, farLon, 20))
	writeTrack(t, mfs, "beta", trackAt(2, o.Lat, o.Lon, 0)) // default radius
	require.NoError(t, mfs.WriteFile(filepath.Join(tracksDir, "broken", TrackFile), []byte(`{"track_id": "x"}`), 0644))
	require.NoError(t, mfs.WriteFile(filepath.Join(tracksDir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, mfs.MkdirAll(filepath.Join(tracksDir, "empty"), 0755))

	m := NewManager(tracksDir, mfs)
	require.NoError(t, m.Load())
	require.Len(t, m.Tracks(), 2)
	assert.Equal(t, "alpha", m.ByID(1).FolderName, "folder name filled from the directory")
	assert.Nil(t, m.ByID(3))

	near := testutil.LineSession("near", 0, []testutil.Waypoint{{NorthM: -100, T: 0}, {NorthM: -15, T: 1}, {NorthM: 100, T: 2}})
	got := m.Identify(near)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.TrackID)

	away := testutil.LineSession("away", 0, []testutil.Waypoint{{NorthM: -100, T: 0}, {NorthM: -25, T: 1}, {NorthM: 100, T: 2}})
	assert.Nil(t, m.Identify(away), "closest sample is 25 m from a 20 m start line")

	assert.Equal(t, 1, m.IdentifyPoint(farLat, farLon).TrackID)
	assert.Nil(t, m.IdentifyPoint(0, 0))
}

func TestManager_FirstMatchWins(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	o := testutil.Origin
	writeTrack(t, mfs, "a_first", trackAt(5, o.Lat, o.Lon, 20))
	writeTrack(t, mfs, "b_second", trackAt(6, o.Lat, o.Lon, 50))

	m := NewManager(tracksDir, mfs)
	require.NoError(t, m.Load())
	assert.Equal(t, 5, m.IdentifyPoint(o.Lat, o.Lon).TrackID)
}

func TestManager_MissingDirAndAdd(t *testing.T) {
	m := NewManager("/nowhere", fsutil.NewMemoryFileSystem())
	require.NoError(t, m.Load())
	assert.Empty(t, m.Tracks())

	o := testutil.Origin
	m.Add(trackAt(9, o.Lat, o.Lon, 20))
	m.Add(trackAt(9, o.Lat, o.Lon, 30))
	m.Add(nil)
	require.Len(t, m.Tracks(), 1)
	assert.Equal(t, 30.0, m.ByID(9).StartLine.RadiusM, "re-adding an id replaces it")
}

func TestTrack_Validate(t *testing.T) {
	tests := []struct {
		name    string
		track   Track
		wantErr bool
	}{
		{"valid", *trackAt(1, 0, 0, 20), false},
		{"zero id", Track{StartLine: &StartLine{}}, true},
		{"no start line", Track{TrackID: 1}, true},
		{"blank sector id", Track{TrackID: 1, StartLine: &StartLine{}, Sectors: []Sector{{}}}, true},
		{"duplicate sector", Track{TrackID: 1, StartLine: &StartLine{}, Sectors: []Sector{{ID: "S1"}, {ID: "S1"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.track.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartLine_Geofence(t *testing.T) {
	h := 45.0
	sl := StartLine{Lat: 1, Lon: 2, ExpectedHeading: &h}
	g := sl.Geofence()
	assert.Equal(t, DefaultStartRadiusM, g.RadiusM)
	assert.Equal(t, &h, g.ExpectedHeading)
}

func TestRenderMap_NoGeometry(t *testing.T) {
	_, err := RenderMap(trackAt(1, 0, 0, 20), &Geometry{})
	assert.Error(t, err)
}
