package track

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Manager holds every known track and matches sessions against their start
// lines.
type Manager struct {
	mu        sync.RWMutex
	tracksDir string
	fsys      fsutil.FileSystem
	tracks    []*Track
}

// NewManager returns an empty manager over tracksDir. Call Load to read
// the stored tracks.
func NewManager(tracksDir string, fsys fsutil.FileSystem) *Manager {
	return &Manager{tracksDir: tracksDir, fsys: fsys}
}

// Load replaces the in-memory set with every tracksDir/*/track.json, in
// folder name order. Unreadable or invalid documents are logged and
// skipped. A missing tracks directory yields no tracks.
func (m *Manager) Load() error {
	entries, err := m.fsys.ReadDir(m.tracksDir)
	if errors.Is(err, fs.ErrNotExist) {
		m.setTracks(nil)
		return nil
	}
	if err != nil {
		return err
	}

	var tracks []*Track
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(m.tracksDir, e.Name(), TrackFile)
		if !m.fsys.Exists(path) {
			continue
		}
		t, err := ReadTrack(m.fsys, path)
		if err != nil {
			opsf("failed to load track from %s: %v", path, err)
			continue
		}
		if t.FolderName == "" {
			t.FolderName = e.Name()
		}
		tracks = append(tracks, t)
	}
	m.setTracks(tracks)
	diagf("loaded %d tracks from %s", len(tracks), m.tracksDir)
	return nil
}

func (m *Manager) setTracks(t []*Track) {
	m.mu.Lock()
	m.tracks = t
	m.mu.Unlock()
}

// Tracks returns the loaded tracks in load order.
func (m *Manager) Tracks() []*Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Track, len(m.tracks))
	copy(out, m.tracks)
	return out
}

// Add caches a freshly generated track.
func (m *Manager) Add(t *Track) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.tracks {
		if existing.TrackID == t.TrackID {
			m.tracks[i] = t
			return
		}
	}
	m.tracks = append(m.tracks, t)
}

// ByID returns the track with id, or nil.
func (m *Manager) ByID(id int) *Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tracks {
		if t.TrackID == id {
			return t
		}
	}
	return nil
}

// Identify returns the first track, in load order, whose start line has
// any session sample inside its radius. It returns nil when nothing
// matches.
func (m *Manager) Identify(session *telemetry.Session) *Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tracks {
		if t.StartLine == nil {
			continue
		}
		for _, s := range session.Samples {
			if near(t.StartLine, s.GPS.Lat, s.GPS.Lon) {
				return t
			}
		}
	}
	return nil
}

// IdentifyPoint is Identify for a single position.
func (m *Manager) IdentifyPoint(lat, lon float64) *Track {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tracks {
		if t.StartLine != nil && near(t.StartLine, lat, lon) {
			return t
		}
	}
	return nil
}

func near(sl *StartLine, lat, lon float64) bool {
	return geo.DistanceKm(lat, lon, sl.Lat, sl.Lon) < sl.Radius()/1000.0
}
