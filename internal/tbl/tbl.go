// Package tbl keeps each track's theoretical best lap: the best time ever
// seen for every sector, and their sum.
package tbl

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/stats"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/timeutil"
	"github.com/banshee-data/laptrace/internal/track"
)

// SchemaVersion is written into every tbl.json.
const SchemaVersion = "1.0"

// SectorBest is the best time seen for one sector. SectorIndex is 0-based.
type SectorBest struct {
	SectorIndex int     `json:"sector_index"`
	BestTime    float64 `json:"best_time"`
}

// Record is the tbl.json document.
type Record struct {
	SchemaVersion        string         `json:"schema_version,omitempty"`
	TrackID              int            `json:"track_id"`
	TrackName            string         `json:"track_name,omitempty"`
	SectorCount          int            `json:"sector_count"`
	Sectors              []SectorBest   `json:"sectors"`
	TotalBestTime        *float64       `json:"total_best_time"`
	LastUpdatedSessionID *string        `json:"last_updated_session_id"`
	LastUpdatedTime      *string        `json:"last_updated_time"`
	Records              *stats.Records `json:"records,omitempty"`
}

// NewRecord returns the empty ledger for a track.
func NewRecord(trackID int) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		TrackID:       trackID,
		Sectors:       []SectorBest{},
	}
}

// SectorTimes returns the best times ordered by sector index.
func (r *Record) SectorTimes() []float64 {
	sorted := append([]SectorBest(nil), r.Sectors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SectorIndex < sorted[j].SectorIndex })
	out := make([]float64, len(sorted))
	for i, s := range sorted {
		out[i] = s.BestTime
	}
	return out
}

// Manager reads and writes tbl.json files inside track folders.
type Manager struct {
	tracksDir string
	fsys      fsutil.FileSystem
	registry  *registry.Store
	clock     timeutil.Clock
}

// NewManager returns a Manager. Track folders are resolved through reg.
func NewManager(tracksDir string, fsys fsutil.FileSystem, reg *registry.Store, clock timeutil.Clock) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{tracksDir: tracksDir, fsys: fsys, registry: reg, clock: clock}
}

// Path returns the ledger location for trackID. Unregistered tracks use
// the folder "track_<id>".
func (m *Manager) Path(trackID int) string {
	folder := ""
	if m.registry != nil {
		folder = m.registry.FolderName(trackID)
	}
	if folder == "" {
		folder = fmt.Sprintf("track_%d", trackID)
	}
	return filepath.Join(m.tracksDir, folder, track.LedgerFile)
}

// Init writes the empty ledger for a freshly generated track.
func (m *Manager) Init(t *track.Track) error {
	rec := NewRecord(t.TrackID)
	rec.TrackName = t.TrackName
	rec.SectorCount = len(t.Sectors)
	rec.Records = stats.NewRecords()
	return fsutil.WriteJSON(m.fsys, filepath.Join(m.tracksDir, t.FolderName, track.LedgerFile), rec, 4)
}

// Load returns the ledger for trackID. A missing or unreadable file gives
// an empty ledger.
func (m *Manager) Load(trackID int) *Record {
	path := m.Path(trackID)

	var rec Record
	err := fsutil.ReadJSON(m.fsys, path, &rec)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRecord(trackID)
	}
	if err != nil {
		opsf("error loading %s: %v", path, err)
		return NewRecord(trackID)
	}
	if rec.Sectors == nil {
		rec.Sectors = []SectorBest{}
	}
	return &rec
}

// Save writes rec to its track's ledger.
func (m *Manager) Save(rec *Record) error {
	rec.SchemaVersion = SchemaVersion
	if err := fsutil.WriteJSON(m.fsys, m.Path(rec.TrackID), rec, 4); err != nil {
		opsf("error saving ledger for track %d: %v", rec.TrackID, err)
		return err
	}
	return nil
}

// sectorIndex maps "S<k>" to k-1. Other ids give -1.
func sectorIndex(id string) int {
	if !strings.HasPrefix(id, "S") || len(id) < 2 {
		return -1
	}
	digits := id[1:]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return -1
		}
	}
	k, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return k - 1
}

// SessionBests returns the fastest non-nil time per sector index across
// the session's laps.
func SessionBests(laps []telemetry.Lap) map[int]float64 {
	bests := make(map[int]float64)
	for _, lap := range laps {
		for id, v := range lap.SectorTimes {
			if v == nil {
				continue
			}
			idx := sectorIndex(id)
			if idx < 0 {
				continue
			}
			if cur, ok := bests[idx]; !ok || *v < cur {
				bests[idx] = *v
			}
		}
	}
	return bests
}

// UpdateFromSession folds the session's sector bests into the track's
// ledger. A stored best is replaced only by a strictly smaller time. When
// anything improves, the total is recomputed as the sum of every known
// sector best and the ledger is saved. It reports whether the ledger
// improved; a non-nil error means the improvement was not persisted.
func (m *Manager) UpdateFromSession(session *telemetry.Session, t *track.Track) (bool, error) {
	if t == nil || t.TrackID <= 0 {
		return false, nil
	}

	rec := m.Load(t.TrackID)
	rec.TrackName = t.TrackName
	rec.SectorCount = len(t.Sectors)

	bests := SessionBests(session.Laps)
	if len(bests) == 0 {
		return false, nil
	}

	stored := make(map[int]float64, len(rec.Sectors))
	for _, s := range rec.Sectors {
		stored[s.SectorIndex] = s.BestTime
	}

	updated := false
	for idx, v := range bests {
		if cur, ok := stored[idx]; !ok || v < cur {
			diagf("track %d sector %d: %.3f -> %.3f", t.TrackID, idx+1, cur, v)
			stored[idx] = v
			updated = true
		}
	}
	if !updated {
		return false, nil
	}

	indices := make([]int, 0, len(stored))
	for idx := range stored {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	rec.Sectors = make([]SectorBest, 0, len(indices))
	total := 0.0
	for _, idx := range indices {
		rec.Sectors = append(rec.Sectors, SectorBest{SectorIndex: idx, BestTime: stored[idx]})
		total += stored[idx]
	}
	rec.TotalBestTime = &total

	sessionID := session.Name
	now := timeutil.ISO8601(m.clock.Now())
	rec.LastUpdatedSessionID = &sessionID
	rec.LastUpdatedTime = &now

	opsf("theoretical best for track %d improved to %.3fs", t.TrackID, total)
	return true, m.Save(rec)
}

// UpdateRecords merges the session's real best lap and sector bests into
// the ledger's records and saves when anything improved.
func (m *Manager) UpdateRecords(session *telemetry.Session, t *track.Track) (bool, error) {
	if t == nil || t.TrackID <= 0 {
		return false, nil
	}
	rec := m.Load(t.TrackID)
	if rec.Records == nil {
		rec.Records = stats.NewRecords()
	}
	if !stats.UpdateTrackRecords(session.Name, session.Laps, t.Sectors, rec.Records) {
		return false, nil
	}
	return true, m.Save(rec)
}
