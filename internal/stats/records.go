package stats

import (
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/track"
)

// Mark is a best time and the session that set it.
type Mark struct {
	Time    *float64 `json:"time"`
	Session string   `json:"session,omitempty"`
}

// Records holds a track's real (achieved) bests.
type Records struct {
	BestRealLap Mark            `json:"best_real_lap"`
	SectorBests map[string]Mark `json:"sector_bests"`
}

// NewRecords returns empty records.
func NewRecords() *Records {
	return &Records{SectorBests: make(map[string]Mark)}
}

// UpdateTrackRecords merges this session's best lap and sector times into
// rec, replacing a stored value only when strictly better. Every gate in
// sectors gets an entry, empty if never timed. It reports whether any best
// improved.
func UpdateTrackRecords(sessionName string, laps []telemetry.Lap, sectors []track.Sector, rec *Records) bool {
	if rec.SectorBests == nil {
		rec.SectorBests = make(map[string]Mark)
	}
	updated := false

	if best := FindBestLap(laps); best != nil {
		d := best.Duration()
		if rec.BestRealLap.Time == nil || d < *rec.BestRealLap.Time {
			rec.BestRealLap = Mark{Time: telemetry.Float(d), Session: sessionName}
			updated = true
		}
	}

	for _, s := range sectors {
		if _, ok := rec.SectorBests[s.ID]; !ok {
			rec.SectorBests[s.ID] = Mark{}
		}
	}

	for _, lap := range laps {
		for id, v := range lap.SectorTimes {
			if v == nil {
				continue
			}
			cur := rec.SectorBests[id]
			if cur.Time == nil || *v < *cur.Time {
				rec.SectorBests[id] = Mark{Time: telemetry.Float(*v), Session: sessionName}
				updated = true
			}
		}
	}
	return updated
}
