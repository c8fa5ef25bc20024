// Package diagnostics scores how consistently a rider repeats each sector.
package diagnostics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laptrace/internal/telemetry"
)

// Reasons reported for an empty report.
const (
	ReasonNoData           = "No Data"
	ReasonInsufficientLaps = "Insufficient valid laps (need 2+)"
)

// Consistency labels, from most to least stable.
const (
	LabelVeryStable     = "Very Stable"
	LabelStable         = "Stable"
	LabelVariable       = "Variable"
	LabelHighlyVariable = "Highly Variable"
)

const maxHotspots = 3

// SectorStats is the dispersion of one sector's times across valid laps.
// Spread fields are nil with fewer than two times.
type SectorStats struct {
	Sector int      `json:"sector"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std_dev"`
	CV     *float64 `json:"cv"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Hotspot is a sector with high lap-to-lap variation.
type Hotspot struct {
	Sector    int     `json:"sector"`
	CVPercent float64 `json:"cv_percent"`
}

// Report is the consistency analysis of one session.
type Report struct {
	ConsistencyScore *float64      `json:"consistency_score"`
	Label            string        `json:"label,omitempty"`
	ValidLaps        int           `json:"valid_laps"`
	Sectors          []SectorStats `json:"sectors"`
	Hotspots         []Hotspot     `json:"variance_hotspots"`
	Reason           string        `json:"reason,omitempty"`
}

// Label maps a consistency score to its description.
func Label(score float64) string {
	switch {
	case score >= 98:
		return LabelVeryStable
	case score >= 95:
		return LabelStable
	case score >= 90:
		return LabelVariable
	default:
		return LabelHighlyVariable
	}
}

// Analyze computes sector dispersion over the session's laps. Every lap
// counts as valid; each sector collects the times it actually has, so a
// missed gate only drops that one sector time. Fewer than two laps give an
// empty report with a reason.
func Analyze(laps []telemetry.Lap, sectorCount int) Report {
	empty := Report{Sectors: []SectorStats{}, Hotspots: []Hotspot{}}
	if len(laps) == 0 || sectorCount <= 0 {
		empty.Reason = ReasonNoData
		return empty
	}
	if len(laps) < 2 {
		empty.ValidLaps = len(laps)
		empty.Reason = ReasonInsufficientLaps
		return empty
	}

	times := make([][]float64, sectorCount)
	for _, lap := range laps {
		for k := range times {
			if v := lap.SectorTimes[telemetry.SectorID(k+1)]; v != nil {
				times[k] = append(times[k], *v)
			}
		}
	}

	r := Report{ValidLaps: len(laps), Sectors: make([]SectorStats, 0, sectorCount)}
	var cvs []float64
	for k, ts := range times {
		st := SectorStats{Sector: k + 1, Count: len(ts)}
		if len(ts) > 0 {
			st.Min = ptr(floats.Min(ts))
			st.Max = ptr(floats.Max(ts))
		}
		if len(ts) >= 2 {
			mean, std := stat.MeanStdDev(ts, nil)
			st.Mean = ptr(mean)
			st.StdDev = ptr(std)
			if mean > 0 {
				cv := std / mean
				st.CV = ptr(cv)
				cvs = append(cvs, cv)
			}
		}
		r.Sectors = append(r.Sectors, st)
	}

	// No sector with a spread means no measured variation.
	meanCV := 0.0
	if len(cvs) > 0 {
		meanCV = stat.Mean(cvs, nil)
	}
	score := math.Max(0, 1-meanCV) * 100
	score = math.Min(100, math.Round(score*10)/10)
	r.ConsistencyScore = &score
	r.Label = Label(score)
	r.Hotspots = hotspots(r.Sectors)
	return r
}

func hotspots(sectors []SectorStats) []Hotspot {
	out := []Hotspot{}
	for _, s := range sectors {
		if s.CV != nil {
			out = append(out, Hotspot{Sector: s.Sector, CVPercent: math.Round(*s.CV*1000) / 10})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CVPercent > out[j].CVPercent })
	if len(out) > maxHotspots {
		out = out[:maxHotspots]
	}
	return out
}

func ptr(v float64) *float64 { return &v }
