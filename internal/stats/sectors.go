// Package stats computes sector splits and best laps and folds them into a
// track's persistent records.
package stats

import (
	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/track"
)

// DefaultSectorRadiusM applies to gates stored without a radius.
const DefaultSectorRadiusM = 20.0

// CalculateSectors fills SectorTimes on every lap.
//
// Gates are visited in order. For each gate but the last, the first lap
// sample after the previous split that lies inside the gate ends the
// sector. A missed gate leaves that sector and every later one nil. The
// last sector closes the lap: lap duration minus the known splits, floored
// at zero. fallbackRadiusM replaces missing gate radii; zero means 20 m.
func CalculateSectors(laps []telemetry.Lap, sectors []track.Sector, fallbackRadiusM float64) {
	if len(sectors) == 0 {
		return
	}
	if fallbackRadiusM <= 0 {
		fallbackRadiusM = DefaultSectorRadiusM
	}

	for li := range laps {
		lap := &laps[li]
		if lap.SectorTimes == nil {
			lap.SectorTimes = make(map[string]*float64, len(sectors))
		}
		samples := lap.Samples()
		if len(samples) == 0 {
			for _, sec := range sectors {
				lap.SectorTimes[sec.ID] = nil
			}
			continue
		}

		prevSplit := samples[0].Timestamp
		missed := false
		known := 0.0

		for si, sec := range sectors {
			if missed {
				lap.SectorTimes[sec.ID] = nil
				continue
			}

			if si == len(sectors)-1 {
				rest := lap.Duration() - known
				if rest < 0 {
					rest = 0
				}
				lap.SectorTimes[sec.ID] = telemetry.Float(rest)
				continue
			}

			radius := sec.RadiusM
			if radius <= 0 {
				radius = fallbackRadiusM
			}

			crossed, ok := firstInside(samples, prevSplit, sec.EndLat, sec.EndLon, radius)
			if !ok {
				tracef("%s: gate %s missed", lap.Name(), sec.ID)
				lap.SectorTimes[sec.ID] = nil
				missed = true
				continue
			}
			split := crossed - prevSplit
			lap.SectorTimes[sec.ID] = telemetry.Float(split)
			known += split
			prevSplit = crossed
		}
	}
}

func firstInside(samples []telemetry.Sample, after, lat, lon, radiusM float64) (float64, bool) {
	for _, s := range samples {
		if s.Timestamp <= after {
			continue
		}
		if geo.DistanceMeters(s.GPS.Lat, s.GPS.Lon, lat, lon) < radiusM {
			return s.Timestamp, true
		}
	}
	return 0, false
}

// FindBestLap returns the shortest lap with a positive duration, or nil.
func FindBestLap(laps []telemetry.Lap) *telemetry.Lap {
	var best *telemetry.Lap
	for i := range laps {
		d := laps[i].Duration()
		if d <= 0 {
			continue
		}
		if best == nil || d < best.Duration() {
			best = &laps[i]
		}
	}
	return best
}
