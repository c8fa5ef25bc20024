// Package export writes processed sessions as self-contained JSON documents
// plus a columnar telemetry file and an optional HTML report.
package export

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/laptrace/internal/compare"
	"github.com/banshee-data/laptrace/internal/diagnostics"
	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/security"
	"github.com/banshee-data/laptrace/internal/stats"
	"github.com/banshee-data/laptrace/internal/tbl"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/timeutil"
	"github.com/banshee-data/laptrace/internal/track"
	"github.com/banshee-data/laptrace/internal/version"
)

// DropoutGapSecs is the sample spacing above which a GPS fix is counted as
// dropped.
const DropoutGapSecs = 0.2

// Input is everything the exporter needs about one processed session.
type Input struct {
	Session     *telemetry.Session
	Track       *track.Track
	Ledger      *tbl.Record
	Diagnostics *diagnostics.Report
	SourceFile  string
}

// Exporter writes session documents under sessionsDir/<track folder>/.
type Exporter struct {
	sessionsDir string
	fsys        fsutil.FileSystem
	registry    *registry.Store
	clock       timeutil.Clock
	loc         *time.Location
	resampler   *compare.Resampler
	htmlReport  bool
	newID       func() string
}

// NewExporter returns an Exporter. Session dates are taken in loc.
func NewExporter(sessionsDir string, fsys fsutil.FileSystem, reg *registry.Store, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{
		sessionsDir: sessionsDir,
		fsys:        fsys,
		registry:    reg,
		clock:       timeutil.RealClock{},
		loc:         loc,
		resampler:   compare.NewResampler(compare.DefaultStepM),
		newID:       uuid.NewString,
	}
}

// SetClock sets the clock used when a session has no samples to date it.
func (e *Exporter) SetClock(c timeutil.Clock) { e.clock = c }

// SetHTMLReport enables the chart report next to each export.
func (e *Exporter) SetHTMLReport(on bool) { e.htmlReport = on }

// SetResampleStep sets the distance grid used for lap deltas.
func (e *Exporter) SetResampleStep(stepM float64) { e.resampler = compare.NewResampler(stepM) }

// Dir returns the directory that holds a track's session exports.
func (e *Exporter) Dir(trackID int) (string, error) {
	folder := ""
	if e.registry != nil {
		folder = e.registry.FolderName(trackID)
	}
	if folder == "" {
		folder = fmt.Sprintf("track_%d", trackID)
	}
	return security.JoinWithin(e.sessionsDir, folder)
}

// Output describes a written export.
type Output struct {
	Path     string
	Document *Document
}

// Export builds the document for in and writes it with its telemetry file.
// A non-nil error with a non-empty Output.Path means the session document
// was written but a companion file was not.
func (e *Exporter) Export(in Input) (Output, error) {
	trackID := 0
	if in.Track != nil {
		trackID = in.Track.TrackID
	}
	dir, err := e.Dir(trackID)
	if err != nil {
		return Output{}, err
	}

	when := e.clock.Now()
	if in.Session.Len() > 0 {
		when = timeutil.FromUnix(in.Session.StartTime())
	}
	name, err := NextFilename(e.fsys, dir, when.In(e.loc))
	if err != nil {
		return Output{}, err
	}
	stem := strings.TrimSuffix(name, ".json")

	doc := e.Build(in)
	doc.Meta.SessionID = stem
	doc.Meta.SessionName = stem

	path := filepath.Join(dir, name)
	if err := fsutil.WriteJSON(e.fsys, path, doc, 2); err != nil {
		return Output{}, err
	}
	out := Output{Path: path, Document: doc}

	if tel := BuildTelemetry(in.Session); tel != nil {
		if err := fsutil.WriteJSON(e.fsys, filepath.Join(dir, stem+TelemetrySuffix), tel, 0); err != nil {
			return out, fmt.Errorf("telemetry export: %w", err)
		}
	}

	if e.htmlReport {
		var buf bytes.Buffer
		if err := RenderReport(&buf, doc); err != nil {
			return out, fmt.Errorf("render report: %w", err)
		}
		if err := e.fsys.WriteFile(filepath.Join(dir, stem+ReportSuffix), buf.Bytes(), 0644); err != nil {
			return out, fmt.Errorf("write report: %w", err)
		}
	}

	opsf("exported %s (%d laps)", path, len(doc.Laps))
	return out, nil
}

// Build assembles the session document. Meta session id and name default
// to the session's own name; Export replaces them with the file stem.
func (e *Exporter) Build(in Input) *Document {
	s := in.Session
	doc := &Document{
		Meta: Meta{
			SessionID:     s.Name,
			SessionName:   s.Name,
			ExportID:      e.newID(),
			SourceFile:    in.SourceFile,
			DurationSec:   round(s.Duration(), 2),
			LoggerVersion: version.LoggerVersion(),
			SchemaVersion: SchemaVersion,
		},
		Environment: environment(s),
		Mode:        Mode{ModeType: "active"},
		Calibration: s.Calibration,
		Analysis: Analysis{
			Signals:     s.Signals,
			Metrics:     s.Metrics,
			Diagnostics: in.Diagnostics,
		},
		Track:      trackInfo(in.Track),
		References: references(in.Ledger),
		Integrity:  integrity(s),
	}
	if s.Len() > 0 {
		st := timeutil.ISO8601(timeutil.FromUnix(s.StartTime()))
		et := timeutil.ISO8601(timeutil.FromUnix(s.EndTime()))
		doc.Meta.StartTime, doc.Meta.EndTime = &st, &et
	}

	sectorIDs := sectorIDs(in.Track, s.Laps)
	best := stats.FindBestLap(s.Laps)
	doc.Laps = lapEntries(s, best, len(sectorIDs))
	doc.Sectors = sectorSummaries(s.Laps, sectorIDs)
	doc.Deltas = e.deltas(s.Laps, best, in.Ledger, len(sectorIDs))

	if best != nil {
		bt := round(best.Duration(), 3)
		doc.Aggregates.BestLapTime = &bt
		if in.Ledger != nil && in.Ledger.TotalBestTime != nil {
			gap := round(best.Duration()-*in.Ledger.TotalBestTime, 3)
			doc.Aggregates.GapToTheoreticalBest = &gap
		}
	}
	if in.Diagnostics != nil {
		doc.Aggregates.ConsistencyScore = in.Diagnostics.ConsistencyScore
	}
	return doc
}

func environment(s *telemetry.Session) Environment {
	env := Environment{GPSQuality: GPSQuality{TotalFixes: s.Len(), FixDropouts: countDropouts(s)}}
	if s.Len() == 0 {
		return env
	}
	var temp, pressure, sats float64
	for _, smp := range s.Samples {
		temp += smp.Env.Temp
		pressure += smp.Env.Pressure
		sats += float64(smp.GPS.Satellites)
	}
	n := float64(s.Len())
	if temp != 0 {
		env.AmbientTemperature = telemetry.Float(round(temp/n, 1))
	}
	if pressure != 0 {
		env.Pressure = telemetry.Float(round(pressure/n, 1))
	}
	env.GPSQuality.MeanSatellites = round(sats/n, 1)
	return env
}

func countDropouts(s *telemetry.Session) int {
	n := 0
	for i := 1; i < s.Len(); i++ {
		if s.Samples[i].Timestamp-s.Samples[i-1].Timestamp > DropoutGapSecs {
			n++
		}
	}
	return n
}

func integrity(s *telemetry.Session) Integrity {
	out := Integrity{CleanShutdown: true, GPSReliabilityScore: 1, Warnings: []string{}}
	if s.Len() == 0 {
		out.Warnings = append(out.Warnings, "no samples")
		return out
	}
	drops := countDropouts(s)
	if drops > 0 {
		out.DataLossDetected = true
		out.GPSReliabilityScore = round(1-float64(drops)/float64(s.Len()), 3)
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d GPS dropouts (gaps > %.1fs)", drops, DropoutGapSecs))
	}
	if s.Signals.Empty() {
		out.Warnings = append(out.Warnings, "no fused IMU signals")
	}
	return out
}

func trackInfo(t *track.Track) TrackInfo {
	if t == nil {
		return TrackInfo{TrackName: "Unknown Track"}
	}
	info := TrackInfo{TrackID: t.TrackID, TrackName: t.TrackName, SectorCount: len(t.Sectors)}
	if src := t.Metadata.SourceSession; src != "" {
		info.SectorDefinitionSource.FastestLapSessionID = &src
	}
	return info
}

func references(rec *tbl.Record) References {
	refs := References{SectorTimes: []float64{}, DeltaReference: "session_best"}
	if rec == nil {
		return refs
	}
	refs.TheoreticalBest = rec.TotalBestTime
	refs.SectorTimes = rec.SectorTimes()
	if rec.Records != nil && rec.Records.BestRealLap.Time != nil {
		refs.BestRealLap.LapTime = rec.Records.BestRealLap.Time
		if sid := rec.Records.BestRealLap.Session; sid != "" {
			refs.BestRealLap.SessionID = &sid
		}
	}
	return refs
}

// sectorIDs lists the sector ids in gate order: the track's sectors, or
// S1..Sk inferred from the highest id seen on any lap.
func sectorIDs(t *track.Track, laps []telemetry.Lap) []string {
	if t != nil && len(t.Sectors) > 0 {
		ids := make([]string, len(t.Sectors))
		for i, s := range t.Sectors {
			ids[i] = s.ID
		}
		return ids
	}
	highest := 0
	for _, lap := range laps {
		for id := range lap.SectorTimes {
			var k int
			if _, err := fmt.Sscanf(id, "S%d", &k); err == nil && k > highest {
				highest = k
			}
		}
	}
	ids := make([]string, highest)
	for k := range ids {
		ids[k] = telemetry.SectorID(k + 1)
	}
	return ids
}

func lapEntries(s *telemetry.Session, best *telemetry.Lap, sectorCount int) []LapEntry {
	out := make([]LapEntry, 0, len(s.Laps))
	for _, lap := range s.Laps {
		e := LapEntry{
			LapIndex:    lap.Number - 1,
			LapNumber:   lap.Number,
			StartTime:   round(lap.StartTime()-s.StartTime(), 3),
			Valid:       true,
			SectorTimes: make([]*float64, sectorCount),
		}
		if d := lap.Duration(); d > 0 {
			e.LapTime = telemetry.Float(round(d, 3))
			if best != nil {
				e.DeltaToReference = round(d-best.Duration(), 3)
				e.IsSessionBest = lap.Number == best.Number
			}
		}
		for k := 0; k < sectorCount; k++ {
			if v := lap.SectorTimes[telemetry.SectorID(k+1)]; v != nil {
				e.SectorTimes[k] = telemetry.Float(round(*v, 3))
			}
		}
		out = append(out, e)
	}
	return out
}

func sectorSummaries(laps []telemetry.Lap, ids []string) []SectorSummary {
	out := []SectorSummary{}
	for _, id := range ids {
		var times []float64
		for _, lap := range laps {
			if v := lap.SectorTimes[id]; v != nil {
				times = append(times, *v)
			}
		}
		if len(times) == 0 {
			continue
		}
		sort.Float64s(times)
		out = append(out, SectorSummary{
			SectorID:  id,
			Best:      round(times[0], 3),
			Median:    round(times[len(times)/2], 3),
			Worst:     round(times[len(times)-1], 3),
			LapsCount: len(times),
		})
	}
	return out
}

func (e *Exporter) deltas(laps []telemetry.Lap, best *telemetry.Lap, rec *tbl.Record, sectorCount int) Deltas {
	d := Deltas{Laps: []LapDelta{}, Sectors: []SectorDelta{}}
	if best != nil {
		ref := best.Number
		d.ReferenceLap = &ref
		meanSum := 0.0
		for _, lap := range laps {
			if lap.Number == best.Number {
				continue
			}
			summary := compare.Summarize(e.resampler.CompareLaps(*best, lap))
			summary.MaxGain = round(summary.MaxGain, 3)
			summary.MaxLoss = round(summary.MaxLoss, 3)
			summary.MeanDelta = round(summary.MeanDelta, 3)
			summary.FinalDelta = round(summary.FinalDelta, 3)
			d.Laps = append(d.Laps, LapDelta{LapNumber: lap.Number, Summary: summary})

			d.MaxGain = math.Max(d.MaxGain, summary.MaxGain)
			d.MaxLoss = math.Max(d.MaxLoss, summary.MaxLoss)
			meanSum += summary.MeanDelta
		}
		if len(d.Laps) > 0 {
			d.MeanDelta = round(meanSum/float64(len(d.Laps)), 3)
		}
	}

	sessionBests := tbl.SessionBests(laps)
	var tblBests map[int]float64
	if rec != nil {
		tblBests = make(map[int]float64, len(rec.Sectors))
		for _, s := range rec.Sectors {
			tblBests[s.SectorIndex] = s.BestTime
		}
	}
	for k := 0; k < sectorCount; k++ {
		sd := SectorDelta{SectorIndex: k}
		if v, ok := sessionBests[k]; ok {
			sd.SessionBest = telemetry.Float(round(v, 3))
		}
		if v, ok := tblBests[k]; ok {
			sd.TheoreticalBest = telemetry.Float(round(v, 3))
		}
		if sd.SessionBest != nil && sd.TheoreticalBest != nil {
			sd.Gap = telemetry.Float(round(*sd.SessionBest-*sd.TheoreticalBest, 3))
		}
		d.Sectors = append(d.Sectors, sd)
	}
	return d
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
