// Package pipeline runs one logger file through identification, lap
// timing, fusion, best-time bookkeeping and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/banshee-data/laptrace/internal/catalog"
	"github.com/banshee-data/laptrace/internal/config"
	"github.com/banshee-data/laptrace/internal/diagnostics"
	"github.com/banshee-data/laptrace/internal/export"
	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/imu"
	"github.com/banshee-data/laptrace/internal/ingest"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/stats"
	"github.com/banshee-data/laptrace/internal/tbl"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/timeutil"
	"github.com/banshee-data/laptrace/internal/track"
)

// Options configures a Processor. Only Config is required in practice;
// FS defaults to the OS filesystem and Clock to wall time.
type Options struct {
	Config *config.PipelineConfig
	FS     fsutil.FileSystem
	Clock  timeutil.Clock

	// Catalog, when set, receives a summary row for every processed session.
	Catalog *catalog.Catalog

	Fusion imu.Config
}

// Result reports what one Process call did. OK is false only for the
// fatal kinds; everything else that went wrong is listed in Degraded.
type Result struct {
	OK   bool
	Kind ErrorKind
	Err  error

	Session    *telemetry.Session
	Track      *track.Track
	Generated  bool
	Laps       []telemetry.Lap
	TBLUpdated bool
	ExportPath string

	Diagnostics       diagnostics.Report
	StaticCalibration imu.StaticCalibration

	Degraded []StageError
}

func (r *Result) degrade(kind ErrorKind, err error) {
	opsf("%s stage failed: %v", kind, err)
	r.Degraded = append(r.Degraded, StageError{Kind: kind, Err: err})
}

func (r Result) fail(kind ErrorKind, err error) Result {
	opsf("%s failed: %v", kind, err)
	r.OK, r.Kind, r.Err = false, kind, err
	return r
}

// Processor owns the stores of one data directory.
type Processor struct {
	mu sync.Mutex

	cfg      *config.PipelineConfig
	fsys     fsutil.FileSystem
	registry *registry.Store
	tracks   *track.Manager
	gen      *track.Generator
	ledger   *tbl.Manager
	engine   *imu.Engine
	fusion   func(imu.Input) (*imu.Result, error)
	exporter *export.Exporter
	catalog  *catalog.Catalog
}

// NewProcessor wires the stores under the configured data directory and
// loads the known tracks.
func NewProcessor(opts Options) (*Processor, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	reg := registry.NewStore(cfg.RegistryPath(), fsys, clock)
	ledger := tbl.NewManager(cfg.TracksDir(), fsys, reg, clock)

	gen := track.NewGenerator(cfg.TracksDir(), fsys, reg, cfg)
	gen.SetClock(clock)
	gen.SetLedger(ledger)

	exporter := export.NewExporter(cfg.SessionsDir(), fsys, reg, cfg.GetLocation())
	exporter.SetClock(clock)
	exporter.SetHTMLReport(cfg.GetHTMLReport())
	exporter.SetResampleStep(cfg.GetResampleStepM())

	p := &Processor{
		cfg:      cfg,
		fsys:     fsys,
		registry: reg,
		tracks:   track.NewManager(cfg.TracksDir(), fsys),
		gen:      gen,
		ledger:   ledger,
		engine:   imu.NewEngine(opts.Fusion),
		exporter: exporter,
		catalog:  opts.Catalog,
	}
	p.fusion = p.engine.Process
	if err := p.tracks.Load(); err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return p, nil
}

func (p *Processor) Registry() *registry.Store { return p.registry }
func (p *Processor) Tracks() *track.Manager     { return p.tracks }
func (p *Processor) Ledger() *tbl.Manager       { return p.ledger }

// Process runs the file at path. A positive forceTrackID skips
// identification. ctx is checked between stages.
func (p *Processor) Process(ctx context.Context, path string, forceTrackID int) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res Result
	if err := ctx.Err(); err != nil {
		return res.fail(KindCanceled, err)
	}

	session, st, err := ingest.Load(p.fsys, path)
	if err != nil {
		return res.fail(KindLoad, err)
	}
	res.Session = session
	diagf("%s: %d rows, %d loaded, %d skipped", session.Name, st.Rows, st.Loaded, st.Skipped)

	if err := ctx.Err(); err != nil {
		return res.fail(KindCanceled, err)
	}
	t, generated, err := p.resolveTrack(session, forceTrackID)
	if err != nil {
		return res.fail(KindNoTrack, err)
	}
	res.Track, res.Generated = t, generated

	if err := ctx.Err(); err != nil {
		return res.fail(KindCanceled, err)
	}
	session.Laps = p.detector(t).Detect(session)
	res.Laps = session.Laps
	if len(session.Laps) == 0 {
		opsf("%s: no laps detected on %s", session.Name, t.TrackName)
	}

	if err := ctx.Err(); err != nil {
		return res.fail(KindCanceled, err)
	}
	res.StaticCalibration = imu.Calibrate(session.Samples, imu.DefaultCalibrationWindow, imu.DefaultStillnessThreshold)
	if sc := res.StaticCalibration; sc.Calibrated {
		diagf("%s: still window at %.2f (std %.1f, %s), gravity %v", session.Name, sc.Epoch, sc.StdDev, sc.Confidence, sc.Gravity)
	} else {
		diagf("%s: no static calibration: %s", session.Name, sc.Reason)
	}
	p.fuse(session, &res)

	stats.CalculateSectors(session.Laps, t.Sectors, p.cfg.GetSectorRadiusM())

	if updated, err := p.ledger.UpdateFromSession(session, t); err != nil {
		res.degrade(KindPersistence, fmt.Errorf("tbl update: %w", err))
	} else {
		res.TBLUpdated = updated
	}
	if _, err := p.ledger.UpdateRecords(session, t); err != nil {
		res.degrade(KindPersistence, fmt.Errorf("track records: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return res.fail(KindCanceled, err)
	}
	report, err := analyze(session.Laps, len(t.Sectors))
	if err != nil {
		res.degrade(KindDiagnostics, err)
	}
	res.Diagnostics = report

	out, err := p.exporter.Export(export.Input{
		Session:     session,
		Track:       t,
		Ledger:      p.ledger.Load(t.TrackID),
		Diagnostics: &report,
		SourceFile:  filepath.Base(path),
	})
	res.ExportPath = out.Path
	if err != nil {
		res.degrade(KindExport, err)
	}

	if p.catalog != nil && out.Document != nil {
		if err := ctx.Err(); err != nil {
			return res.fail(KindCanceled, err)
		}
		if err := p.catalog.Insert(ctx, p.catalogEntry(session, t, out)); err != nil {
			res.degrade(KindCatalog, err)
		}
	}

	res.OK = true
	opsf("%s: %s, %d laps, %d degraded stages", session.Name, t.TrackName, len(res.Laps), len(res.Degraded))
	return res
}

// resolveTrack finds the session's track, generating a new one when
// nothing matches. A folder collision during generation means another run
// got there first, so the manager is reloaded and identification retried
// once.
func (p *Processor) resolveTrack(session *telemetry.Session, forceTrackID int) (*track.Track, bool, error) {
	if forceTrackID > 0 {
		t := p.tracks.ByID(forceTrackID)
		if t == nil {
			if err := p.tracks.Load(); err != nil {
				return nil, false, err
			}
			t = p.tracks.ByID(forceTrackID)
		}
		if t == nil || t.StartLine == nil {
			return nil, false, fmt.Errorf("track %d: %w", forceTrackID, ErrUnknownTrack)
		}
		diagf("%s: forced onto track %d", session.Name, forceTrackID)
		return t, false, nil
	}

	if t := p.tracks.Identify(session); t != nil {
		diagf("%s: identified %s", session.Name, t.TrackName)
		return t, false, nil
	}

	id := p.registry.NextID()
	t, err := p.gen.Generate(session, id, fmt.Sprintf("track_%d", id))
	if errors.Is(err, track.ErrTrackExists) {
		if lerr := p.tracks.Load(); lerr != nil {
			return nil, false, lerr
		}
		p.registry.Reload()
		if t := p.tracks.Identify(session); t != nil {
			return t, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("track generation: %w", err)
	}
	p.tracks.Add(t)
	return t, true, nil
}

// fuse derives the per-sample signals. Failure, including a panic in the
// engine, leaves the session uncalibrated with the reason recorded.
func (p *Processor) fuse(session *telemetry.Session, res *Result) {
	fail := func(err error) {
		session.Signals = nil
		session.Metrics = nil
		session.Calibration = telemetry.Calibration{Calibrated: false, Reason: err.Error()}
		res.degrade(KindFusion, err)
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("fusion: %v", r))
		}
	}()

	fused, err := p.fusion(imu.InputFromSession(session))
	if err != nil {
		fail(err)
		return
	}
	session.Signals = fused.Signals
	session.Calibration = fused.Calibration()
	session.Metrics = imu.ComputeMetrics(session, fused.Signals)
	diagf("%s: fusion %s, roll axis %s (r=%.2f), %d straight samples",
		session.Name, fused.Method, fused.RollAxis, fused.Correlation, fused.StraightSamples)
}

// analyze runs the consistency engine, turning a panic on malformed laps
// into an error so the rest of the run continues.
func analyze(laps []telemetry.Lap, sectorCount int) (report diagnostics.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = diagnostics.Report{Reason: diagnostics.ReasonNoData}
			err = fmt.Errorf("diagnostics: %v", r)
		}
	}()
	return diagnostics.Analyze(laps, sectorCount), nil
}

func (p *Processor) catalogEntry(session *telemetry.Session, t *track.Track, out export.Output) *catalog.Session {
	doc := out.Document
	entry := &catalog.Session{
		SessionID:        doc.Meta.ExportID,
		ExportID:         doc.Meta.ExportID,
		TrackID:          t.TrackID,
		TrackName:        t.TrackName,
		SessionName:      doc.Meta.SessionName,
		SourceFile:       doc.Meta.SourceFile,
		ExportPath:       out.Path,
		StartTime:        session.StartTime(),
		DurationSec:      session.Duration(),
		LapCount:         len(session.Laps),
		BestLapTime:      doc.Aggregates.BestLapTime,
		ConsistencyScore: doc.Aggregates.ConsistencyScore,
		Calibrated:       session.Calibration.Calibrated,
	}
	if rec := p.ledger.Load(t.TrackID); rec != nil {
		entry.TBLTotal = rec.TotalBestTime
	}
	if entry.SessionName == "" {
		entry.SessionName = strings.TrimSuffix(filepath.Base(out.Path), ".json")
	}
	for _, l := range session.Laps {
		lt := l.Duration()
		lap := catalog.Lap{LapNumber: l.Number, LapTime: &lt}
		for _, s := range t.Sectors {
			lap.SectorTimes = append(lap.SectorTimes, l.SectorTimes[s.ID])
		}
		entry.Laps = append(entry.Laps, lap)
	}
	return entry
}
