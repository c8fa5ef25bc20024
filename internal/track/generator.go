package track

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/banshee-data/laptrace/internal/config"
	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/geo"
	"github.com/banshee-data/laptrace/internal/laps"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/security"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/timeutil"
)

var (
	// ErrTrackExists is returned when the folder for a new track is already
	// taken. Existing geometry is never overwritten.
	ErrTrackExists = errors.New("track folder already exists")

	// ErrNoLaps is returned when no lap can be found to survey from.
	ErrNoLaps = errors.New("no laps detected to infer geometry")
)

const (
	SectorStrategy  = "distance_equal_v1"
	SmoothingWindow = 5

	minSectorRadiusM = 5.0
	maxSectorRadiusM = 30.0
	scanLimit        = 5000
	quickRejectDeg   = 0.002
	closureStride    = 5
)

// LedgerInitializer writes the empty best-time ledger for a new track.
type LedgerInitializer interface {
	Init(t *Track) error
}

// Generator surveys a new track from a session that matched no known track.
type Generator struct {
	tracksDir string
	fsys      fsutil.FileSystem
	registry  *registry.Store
	cfg       *config.PipelineConfig
	clock     timeutil.Clock
	ledger    LedgerInitializer
}

// NewGenerator returns a Generator writing under tracksDir. A nil cfg uses
// the defaults.
func NewGenerator(tracksDir string, fsys fsutil.FileSystem, reg *registry.Store, cfg *config.PipelineConfig) *Generator {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	return &Generator{
		tracksDir: tracksDir,
		fsys:      fsys,
		registry:  reg,
		cfg:       cfg,
		clock:     timeutil.RealClock{},
	}
}

// SetClock replaces the clock used for created_at.
func (g *Generator) SetClock(c timeutil.Clock) { g.clock = c }

// SetLedger installs the component that writes the new track's tbl.json.
func (g *Generator) SetLedger(l LedgerInitializer) { g.ledger = l }

// Generate surveys session into track id called name and persists it.
func (g *Generator) Generate(session *telemetry.Session, id int, name string) (*Track, error) {
	folder := registry.SanitizeName(name)
	dir, err := security.JoinWithin(g.tracksDir, folder)
	if err != nil {
		return nil, err
	}
	if g.fsys.Exists(dir) {
		opsf("track folder %q already exists, skipping generation", folder)
		return nil, fmt.Errorf("%s: %w", folder, ErrTrackExists)
	}
	if session.Len() == 0 {
		return nil, errors.New("empty session")
	}

	radius := g.cfg.GetStartRadiusM()
	startLat, startLon, found := DetectStartLine(session.Samples, LoopClosure{
		RadiusM:             radius,
		SkipSamples:         g.cfg.GetStartSkipSamples(),
		MinGapSamples:       g.cfg.GetLoopMinGapSamples(),
		MinSpeedKmh:         g.cfg.GetMinStartSpeedKmh(),
		HeadingToleranceDeg: g.cfg.GetLoopHeadingToleranceDeg(),
	})
	if !found {
		opsf("no closed loop found in %s, start line defaults to the first sample", session.Name)
	}

	detector := laps.NewDetector(
		laps.StartLine{Lat: startLat, Lon: startLon, RadiusM: radius},
		laps.WithMinLapTime(g.cfg.GetMinLapTime()),
		laps.WithHeadingTolerance(g.cfg.GetHeadingToleranceDeg()),
	)
	lapsFound := detector.Detect(session)
	if len(lapsFound) == 0 {
		return nil, ErrNoLaps
	}

	ref, ok := SelectReferenceLap(lapsFound)
	if !ok {
		return nil, fmt.Errorf("%w: no lap with positive duration", ErrNoLaps)
	}

	rawLats, rawLons := lapPath(ref)
	lats, lons := SmoothPath(rawLats, rawLons, SmoothingWindow)
	startLat, startLon = lats[0], lons[0]

	sectors, indices := SplitSectors(lats, lons, startLat, startLon, g.cfg.GetSectorCount())

	t := &Track{
		SchemaVersion: SchemaVersion,
		TrackID:       id,
		TrackName:     name,
		FolderName:    folder,
		StartLine:     &StartLine{Lat: startLat, Lon: startLon, RadiusM: radius},
		Sectors:       sectors,
		Metadata: Metadata{
			SectorStrategy: SectorStrategy,
			NumSectors:     len(sectors),
			SourceSession:  session.Name,
		},
		Location:  "Unknown",
		CreatedAt: timeutil.ISO8601(g.clock.Now()),
	}

	coords := make([][2]float64, len(lats))
	for i := range lats {
		coords[i] = [2]float64{lats[i], lons[i]}
	}
	geom := &Geometry{SchemaVersion: SchemaVersion, Coordinates: coords, SectorIndices: indices}

	if err := g.persist(dir, t, geom); err != nil {
		// A partial folder would block every later attempt.
		_ = g.fsys.RemoveAll(dir)
		return nil, fmt.Errorf("failed to save track artifacts: %w", err)
	}

	if g.registry != nil {
		g.registry.Register(id, name, folder)
	}
	opsf("generated track id %d: %s/ (%d sectors, reference lap %d, %.2fs)",
		id, folder, len(sectors), ref.Number, ref.Duration())
	return t, nil
}

func (g *Generator) persist(dir string, t *Track, geom *Geometry) error {
	if err := g.fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := fsutil.WriteJSON(g.fsys, filepath.Join(dir, TrackFile), t, 4); err != nil {
		return err
	}
	if err := fsutil.WriteJSON(g.fsys, filepath.Join(dir, GeometryFile), geom, 0); err != nil {
		return err
	}
	if g.ledger != nil {
		if err := g.ledger.Init(t); err != nil {
			return err
		}
	}

	if g.cfg.GetRenderMap() {
		png, err := RenderMap(t, geom)
		if err == nil {
			err = g.fsys.WriteFile(filepath.Join(dir, MapFile), png, 0644)
		}
		if err != nil {
			opsf("track map for %s not rendered: %v", t.FolderName, err)
		}
	}
	return nil
}

func lapPath(l telemetry.Lap) ([]float64, []float64) {
	samples := l.Samples()
	lats := make([]float64, len(samples))
	lons := make([]float64, len(samples))
	for i, s := range samples {
		lats[i] = s.GPS.Lat
		lons[i] = s.GPS.Lon
	}
	return lats, lons
}

// LoopClosure tunes the start-line search.
type LoopClosure struct {
	RadiusM             float64
	SkipSamples         int
	MinGapSamples       int
	MinSpeedKmh         float64
	HeadingToleranceDeg float64
}

// headingAt is the bearing from sample idx to the next one; 0 for the last.
func headingAt(samples []telemetry.Sample, idx int) float64 {
	if idx >= len(samples)-1 {
		return 0
	}
	a, b := samples[idx].GPS, samples[idx+1].GPS
	return geo.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
}

// DetectStartLine looks for the first loop closure: an on-track candidate
// sample and a later sample at least MinGapSamples on that lies within the
// radius and travels in roughly the same direction. The later sample is
// returned, since it sits on an established racing line. When no closure
// exists the first sample is returned with found false.
func DetectStartLine(samples []telemetry.Sample, opts LoopClosure) (lat, lon float64, found bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}

	limit := len(samples)
	if limit > scanLimit {
		limit = scanLimit
	}

	for i := opts.SkipSamples; i < limit; i++ {
		c := samples[i]
		if c.GPS.SpeedKmh < opts.MinSpeedKmh {
			continue
		}

		searchStart := i + opts.MinGapSamples
		if searchStart >= len(samples) {
			break
		}
		cHeading := headingAt(samples, i)

		for j := searchStart; j < len(samples); j += closureStride {
			s := samples[j]
			if math.Abs(s.GPS.Lat-c.GPS.Lat) > quickRejectDeg {
				continue
			}
			if geo.DistanceMeters(c.GPS.Lat, c.GPS.Lon, s.GPS.Lat, s.GPS.Lon) >= opts.RadiusM {
				continue
			}
			sHeading := headingAt(samples, j)
			diff := geo.HeadingDiff(cHeading, sHeading)
			if diff < opts.HeadingToleranceDeg {
				diagf("loop closure: candidate %d (%.1f km/h, heading %.0f) matches %d (heading %.0f, diff %.0f); start line %.6f, %.6f",
					i, c.GPS.SpeedKmh, cHeading, j, sHeading, diff, s.GPS.Lat, s.GPS.Lon)
				return s.GPS.Lat, s.GPS.Lon, true
			}
		}
	}
	return samples[0].GPS.Lat, samples[0].GPS.Lon, false
}

// SelectReferenceLap picks the geometry reference: among laps with a
// positive duration, those whose path length is within 20% of the median
// are kept (all of them if none qualify) and the fastest wins.
func SelectReferenceLap(candidates []telemetry.Lap) (telemetry.Lap, bool) {
	var valid []telemetry.Lap
	for _, l := range candidates {
		if l.Duration() > 0 {
			valid = append(valid, l)
		}
	}
	if len(valid) == 0 {
		return telemetry.Lap{}, false
	}

	dists := make([]float64, len(valid))
	for i, l := range valid {
		lats, lons := lapPath(l)
		dists[i] = geo.PathLengthKm(lats, lons)
	}
	sorted := append([]float64(nil), dists...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]
	diagf("median lap distance %.3f km over %d laps", median, len(valid))

	var clean []telemetry.Lap
	for i, l := range valid {
		if dists[i] >= 0.8*median && dists[i] <= 1.2*median {
			clean = append(clean, l)
		}
	}
	if len(clean) == 0 {
		clean = valid
	}

	best := clean[0]
	for _, l := range clean[1:] {
		if l.Duration() < best.Duration() {
			best = l
		}
	}
	return best, true
}

// SmoothPath applies a centered moving average of the given window to each
// coordinate series and closes the loop by setting the last point equal to
// the first. Series shorter than the window are only closed.
func SmoothPath(lats, lons []float64, window int) ([]float64, []float64) {
	outLats := movingAverage(lats, window)
	outLons := movingAverage(lons, window)
	if n := len(outLats); n > 0 {
		outLats[n-1] = outLats[0]
		outLons[n-1] = outLons[0]
	}
	return outLats, outLons
}

func movingAverage(v []float64, window int) []float64 {
	out := make([]float64, len(v))
	if len(v) < window || window < 2 {
		copy(out, v)
		return out
	}
	half := window / 2
	for i := range v {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(v) {
			hi = len(v)
		}
		sum := 0.0
		for _, x := range v[lo:hi] {
			sum += x
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// SplitSectors divides the path into count equal-distance sectors. Each
// gate but the last sits on the path sample nearest its split distance;
// the last gate is the start line itself. The gate radius is 40% of a
// sector's length clamped to [5, 30] m, so adjacent gates cannot overlap
// on short tracks.
func SplitSectors(lats, lons []float64, startLat, startLon float64, count int) ([]Sector, []int) {
	if len(lats) == 0 || len(lats) != len(lons) {
		return nil, nil
	}
	if count < 1 {
		count = 1
	}

	cum := make([]float64, len(lats))
	for i := 1; i < len(lats); i++ {
		cum[i] = cum[i-1] + geo.DistanceMeters(lats[i-1], lons[i-1], lats[i], lons[i])
	}
	total := cum[len(cum)-1]
	step := total / float64(count)

	radius := math.Max(minSectorRadiusM, math.Min(maxSectorRadiusM, 0.4*step))
	radius = math.Round(radius*10) / 10

	sectors := make([]Sector, 0, count)
	indices := make([]int, 0, count)
	for k := 1; k <= count; k++ {
		lat, lon, idx := startLat, startLon, 0
		if k < count {
			idx = nearestIndex(cum, step*float64(k))
			lat, lon = lats[idx], lons[idx]
		}
		sectors = append(sectors, Sector{ID: telemetry.SectorID(k), EndLat: lat, EndLon: lon, RadiusM: radius})
		indices = append(indices, idx)
	}
	diagf("split %.0f m path into %d sectors of %.0f m (gate radius %.1f m)", total, count, step, radius)
	return sectors, indices
}

func nearestIndex(cum []float64, target float64) int {
	best := 0
	bestDiff := math.Abs(cum[0] - target)
	for i := 1; i < len(cum); i++ {
		if d := math.Abs(cum[i] - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}
