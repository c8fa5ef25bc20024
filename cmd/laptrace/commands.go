package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/laptrace/internal/catalog"
	"github.com/banshee-data/laptrace/internal/compare"
	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/monitoring"
	"github.com/banshee-data/laptrace/internal/pipeline"
	"github.com/banshee-data/laptrace/internal/simulate"
	"github.com/banshee-data/laptrace/internal/stats"
	"github.com/banshee-data/laptrace/internal/telemetry"
)

func (a *app) processor(cat *catalog.Catalog) (*pipeline.Processor, error) {
	return pipeline.NewProcessor(pipeline.Options{Config: a.cfg, FS: fsutil.OSFileSystem{}, Catalog: cat})
}

func (a *app) openCatalog(override string) (*catalog.Catalog, error) {
	path := override
	if path == "" {
		path = a.cfg.GetCatalogPath()
	}
	if path == "" {
		return nil, nil
	}
	return catalog.Open(path)
}

func (a *app) process(args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	trackID := fs.Int("track", 0, "Force every file onto this track id")
	timeout := fs.Duration("timeout", 0, "Abort a file after this long (0 = no limit)")
	catalogPath := fs.String("catalog", "", "SQLite catalog (overrides catalog_path)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(fs.Output(), "Error: at least one CSV file or directory is required")
		return errUsage
	}

	files, err := expandInputs(fs.Args())
	if err != nil {
		return err
	}

	cat, err := a.openCatalog(*catalogPath)
	if err != nil {
		return err
	}
	if cat != nil {
		defer cat.Close()
	}
	p, err := a.processor(cat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, path := range files {
		res := processOne(ctx, p, path, *trackID, *timeout)
		if !res.OK {
			failed++
			fmt.Fprintf(a.out, "%s: FAILED (%s): %v\n", filepath.Base(path), res.Kind, res.Err)
			if res.Kind == pipeline.KindCanceled && ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Fprintln(a.out, summarize(path, res))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func processOne(ctx context.Context, p *pipeline.Processor, path string, trackID int, timeout time.Duration) pipeline.Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	monitoring.Logf("processing %s", path)
	return p.Process(ctx, path, trackID)
}

func summarize(path string, res pipeline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: track %d (%s)", filepath.Base(path), res.Track.TrackID, res.Track.TrackName)
	if res.Generated {
		b.WriteString(" [new]")
	}
	fmt.Fprintf(&b, ", %d laps", len(res.Laps))
	if best := stats.FindBestLap(res.Laps); best != nil {
		fmt.Fprintf(&b, ", best %.2fs", best.Duration())
	}
	if res.TBLUpdated {
		b.WriteString(", TBL improved")
	}
	if res.ExportPath != "" {
		fmt.Fprintf(&b, " -> %s", res.ExportPath)
	}
	for _, d := range res.Degraded {
		fmt.Fprintf(&b, "\n  warning: %v", d)
	}
	return b.String()
}

// expandInputs replaces directories with the CSV files directly inside
// them, in name order.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func (a *app) tracks(args []string) error {
	fs := flag.NewFlagSet("tracks", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	p, err := a.processor(nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFOLDER\tSECTORS\tTBL")
	for _, e := range p.Registry().List() {
		sectors, tbl := "-", "-"
		if t := p.Tracks().ByID(e.TrackID); t != nil {
			sectors = strconv.Itoa(len(t.Sectors))
		}
		if rec := p.Ledger().Load(e.TrackID); rec.TotalBestTime != nil {
			tbl = fmt.Sprintf("%.2f", *rec.TotalBestTime)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.TrackID, e.TrackName, e.FolderName, sectors, tbl)
	}
	return w.Flush()
}

func (a *app) rename(args []string) error {
	fs := flag.NewFlagSet("rename", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(fs.Output(), "Usage: laptrace rename <id> <name>")
		return errUsage
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid track id %q", fs.Arg(0))
	}

	p, err := a.processor(nil)
	if err != nil {
		return err
	}
	t, err := p.RenameTrack(id, fs.Arg(1))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "track %d is now %q in %s/\n", t.TrackID, t.TrackName, t.FolderName)
	return nil
}

func (a *app) compare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	trackID := fs.Int("track", 0, "Track id (default: identify from the file)")
	ref := fs.Int("ref", 0, "Reference lap number (default: fastest)")
	target := fs.Int("target", 0, "Target lap; prints the aligned rows as CSV")
	step := fs.Float64("step", a.cfg.GetResampleStepM(), "Resampling step in meters")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(fs.Output(), "Usage: laptrace compare [-ref N] [-target N] <file.csv>")
		return errUsage
	}

	p, err := a.processor(nil)
	if err != nil {
		return err
	}
	session, _, err := p.Laps(fs.Arg(0), *trackID)
	if err != nil {
		return err
	}
	if len(session.Laps) < 2 {
		return fmt.Errorf("%s: need at least two laps, found %d", session.Name, len(session.Laps))
	}

	refLap := stats.FindBestLap(session.Laps)
	if *ref > 0 {
		refLap = lapNumber(session.Laps, *ref)
	}
	if refLap == nil {
		return fmt.Errorf("lap %d not found", *ref)
	}
	resampler := compare.NewResampler(*step)

	if *target > 0 {
		targetLap := lapNumber(session.Laps, *target)
		if targetLap == nil {
			return fmt.Errorf("lap %d not found", *target)
		}
		return writeRows(a, resampler.CompareLaps(*refLap, *targetLap))
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "LAP\tTIME\tFINAL\tMAX GAIN\tMAX LOSS\tMEAN\t\n")
	for _, l := range session.Laps {
		if l.Number == refLap.Number {
			fmt.Fprintf(w, "%d\t%.2f\tref\t\t\t\t\n", l.Number, l.Duration())
			continue
		}
		s := compare.Summarize(resampler.CompareLaps(*refLap, l))
		fmt.Fprintf(w, "%d\t%.2f\t%+.2f\t%+.2f\t%+.2f\t%+.2f\t\n",
			l.Number, l.Duration(), s.FinalDelta, s.MaxGain, s.MaxLoss, s.MeanDelta)
	}
	return w.Flush()
}

func lapNumber(laps []telemetry.Lap, n int) *telemetry.Lap {
	for i := range laps {
		if laps[i].Number == n {
			return &laps[i]
		}
	}
	return nil
}

func writeRows(a *app, rows []compare.Row) error {
	cw := csv.NewWriter(a.out)
	_ = cw.Write([]string{"distance", "lat", "lon", "ref_time", "target_time",
		"ref_speed", "target_speed", "delta_speed", "delta_time"})
	f := func(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }
	for _, r := range rows {
		_ = cw.Write([]string{
			f(r.Distance, 1), f(r.Lat, 6), f(r.Lon, 6),
			f(r.RefTime, 3), f(r.TargetTime, 3),
			f(r.RefSpeed, 1), f(r.TargetSpeed, 1), f(r.DeltaSpeed, 1), f(r.DeltaTime, 3),
		})
	}
	cw.Flush()
	return cw.Error()
}

func (a *app) simulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	output := fs.String("o", "kari_simulation.csv", "Output path")
	laps := fs.Int("laps", 3, "Number of laps")
	seed := fs.Int64("seed", 1, "Noise seed")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *laps < 1 {
		return errors.New("-laps must be at least 1")
	}

	g := simulate.NewKari(*seed)
	g.Laps = *laps
	if err := g.WriteFile(fsutil.OSFileSystem{}, *output); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %d laps of Kari Motor Speedway to %s\n", *laps, *output)
	return nil
}

func (a *app) sessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	trackID := fs.Int("track", 0, "Only this track id")
	fastest := fs.Int("fastest", 0, "List the N fastest laps instead of sessions")
	catalogPath := fs.String("catalog", "", "SQLite catalog (overrides catalog_path)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *fastest > 0 && *trackID <= 0 {
		fmt.Fprintln(fs.Output(), "Error: -fastest needs -track")
		return errUsage
	}

	cat, err := a.openCatalog(*catalogPath)
	if err != nil {
		return err
	}
	if cat == nil {
		return errors.New("no catalog configured: set catalog_path or pass -catalog")
	}
	defer cat.Close()
	ctx := context.Background()

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	if *fastest > 0 {
		laps, err := cat.FastestLaps(ctx, *trackID, *fastest)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SESSION\tLAP\tTIME")
		for _, l := range laps {
			fmt.Fprintf(w, "%s\t%d\t%s\n", l.SessionID, l.LapNumber, seconds(l.LapTime))
		}
		return w.Flush()
	}

	list, err := cat.Sessions(ctx, *trackID)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "TRACK\tSESSION\tLAPS\tBEST\tTBL\tCONSISTENCY\tSOURCE")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n", s.TrackName, s.SessionName, s.LapCount,
			seconds(s.BestLapTime), seconds(s.TBLTotal), seconds(s.ConsistencyScore), s.SourceFile)
	}
	return w.Flush()
}

func seconds(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
