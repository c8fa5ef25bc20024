package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/ingest"
	"github.com/banshee-data/laptrace/internal/laps"
	"github.com/banshee-data/laptrace/internal/registry"
	"github.com/banshee-data/laptrace/internal/security"
	"github.com/banshee-data/laptrace/internal/telemetry"
	"github.com/banshee-data/laptrace/internal/track"
)

// ErrUnknownTrack is returned for a track id missing from the registry or
// the tracks directory.
var ErrUnknownTrack = errors.New("unknown track")

// RenameTrack gives track id a new display name. The folder under both the
// tracks and sessions directories moves to the sanitized name so the
// registry and the disk stay in step.
func (p *Processor) RenameTrack(id int, name string) (*track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.registry.ByID(id)
	if !ok {
		return nil, fmt.Errorf("track %d: %w", id, ErrUnknownTrack)
	}
	folder := registry.SanitizeName(name)
	roots := []string{p.cfg.TracksDir(), p.cfg.SessionsDir()}

	if folder != entry.FolderName {
		for _, root := range roots {
			dst, err := security.JoinWithin(root, folder)
			if err != nil {
				return nil, err
			}
			if p.fsys.Exists(dst) {
				return nil, fmt.Errorf("%s: %w", dst, track.ErrTrackExists)
			}
		}
		for _, root := range roots {
			src, err := security.JoinWithin(root, entry.FolderName)
			if err != nil {
				return nil, err
			}
			if !p.fsys.Exists(src) {
				continue
			}
			if err := p.fsys.Rename(src, filepath.Join(root, folder)); err != nil {
				return nil, fmt.Errorf("failed to move %s: %w", src, err)
			}
		}
	}

	trackPath := filepath.Join(p.cfg.TracksDir(), folder, track.TrackFile)
	t, err := track.ReadTrack(p.fsys, trackPath)
	if err != nil {
		return nil, err
	}
	t.TrackName, t.FolderName = name, folder
	if err := fsutil.WriteJSON(p.fsys, trackPath, t, 4); err != nil {
		return nil, err
	}
	p.registry.Rename(id, name, folder)

	if p.fsys.Exists(p.ledger.Path(id)) {
		rec := p.ledger.Load(id)
		rec.TrackName = name
		if err := p.ledger.Save(rec); err != nil {
			return nil, err
		}
	}

	if err := p.tracks.Load(); err != nil {
		return nil, err
	}
	opsf("renamed track %d: %s/ -> %s/ (%s)", id, entry.FolderName, folder, name)
	return t, nil
}

// Laps loads path and times its laps against trackID, or against the
// identified track when trackID is zero. Nothing is written.
func (p *Processor) Laps(path string, trackID int) (*telemetry.Session, *track.Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, _, err := ingest.Load(p.fsys, path)
	if err != nil {
		return nil, nil, err
	}

	var t *track.Track
	if trackID > 0 {
		t = p.tracks.ByID(trackID)
	} else {
		t = p.tracks.Identify(session)
	}
	if t == nil || t.StartLine == nil {
		return nil, nil, fmt.Errorf("%s: %w", session.Name, ErrUnknownTrack)
	}

	session.Laps = p.detector(t).Detect(session)
	return session, t, nil
}

func (p *Processor) detector(t *track.Track) *laps.Detector {
	return laps.NewDetector(t.StartLine.Geofence(),
		laps.WithMinLapTime(p.cfg.GetMinLapTime()),
		laps.WithHeadingTolerance(p.cfg.GetHeadingToleranceDeg()),
	)
}
