// Package track owns track geometry: the frozen track.json documents, the
// manager that matches sessions to known tracks and the generator that
// surveys new tracks from a session.
package track

import (
	"errors"
	"fmt"

	"github.com/banshee-data/laptrace/internal/fsutil"
	"github.com/banshee-data/laptrace/internal/laps"
)

// SchemaVersion is written into track.json and geometry.json.
const SchemaVersion = "1.0"

// Artifact file names inside a track folder.
const (
	TrackFile    = "track.json"
	GeometryFile = "geometry.json"
	LedgerFile   = "tbl.json"
	MapFile      = "track_map.png"
)

// DefaultStartRadiusM applies when a stored start line has no radius.
const DefaultStartRadiusM = 20.0

// StartLine is the lap boundary geofence.
type StartLine struct {
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	RadiusM         float64  `json:"radius_m,omitempty"`
	ExpectedHeading *float64 `json:"expected_heading,omitempty"`
}

// Radius returns the geofence radius in meters, defaulting to 20.
func (s StartLine) Radius() float64 {
	if s.RadiusM <= 0 {
		return DefaultStartRadiusM
	}
	return s.RadiusM
}

// Geofence converts the start line for the lap detector.
func (s StartLine) Geofence() laps.StartLine {
	return laps.StartLine{
		Lat:             s.Lat,
		Lon:             s.Lon,
		RadiusM:         s.Radius(),
		ExpectedHeading: s.ExpectedHeading,
	}
}

// Sector is one timing gate. A lap's sector time is the time to reach
// the gate from the previous one.
type Sector struct {
	ID      string  `json:"id"`
	EndLat  float64 `json:"end_lat"`
	EndLon  float64 `json:"end_lon"`
	RadiusM float64 `json:"radius_m"`
}

// Metadata records how the track was generated.
type Metadata struct {
	SectorStrategy string `json:"sector_strategy"`
	NumSectors     int    `json:"num_sectors"`
	SourceSession  string `json:"source_session"`
}

// Track is the frozen definition stored in track.json.
type Track struct {
	SchemaVersion string     `json:"schema_version,omitempty"`
	TrackID       int        `json:"track_id"`
	TrackName     string     `json:"track_name"`
	FolderName    string     `json:"folder_name,omitempty"`
	StartLine     *StartLine `json:"start_line"`
	Sectors       []Sector   `json:"sectors"`
	Metadata      Metadata   `json:"metadata"`
	Location      string     `json:"location,omitempty"`
	CreatedAt     string     `json:"created_at,omitempty"`
}

// Validate checks the required fields of a decoded document.
func (t *Track) Validate() error {
	if t.TrackID <= 0 {
		return errors.New("track_id must be positive")
	}
	if t.StartLine == nil {
		return errors.New("start_line is required")
	}
	seen := make(map[string]bool, len(t.Sectors))
	for i, s := range t.Sectors {
		if s.ID == "" {
			return fmt.Errorf("sectors[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sectors[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Geometry is the smoothed reference path stored in geometry.json.
type Geometry struct {
	SchemaVersion string       `json:"schema_version,omitempty"`
	Coordinates   [][2]float64 `json:"coordinates"`
	SectorIndices []int        `json:"sector_indices"`
}

// ReadTrack decodes and validates a track.json file.
func ReadTrack(fsys fsutil.FileSystem, path string) (*Track, error) {
	var t Track
	if err := fsutil.ReadJSON(fsys, path, &t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &t, nil
}

// ReadGeometry decodes a geometry.json file.
func ReadGeometry(fsys fsutil.FileSystem, path string) (*Geometry, error) {
	var g Geometry
	if err := fsutil.ReadJSON(fsys, path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
