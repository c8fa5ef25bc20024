package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/laptrace/internal/units"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig holds the tunable parameters of the session pipeline.
// Every field is optional; the Get* accessors supply defaults so partial
// files are safe.
type PipelineConfig struct {
	// Storage layout
	DataDir     *string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	CatalogPath *string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`
	Timezone    *string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// Track generation
	SectorCount             *int     `json:"sector_count,omitempty" yaml:"sector_count,omitempty"`
	StartRadiusM            *float64 `json:"start_radius_m,omitempty" yaml:"start_radius_m,omitempty"`
	MinStartSpeedKmh        *float64 `json:"min_start_speed_kmh,omitempty" yaml:"min_start_speed_kmh,omitempty"`
	StartSkipSamples        *int     `json:"start_skip_samples,omitempty" yaml:"start_skip_samples,omitempty"`
	LoopMinGapSamples       *int     `json:"loop_min_gap_samples,omitempty" yaml:"loop_min_gap_samples,omitempty"`
	LoopHeadingToleranceDeg *float64 `json:"loop_heading_tolerance_deg,omitempty" yaml:"loop_heading_tolerance_deg,omitempty"`
	RenderMap               *bool    `json:"render_map,omitempty" yaml:"render_map,omitempty"`

	// Lap and sector timing
	MinLapTime          *string  `json:"min_lap_time,omitempty" yaml:"min_lap_time,omitempty"` // duration string like "10s"
	HeadingToleranceDeg *float64 `json:"heading_tolerance_deg,omitempty" yaml:"heading_tolerance_deg,omitempty"`
	SectorRadiusM       *float64 `json:"sector_radius_m,omitempty" yaml:"sector_radius_m,omitempty"`

	// Comparison and reporting
	ResampleStepM *float64 `json:"resample_step_m,omitempty" yaml:"resample_step_m,omitempty"`
	HTMLReport    *bool    `json:"html_report,omitempty" yaml:"html_report,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultPipelineConfig returns a config with every field populated from
// the built-in defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		DataDir:                 ptrString("data"),
		CatalogPath:             ptrString(""),
		Timezone:                ptrString("Local"),
		SectorCount:             ptrInt(3),
		StartRadiusM:            ptrFloat64(20),
		MinStartSpeedKmh:        ptrFloat64(30),
		StartSkipSamples:        ptrInt(300),
		LoopMinGapSamples:       ptrInt(600),
		LoopHeadingToleranceDeg: ptrFloat64(60),
		RenderMap:               ptrBool(true),
		MinLapTime:              ptrString("10s"),
		HeadingToleranceDeg:     ptrFloat64(90),
		SectorRadiusM:           ptrFloat64(20),
		ResampleStepM:           ptrFloat64(10),
		HTMLReport:              ptrBool(false),
	}
}

// LoadConfig loads a PipelineConfig from a .json, .yaml or .yml file.
// Unknown keys are rejected so typos surface instead of silently falling
// back to defaults.
func LoadConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/<pkg>/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *PipelineConfig) Validate() error {
	if c.SectorCount != nil && (*c.SectorCount < 1 || *c.SectorCount > 50) {
		return fmt.Errorf("sector_count must be between 1 and 50, got %d", *c.SectorCount)
	}
	for name, v := range map[string]*float64{
		"start_radius_m":  c.StartRadiusM,
		"sector_radius_m": c.SectorRadiusM,
		"resample_step_m": c.ResampleStepM,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	for name, v := range map[string]*float64{
		"heading_tolerance_deg":      c.HeadingToleranceDeg,
		"loop_heading_tolerance_deg": c.LoopHeadingToleranceDeg,
	} {
		if v != nil && (*v <= 0 || *v > 180) {
			return fmt.Errorf("%s must be in (0, 180], got %f", name, *v)
		}
	}
	if c.MinStartSpeedKmh != nil && *c.MinStartSpeedKmh < 0 {
		return fmt.Errorf("min_start_speed_kmh must be non-negative, got %f", *c.MinStartSpeedKmh)
	}
	if c.StartSkipSamples != nil && *c.StartSkipSamples < 0 {
		return fmt.Errorf("start_skip_samples must be non-negative, got %d", *c.StartSkipSamples)
	}
	if c.LoopMinGapSamples != nil && *c.LoopMinGapSamples < 1 {
		return fmt.Errorf("loop_min_gap_samples must be at least 1, got %d", *c.LoopMinGapSamples)
	}
	if c.MinLapTime != nil && *c.MinLapTime != "" {
		if _, err := time.ParseDuration(*c.MinLapTime); err != nil {
			return fmt.Errorf("invalid min_lap_time '%s': %w", *c.MinLapTime, err)
		}
	}
	if c.Timezone != nil {
		if _, err := units.ResolveLocation(*c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}
	return nil
}

// GetDataDir returns the root directory for tracks, sessions and metadata.
func (c *PipelineConfig) GetDataDir() string {
	if c.DataDir == nil || *c.DataDir == "" {
		return "data"
	}
	return *c.DataDir
}

// TracksDir returns the directory holding one folder per track.
func (c *PipelineConfig) TracksDir() string { return filepath.Join(c.GetDataDir(), "tracks") }

// SessionsDir returns the directory holding exported sessions.
func (c *PipelineConfig) SessionsDir() string { return filepath.Join(c.GetDataDir(), "sessions") }

// RegistryPath returns the location of registry.json.
func (c *PipelineConfig) RegistryPath() string {
	return filepath.Join(c.GetDataDir(), "metadata", "registry.json")
}

// GetCatalogPath returns the SQLite catalog path; empty disables the catalog.
func (c *PipelineConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

// GetTimezone returns the timezone name used for session filenames.
func (c *PipelineConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "Local"
	}
	return *c.Timezone
}

// GetLocation resolves GetTimezone, falling back to time.Local.
func (c *PipelineConfig) GetLocation() *time.Location {
	loc, err := units.ResolveLocation(c.GetTimezone())
	if err != nil {
		return time.Local
	}
	return loc
}

// GetSectorCount returns the number of sectors generated per track.
func (c *PipelineConfig) GetSectorCount() int {
	if c.SectorCount == nil {
		return 3
	}
	return *c.SectorCount
}

// GetStartRadiusM returns the start-line geofence radius in meters.
func (c *PipelineConfig) GetStartRadiusM() float64 {
	if c.StartRadiusM == nil {
		return 20
	}
	return *c.StartRadiusM
}

// GetMinStartSpeedKmh returns the minimum speed for a start-line candidate.
func (c *PipelineConfig) GetMinStartSpeedKmh() float64 {
	if c.MinStartSpeedKmh == nil {
		return 30
	}
	return *c.MinStartSpeedKmh
}

// GetStartSkipSamples returns how many leading samples loop-closure search ignores.
func (c *PipelineConfig) GetStartSkipSamples() int {
	if c.StartSkipSamples == nil {
		return 300
	}
	return *c.StartSkipSamples
}

// GetLoopMinGapSamples returns the minimum sample gap between the two ends of a loop closure.
func (c *PipelineConfig) GetLoopMinGapSamples() int {
	if c.LoopMinGapSamples == nil {
		return 600
	}
	return *c.LoopMinGapSamples
}

// GetLoopHeadingToleranceDeg returns the heading tolerance for loop closure.
func (c *PipelineConfig) GetLoopHeadingToleranceDeg() float64 {
	if c.LoopHeadingToleranceDeg == nil {
		return 60
	}
	return *c.LoopHeadingToleranceDeg
}

// GetRenderMap reports whether track_map.png is rendered on generation.
func (c *PipelineConfig) GetRenderMap() bool {
	if c.RenderMap == nil {
		return true
	}
	return *c.RenderMap
}

// GetMinLapTime parses MinLapTime, defaulting to 10s.
func (c *PipelineConfig) GetMinLapTime() time.Duration {
	if c.MinLapTime == nil || *c.MinLapTime == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.MinLapTime)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetHeadingToleranceDeg returns the lap-crossing heading tolerance.
func (c *PipelineConfig) GetHeadingToleranceDeg() float64 {
	if c.HeadingToleranceDeg == nil {
		return 90
	}
	return *c.HeadingToleranceDeg
}

// GetSectorRadiusM returns the radius used for sector gates that carry none.
func (c *PipelineConfig) GetSectorRadiusM() float64 {
	if c.SectorRadiusM == nil {
		return 20
	}
	return *c.SectorRadiusM
}

// GetResampleStepM returns the distance step for lap comparison.
func (c *PipelineConfig) GetResampleStepM() float64 {
	if c.ResampleStepM == nil {
		return 10
	}
	return *c.ResampleStepM
}

// GetHTMLReport reports whether an HTML chart report accompanies each export.
func (c *PipelineConfig) GetHTMLReport() bool {
	if c.HTMLReport == nil {
		return false
	}
	return *c.HTMLReport
}
