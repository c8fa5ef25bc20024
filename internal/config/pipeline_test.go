package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if cfg.SectorCount == nil || *cfg.SectorCount != 3 {
		t.Errorf("Expected SectorCount 3, got %v", cfg.SectorCount)
	}
	if cfg.GetMinLapTime() != 10*time.Second {
		t.Errorf("GetMinLapTime() = %v, want 10s", cfg.GetMinLapTime())
	}
	if cfg.GetHeadingToleranceDeg() != 90 {
		t.Errorf("GetHeadingToleranceDeg() = %v, want 90", cfg.GetHeadingToleranceDeg())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := &PipelineConfig{}

	if cfg.GetSectorCount() != 3 {
		t.Errorf("GetSectorCount() = %d, want 3", cfg.GetSectorCount())
	}
	if cfg.GetStartRadiusM() != 20 {
		t.Errorf("GetStartRadiusM() = %v, want 20", cfg.GetStartRadiusM())
	}
	if cfg.GetDataDir() != "data" {
		t.Errorf("GetDataDir() = %q, want data", cfg.GetDataDir())
	}
	if got, want := cfg.RegistryPath(), filepath.Join("data", "metadata", "registry.json"); got != want {
		t.Errorf("RegistryPath() = %q, want %q", got, want)
	}
	if got, want := cfg.TracksDir(), filepath.Join("data", "tracks"); got != want {
		t.Errorf("TracksDir() = %q, want %q", got, want)
	}
	if cfg.GetLocation() != time.Local {
		t.Error("GetLocation() should default to time.Local")
	}
	if !cfg.GetRenderMap() || cfg.GetHTMLReport() {
		t.Error("unexpected render defaults")
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pipeline.json")

	testJSON := `{
  "sector_count": 4,
  "min_lap_time": "20s",
  "timezone": "UTC",
  "render_map": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetSectorCount() != 4 {
		t.Errorf("GetSectorCount() = %d, want 4", cfg.GetSectorCount())
	}
	if cfg.GetMinLapTime() != 20*time.Second {
		t.Errorf("GetMinLapTime() = %v, want 20s", cfg.GetMinLapTime())
	}
	if cfg.GetLocation().String() != "UTC" {
		t.Errorf("GetLocation() = %v, want UTC", cfg.GetLocation())
	}
	if cfg.GetRenderMap() {
		t.Error("GetRenderMap() should be false")
	}
	if cfg.GetStartRadiusM() != 20 {
		t.Errorf("omitted field should keep its default, got %v", cfg.GetStartRadiusM())
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pipeline.yaml")

	testYAML := "data_dir: /srv/laptrace\nsector_count: 5\nresample_step_m: 5\n"
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetDataDir() != "/srv/laptrace" || cfg.GetSectorCount() != 5 || cfg.GetResampleStepM() != 5 {
		t.Errorf("unexpected config: dir=%s sectors=%d step=%v",
			cfg.GetDataDir(), cfg.GetSectorCount(), cfg.GetResampleStepM())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(tmpDir, "nope.json")},
		{"wrong extension", write("pipeline.toml", "sector_count = 3")},
		{"malformed json", write("bad.json", `{"sector_count": `)},
		{"unknown json key", write("typo.json", `{"sector_cnt": 3}`)},
		{"unknown yaml key", write("typo.yaml", "sectors: 3\n")},
		{"invalid value", write("neg.json", `{"sector_count": 0}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(tt.path); err == nil {
				t.Errorf("LoadConfig(%s) expected error, got nil", tt.name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *PipelineConfig
		wantErr bool
	}{
		{"defaults", DefaultPipelineConfig(), false},
		{"empty config is valid", &PipelineConfig{}, false},
		{"negative radius", &PipelineConfig{StartRadiusM: ptrFloat64(-1)}, true},
		{"zero sector radius", &PipelineConfig{SectorRadiusM: ptrFloat64(0)}, true},
		{"heading tolerance above 180", &PipelineConfig{HeadingToleranceDeg: ptrFloat64(200)}, true},
		{"bad duration", &PipelineConfig{MinLapTime: ptrString("soon")}, true},
		{"bad timezone", &PipelineConfig{Timezone: ptrString("Nowhere/Land")}, true},
		{"negative skip", &PipelineConfig{StartSkipSamples: ptrInt(-5)}, true},
		{"too many sectors", &PipelineConfig{SectorCount: ptrInt(51)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetSectorCount() != 3 {
		t.Errorf("defaults file sector_count = %d, want 3", cfg.GetSectorCount())
	}
	if got := cfg.GetMinLapTime(); got != DefaultPipelineConfig().GetMinLapTime() {
		t.Errorf("defaults file min_lap_time = %v disagrees with built-in default", got)
	}
}
