package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8686 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8686)
	}
	if cfg.API.RateLimitRPM != 30 {
		t.Errorf("API.RateLimitRPM = %d, want 30", cfg.API.RateLimitRPM)
	}
	if cfg.Credits.InitialGrant != 3 {
		t.Errorf("Credits.InitialGrant = %d, want 3", cfg.Credits.InitialGrant)
	}
	if cfg.Credits.RefundOnFailure {
		t.Error("Credits.RefundOnFailure should be false by default (spent on attempt)")
	}
	if cfg.Progress.StepDuration != "2s" {
		t.Errorf("Progress.StepDuration = %q, want %q", cfg.Progress.StepDuration, "2s")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[api]
host = "0.0.0.0"
port = 9000

[credits]
initial_grant = 10
refund_on_failure = true

[functions]
base_url = "https://fn.example.com"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q", cfg.API.Host)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
	if cfg.Credits.InitialGrant != 10 {
		t.Errorf("InitialGrant = %d", cfg.Credits.InitialGrant)
	}
	if !cfg.Credits.RefundOnFailure {
		t.Error("RefundOnFailure should be true from file")
	}
	if cfg.Functions.BaseURL != "https://fn.example.com" {
		t.Errorf("BaseURL = %q", cfg.Functions.BaseURL)
	}
	// Untouched sections keep defaults.
	if cfg.Progress.StepDuration != "2s" {
		t.Errorf("Progress.StepDuration = %q, want default", cfg.Progress.StepDuration)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.API.Port != 8686 {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("NUTRIGEN_PORT", "7777")
	t.Setenv("NUTRIGEN_FUNCTIONS_URL", "https://env.example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Port != 7777 {
		t.Errorf("Port = %d, want env override 7777", cfg.API.Port)
	}
	if cfg.Functions.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q, want env override", cfg.Functions.BaseURL)
	}
}

func TestBuildProgress(t *testing.T) {
	tests := []struct {
		name string
		in   ProgressConfig
		want time.Duration // StepDuration
	}{
		{"parsed", ProgressConfig{StepDuration: "3s", ScaleFactor: 1}, 3 * time.Second},
		{"empty falls back", ProgressConfig{ScaleFactor: 1}, 2 * time.Second},
		{"garbage falls back", ProgressConfig{StepDuration: "soon", ScaleFactor: 1}, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.BuildProgress()
			if got.StepDuration != tt.want {
				t.Errorf("StepDuration = %v, want %v", got.StepDuration, tt.want)
			}
		})
	}
}

func TestBuildProgress_ScaleFactorFloor(t *testing.T) {
	got := ProgressConfig{ScaleFactor: 0}.BuildProgress()
	if got.ScaleFactor != 1.0 {
		t.Errorf("ScaleFactor = %f, want fallback 1.0", got.ScaleFactor)
	}
}
