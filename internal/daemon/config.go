// Package daemon holds process-level configuration for the nutrigen server.
// Config lives at ~/.nutrigen/config.toml; a .env file and NUTRIGEN_*
// environment variables override the file for deployment targets.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/nutrigen/nutrigen/internal/app/progress"
)

// Config is the full daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Functions FunctionsConfig `toml:"functions"`
	Credits   CreditsConfig   `toml:"credits"`
	Progress  ProgressConfig  `toml:"progress"`
	Cache     CacheConfig     `toml:"cache"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	RateLimitRPM int    `toml:"rate_limit_rpm"` // generation requests per user per minute
}

// FunctionsConfig points at the remote generation functions host.
type FunctionsConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// CreditsConfig controls the credit policy.
type CreditsConfig struct {
	InitialGrant int64 `toml:"initial_grant"`
	// RefundOnFailure returns a spent credit when the remote call fails.
	// Default false: credits are spent on attempt, not on success.
	RefundOnFailure bool `toml:"refund_on_failure"`
}

// ProgressConfig paces the step progress simulator. Durations are strings
// ("2s", "500ms") so the TOML stays readable.
type ProgressConfig struct {
	StepDuration    string  `toml:"step_duration"`
	ScaleFactor     float64 `toml:"scale_factor"`
	MinimumFloor    string  `toml:"minimum_floor"`
	CompletionDelay string  `toml:"completion_delay"`
}

// CacheConfig controls the query cache.
type CacheConfig struct {
	TTL string `toml:"ttl"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:         "127.0.0.1",
			Port:         8686,
			RateLimitRPM: 30,
		},
		Functions: FunctionsConfig{
			BaseURL: "http://127.0.0.1:54321",
		},
		Credits: CreditsConfig{
			InitialGrant:    3,
			RefundOnFailure: false,
		},
		Progress: ProgressConfig{
			StepDuration:    "2s",
			ScaleFactor:     1.0,
			MinimumFloor:    "500ms",
			CompletionDelay: "800ms",
		},
		Cache: CacheConfig{
			TTL: "5m",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Home returns the nutrigen data directory (~/.nutrigen, or NUTRIGEN_HOME).
func Home() string {
	if env := os.Getenv("NUTRIGEN_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nutrigen")
}

// Load reads config.toml from the home directory, applying .env and
// environment overrides on top. A missing file yields the defaults.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(Home(), "config.toml"))
}

// LoadFrom loads configuration from an explicit path.
func LoadFrom(path string) (Config, error) {
	// .env is optional; deployment targets use it for secrets.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets NUTRIGEN_* variables win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NUTRIGEN_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NUTRIGEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("NUTRIGEN_FUNCTIONS_URL"); v != "" {
		cfg.Functions.BaseURL = v
	}
	if v := os.Getenv("NUTRIGEN_FUNCTIONS_TOKEN"); v != "" {
		cfg.Functions.Token = v
	}
}

// BuildProgress converts the duration strings into a stepper config,
// falling back to defaults for anything unparsable.
func (p ProgressConfig) BuildProgress() progress.Config {
	def := progress.DefaultConfig()
	out := progress.Config{
		StepDuration:    parseDuration(p.StepDuration, def.StepDuration),
		ScaleFactor:     p.ScaleFactor,
		MinimumFloor:    parseDuration(p.MinimumFloor, def.MinimumFloor),
		CompletionDelay: parseDuration(p.CompletionDelay, def.CompletionDelay),
	}
	if out.ScaleFactor <= 0 {
		out.ScaleFactor = def.ScaleFactor
	}
	return out
}

// CacheTTL returns the parsed cache TTL.
func (c CacheConfig) CacheTTL() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
