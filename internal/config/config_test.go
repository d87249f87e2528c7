package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "heston-pricer/internal/errors"
)

func TestLoad_CreatesTemplateAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}

	if cfg.Market.Spot != 6627.88 || cfg.Market.Strike != 6630 || cfg.Market.ObservedPrice != 295 {
		t.Errorf("unexpected market defaults: %+v", cfg.Market)
	}
	if got := cfg.HestonParams().Slice(); got[0] != 0.035 || got[4] != -0.7 {
		t.Errorf("unexpected heston defaults: %v", got)
	}
	if cfg.Integration.LowerBound != 1e-8 || cfg.Integration.UpperBound != 100 || cfg.Integration.Limit != 100 {
		t.Errorf("unexpected integration defaults: %+v", cfg.Integration)
	}
	if cfg.Integration.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Integration.Timeout)
	}
	if cfg.Store.Path != filepath.Join(dir, "valuations.db") {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestLoad_ReadsTemplateBack(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	// Only the paths depend on the directory.
	want := Default()
	want.Store.Path = cfg.Store.Path
	want.Logging.FilePath = cfg.Logging.FilePath
	if *cfg != *want {
		t.Errorf("template does not round-trip defaults:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[market]
spot = 100
strike = 105

[heston]
sigma = 0.25

[integration]
upper_bound = 200.0
timeout = "2s"
concurrent = true
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Market.Spot != 100 || cfg.Market.Strike != 105 {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.Market.Maturity != 0.25 {
		t.Errorf("unset keys should keep defaults, maturity = %v", cfg.Market.Maturity)
	}
	if cfg.Heston.Sigma != 0.25 || cfg.Heston.Kappa != 2.5 {
		t.Errorf("heston = %+v", cfg.Heston)
	}
	if cfg.Integration.UpperBound != 200 || cfg.Integration.Timeout != 2*time.Second || !cfg.Integration.Concurrent {
		t.Errorf("integration = %+v", cfg.Integration)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HESTON_SPOT", "101.5")
	t.Setenv("HESTON_LOG_LEVEL", "debug")
	t.Setenv("HESTON_STORE_PATH", "/tmp/history.db")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Market.Spot != 101.5 {
		t.Errorf("Spot = %v, want 101.5", cfg.Market.Spot)
	}
	if cfg.Logging.Level != "debug" || cfg.Store.Path != "/tmp/history.db" {
		t.Errorf("logging/store overrides not applied: %+v %+v", cfg.Logging, cfg.Store)
	}
}

func TestLoad_EnvOverridesEveryKey(t *testing.T) {
	t.Setenv("HESTON_HESTON_SIGMA", "0.25")
	t.Setenv("HESTON_INTEGRATION_LIMIT", "50")
	t.Setenv("HESTON_INTEGRATION_TIMEOUT", "3s")
	t.Setenv("HESTON_MARKET_RATE", "0.01")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Heston.Sigma != 0.25 || cfg.Integration.Limit != 50 || cfg.Integration.Timeout != 3*time.Second {
		t.Errorf("typed overrides not applied: %+v %+v", cfg.Heston, cfg.Integration)
	}
	if cfg.Market.Rate != 0.01 {
		t.Errorf("Rate = %v, want 0.01", cfg.Market.Rate)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("HESTON_STRIKE", "abc")
	_, err := Load(t.TempDir())
	if !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[market\nspot = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected an error for malformed TOML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"inverted bounds", func(c *Config) { c.Integration.UpperBound = 1e-9 }, apperrors.ErrConfigInvalid},
		{"zero lower bound", func(c *Config) { c.Integration.LowerBound = 0 }, apperrors.ErrConfigInvalid},
		{"zero limit", func(c *Config) { c.Integration.Limit = 0 }, apperrors.ErrConfigInvalid},
		{"negative timeout", func(c *Config) { c.Integration.Timeout = -time.Second }, apperrors.ErrConfigInvalid},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, apperrors.ErrConfigInvalid},
		{"zero sigma passes without strict", func(c *Config) { c.Heston.Sigma = 0 }, nil},
		{"zero sigma fails when strict", func(c *Config) {
			c.Heston.Sigma = 0
			c.Validation.Strict = true
		}, apperrors.ErrInvalidParameter},
		{"negative spot fails when strict", func(c *Config) {
			c.Market.Spot = -1
			c.Validation.Strict = true
		}, apperrors.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
