// Package config provides configuration management for the pricer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Market      MarketConfig      `mapstructure:"market"`
	Heston      HestonConfig      `mapstructure:"heston"`
	Integration IntegrationConfig `mapstructure:"integration"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Store       StoreConfig       `mapstructure:"store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	UI          UIConfig          `mapstructure:"ui"`
}

// MarketConfig describes the option being priced and its observed quote.
type MarketConfig struct {
	Spot          float64 `mapstructure:"spot"`
	Strike        float64 `mapstructure:"strike"`
	Maturity      float64 `mapstructure:"maturity"` // years
	Rate          float64 `mapstructure:"rate"`
	ObservedPrice float64 `mapstructure:"observed_price"`
	ImpliedVol    float64 `mapstructure:"implied_vol"`
}

// HestonConfig holds the Heston model parameters.
type HestonConfig struct {
	V0    float64 `mapstructure:"v0"`
	Kappa float64 `mapstructure:"kappa"`
	Theta float64 `mapstructure:"theta"`
	Sigma float64 `mapstructure:"sigma"`
	Rho   float64 `mapstructure:"rho"`
}

// IntegrationConfig holds the Gil-Pelaez quadrature settings.
type IntegrationConfig struct {
	LowerBound   float64       `mapstructure:"lower_bound"`
	UpperBound   float64       `mapstructure:"upper_bound"`
	Limit        int           `mapstructure:"limit"`
	AbsTolerance float64       `mapstructure:"abs_tolerance"`
	RelTolerance float64       `mapstructure:"rel_tolerance"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Concurrent   bool          `mapstructure:"concurrent"`
}

// ValidationConfig controls input validation before pricing.
type ValidationConfig struct {
	Strict bool `mapstructure:"strict"`
}

// StoreConfig controls the valuation history database.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/heston-pricer"
	}
	return filepath.Join(home, ".config", "heston-pricer")
}

// setDefaults registers the reference scenario and integration settings.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("market.spot", 6627.88)
	v.SetDefault("market.strike", 6630.00)
	v.SetDefault("market.maturity", 0.25)
	v.SetDefault("market.rate", 0.03864)
	v.SetDefault("market.observed_price", 295.00)
	v.SetDefault("market.implied_vol", 0.2104)

	v.SetDefault("heston.v0", 0.035)
	v.SetDefault("heston.kappa", 2.5)
	v.SetDefault("heston.theta", 0.03)
	v.SetDefault("heston.sigma", 0.4)
	v.SetDefault("heston.rho", -0.7)

	v.SetDefault("integration.lower_bound", 1e-8)
	v.SetDefault("integration.upper_bound", 100.0)
	v.SetDefault("integration.limit", 100)
	v.SetDefault("integration.abs_tolerance", 1.49e-8)
	v.SetDefault("integration.rel_tolerance", 1.49e-8)
	v.SetDefault("integration.timeout", "10s")
	v.SetDefault("integration.concurrent", false)

	v.SetDefault("validation.strict", false)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", filepath.Join(configDir, "valuations.db"))

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "pricer.log"))
	v.SetDefault("logging.max_size", 20)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("ui.color_enabled", true)
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("binding environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config: %v", apperrors.ErrConfigInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// envAliases are short names kept alongside the HESTON_<SECTION>_<KEY> form.
var envAliases = map[string]string{
	"market.spot":           "HESTON_SPOT",
	"market.strike":         "HESTON_STRIKE",
	"market.maturity":       "HESTON_MATURITY",
	"market.rate":           "HESTON_RATE",
	"market.observed_price": "HESTON_OBSERVED_PRICE",
	"market.implied_vol":    "HESTON_IMPLIED_VOL",
	"logging.level":         "HESTON_LOG_LEVEL",
	"store.path":            "HESTON_STORE_PATH",
}

// bindEnv maps every key to HESTON_<SECTION>_<KEY>, e.g. HESTON_HESTON_SIGMA
// or HESTON_INTEGRATION_LIMIT, plus the short aliases.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("HESTON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		full := "HESTON_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, full, alias); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the settings the pricer cannot run without. Market and
// model values are only checked when validation.strict is set.
func (c *Config) Validate() error {
	if c.Integration.UpperBound <= c.Integration.LowerBound {
		return fmt.Errorf("%w: integration.upper_bound (%g) must exceed lower_bound (%g)",
			apperrors.ErrConfigInvalid, c.Integration.UpperBound, c.Integration.LowerBound)
	}
	if c.Integration.LowerBound <= 0 {
		return fmt.Errorf("%w: integration.lower_bound must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Integration.Limit < 1 {
		return fmt.Errorf("%w: integration.limit must be at least 1", apperrors.ErrConfigInvalid)
	}
	if c.Integration.Timeout < 0 {
		return fmt.Errorf("%w: integration.timeout must be non-negative", apperrors.ErrConfigInvalid)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error", "disabled", "off":
	default:
		return fmt.Errorf("%w: invalid logging.level %q", apperrors.ErrConfigInvalid, c.Logging.Level)
	}

	if c.Validation.Strict {
		if err := c.MarketState().Validate(); err != nil {
			return err
		}
		if err := c.HestonParams().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MarketState returns the configured market inputs.
func (c *Config) MarketState() models.MarketState {
	return models.MarketState{
		Spot:     c.Market.Spot,
		Strike:   c.Market.Strike,
		Maturity: c.Market.Maturity,
		Rate:     c.Market.Rate,
	}
}

// HestonParams returns the configured model parameters.
func (c *Config) HestonParams() models.HestonParams {
	return models.HestonParams{
		V0:    c.Heston.V0,
		Kappa: c.Heston.Kappa,
		Theta: c.Heston.Theta,
		Sigma: c.Heston.Sigma,
		Rho:   c.Heston.Rho,
	}
}
