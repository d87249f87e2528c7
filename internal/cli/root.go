package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"heston-pricer/internal/config"
	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-17"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.ValuationStore
}

// Execute loads configuration from --config and runs the root command.
func Execute() int {
	rootCmd := NewRootCmd(nil, zerolog.Nop())
	if err := rootCmd.Execute(); err != nil {
		var verr *apperrors.ValidationError
		if apperrors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "Error: invalid %s %v: %s\n", verr.Field, verr.Value, verr.Message)
			return 1
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCmd creates the root command for the CLI. A nil cfg is loaded from
// the --config directory before any command runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "hestonpricer",
		Short: "Heston vs Black-Scholes European call pricer",
		Long: `hestonpricer values a European call under the Heston stochastic volatility
model (Gil-Pelaez inversion of the characteristic function) and under
Black-Scholes, and compares both with an observed market price.

Defaults reproduce the reference scenario; override them in config.toml or
with flags on the price command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Config == nil {
				dir, _ := cmd.Flags().GetString("config")
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = loaded
				app.ConfigDir = dir
				app.Logger = logging.NewLoggerWithConfig(logConfig(loaded.Logging))
			}
			if app.ConfigDir == "" {
				app.ConfigDir = config.DefaultConfigDir()
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/heston-pricer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

// logConfig maps the logging section onto the logger defaults. Empty or zero
// values keep the default.
func logConfig(c config.LoggingConfig) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Console = c.Console
	lc.File = c.File
	if c.Level != "" {
		lc.Level = c.Level
	}
	if c.FilePath != "" {
		lc.FilePath = c.FilePath
	}
	if c.MaxSize > 0 {
		lc.MaxSize = c.MaxSize
	}
	if c.MaxBackups > 0 {
		lc.MaxBackups = c.MaxBackups
	}
	if c.MaxAge > 0 {
		lc.MaxAge = c.MaxAge
	}
	return lc
}

// openStore returns the injected store, or opens the configured database.
// The returned func closes only a store opened here.
func (a *App) openStore() (store.ValuationStore, func(), error) {
	if a.Store != nil {
		return a.Store, func() {}, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	return s, func() {
		if err := s.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}, nil
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("hestonpricer v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.ConfigDir})
			}
			output.Println(app.ConfigDir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, including market and model inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)
			strict := *app.Config
			strict.Validation.Strict = true
			if err := strict.Validate(); err != nil {
				if output.IsJSON() {
					_ = output.JSON(map[string]interface{}{"valid": false, "error": err.Error()})
				} else {
					output.Error("Configuration validation failed: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Market")
	output.Printf("  Spot:            %g\n", cfg.Market.Spot)
	output.Printf("  Strike:          %g\n", cfg.Market.Strike)
	output.Printf("  Maturity (y):    %g\n", cfg.Market.Maturity)
	output.Printf("  Rate:            %g\n", cfg.Market.Rate)
	output.Printf("  Observed price:  %g\n", cfg.Market.ObservedPrice)
	output.Printf("  Implied vol:     %g\n", cfg.Market.ImpliedVol)
	output.Println()

	output.Bold("Heston")
	output.Printf("  v0:              %g\n", cfg.Heston.V0)
	output.Printf("  kappa:           %g\n", cfg.Heston.Kappa)
	output.Printf("  theta:           %g\n", cfg.Heston.Theta)
	output.Printf("  sigma:           %g\n", cfg.Heston.Sigma)
	output.Printf("  rho:             %g\n", cfg.Heston.Rho)
	output.Println()

	output.Bold("Integration")
	output.Printf("  Range:           [%g, %g]\n", cfg.Integration.LowerBound, cfg.Integration.UpperBound)
	output.Printf("  Subintervals:    %d\n", cfg.Integration.Limit)
	output.Printf("  Tolerance:       abs %g, rel %g\n", cfg.Integration.AbsTolerance, cfg.Integration.RelTolerance)
	output.Printf("  Timeout:         %s\n", cfg.Integration.Timeout)
	output.Printf("  Concurrent:      %v\n", cfg.Integration.Concurrent)
	output.Println()

	output.Bold("Other")
	output.Printf("  Strict validation: %v\n", cfg.Validation.Strict)
	output.Printf("  History:           %v (%s)\n", cfg.Store.Enabled, cfg.Store.Path)
	output.Printf("  Log level:         %s\n", cfg.Logging.Level)
}
