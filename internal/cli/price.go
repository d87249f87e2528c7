package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"heston-pricer/internal/config"
	"heston-pricer/internal/heston"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/models"
	"heston-pricer/internal/report"
)

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a European call under Heston and Black-Scholes",
		Long: `Price a European call under Heston and Black-Scholes and compare both with
the observed market price.

Every input defaults to config.toml; flags override single values. A Heston
integration that fails to converge is reported as a convergence failure
instead of a number.`,
		Example: `  hestonpricer price
  hestonpricer price --spot 100 --strike 105 --maturity 0.5 --rate 0.02 --vol 0.22
  hestonpricer price --params 0.04,2.0,0.04,0.3,-0.6 --observed 7.5
  hestonpricer price --json --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app.Config.UI.ColorEnabled)

			cfg := *app.Config
			if err := applyPriceFlags(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				output.Error("Invalid input: %v", err)
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.Integration.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Integration.Timeout)
				defer cancel()
			}

			ctx = logging.WithLogger(ctx, app.Logger)
			pricer := newPricer(app, &cfg)
			cmp := report.Compare(ctx, pricer, report.Inputs{
				Market:        cfg.MarketState(),
				Params:        cfg.HestonParams(),
				ImpliedVol:    cfg.Market.ImpliedVol,
				ObservedPrice: cfg.Market.ObservedPrice,
			})

			save, _ := cmd.Flags().GetBool("save")
			if save || cfg.Store.Enabled {
				if err := saveValuation(ctx, app, cmp); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to record valuation")
					if !output.IsJSON() {
						output.Warning("Could not record valuation: %v", err)
					}
				}
			}

			if output.IsJSON() {
				return output.JSON(cmp.Document())
			}
			printComparison(output, cmp)
			return nil
		},
	}

	cmd.Flags().Float64("spot", 0, "spot price S0")
	cmd.Flags().Float64("strike", 0, "strike K")
	cmd.Flags().Float64("maturity", 0, "time to maturity in years")
	cmd.Flags().Float64("rate", 0, "risk-free rate")
	cmd.Flags().Float64("observed", 0, "observed market price of the call")
	cmd.Flags().Float64("vol", 0, "implied volatility for Black-Scholes")
	cmd.Flags().Float64Slice("params", nil, "Heston parameters v0,kappa,theta,sigma,rho")
	cmd.Flags().Float64("v0", 0, "initial variance")
	cmd.Flags().Float64("kappa", 0, "mean-reversion speed")
	cmd.Flags().Float64("theta", 0, "long-run variance")
	cmd.Flags().Float64("sigma", 0, "volatility of variance")
	cmd.Flags().Float64("rho", 0, "spot/variance correlation")
	cmd.Flags().Float64("upper-bound", 0, "upper integration bound")
	cmd.Flags().Int("limit", 0, "maximum number of quadrature subintervals")
	cmd.Flags().Duration("timeout", 0, "valuation timeout (0 disables)")
	cmd.Flags().Bool("concurrent", false, "integrate P1 and P2 concurrently")
	cmd.Flags().Bool("strict", false, "validate market and model inputs before pricing")
	cmd.Flags().Bool("save", false, "record the valuation in the history database")

	return cmd
}

// applyPriceFlags copies explicitly set flags over the configured values.
func applyPriceFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	floats := []struct {
		name   string
		target *float64
	}{
		{"spot", &cfg.Market.Spot},
		{"strike", &cfg.Market.Strike},
		{"maturity", &cfg.Market.Maturity},
		{"rate", &cfg.Market.Rate},
		{"observed", &cfg.Market.ObservedPrice},
		{"vol", &cfg.Market.ImpliedVol},
		{"v0", &cfg.Heston.V0},
		{"kappa", &cfg.Heston.Kappa},
		{"theta", &cfg.Heston.Theta},
		{"sigma", &cfg.Heston.Sigma},
		{"rho", &cfg.Heston.Rho},
		{"upper-bound", &cfg.Integration.UpperBound},
	}

	if flags.Changed("params") {
		values, err := flags.GetFloat64Slice("params")
		if err != nil {
			return err
		}
		p, err := models.HestonParamsFromSlice(values)
		if err != nil {
			return err
		}
		cfg.Heston = config.HestonConfig{V0: p.V0, Kappa: p.Kappa, Theta: p.Theta, Sigma: p.Sigma, Rho: p.Rho}
	}

	for _, f := range floats {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetFloat64(f.name)
		if err != nil {
			return err
		}
		*f.target = v
	}

	if flags.Changed("limit") {
		cfg.Integration.Limit, _ = flags.GetInt("limit")
	}
	if flags.Changed("timeout") {
		cfg.Integration.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("concurrent") {
		cfg.Integration.Concurrent, _ = flags.GetBool("concurrent")
	}
	if flags.Changed("strict") {
		cfg.Validation.Strict, _ = flags.GetBool("strict")
	}
	return nil
}

func newPricer(app *App, cfg *config.Config) *heston.Pricer {
	return heston.NewPricer(app.Logger,
		heston.WithIntegratorConfig(heston.IntegratorConfig{
			LowerBound: cfg.Integration.LowerBound,
			UpperBound: cfg.Integration.UpperBound,
			Limit:      cfg.Integration.Limit,
			AbsTol:     cfg.Integration.AbsTolerance,
			RelTol:     cfg.Integration.RelTolerance,
		}),
		heston.WithConcurrentProbabilities(cfg.Integration.Concurrent),
	)
}

func saveValuation(ctx context.Context, app *App, cmp report.Comparison) error {
	s, closeStore, err := app.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	start := time.Now()
	id, err := s.SaveValuation(context.WithoutCancel(ctx), cmp.Valuation())
	logging.LogStoreCall(app.Logger, "save_valuation", time.Since(start), err)
	if err != nil {
		return err
	}
	app.Logger.Debug().Int64("id", id).Msg("Valuation recorded")
	return nil
}

func printComparison(output *Output, cmp report.Comparison) {
	in := cmp.Inputs
	output.Bold("--- HESTON vs BLACK-SCHOLES VALUATION ---")
	output.Printf("Call option: S0=%.2f, K=%.2f, T=%.2f, r=%.5f, C_obs=%.2f\n",
		in.Market.Spot, in.Market.Strike, in.Market.Maturity, in.Market.Rate, in.ObservedPrice)
	output.Println()

	output.Printf("Observed price : %s\n", report.Price(in.ObservedPrice))
	output.Println()

	output.Bold("Black-Scholes (vol %s)", report.Percent(in.ImpliedVol))
	output.Printf("  Price        : %s\n", report.Price(cmp.BSPrice))
	output.Printf("  Error        : %s\n", output.Signed(cmp.BSError, report.Price(cmp.BSError)))
	output.Println()

	output.Bold("Heston [v0=%g kappa=%g theta=%g sigma=%g rho=%g]",
		in.Params.V0, in.Params.Kappa, in.Params.Theta, in.Params.Sigma, in.Params.Rho)
	if !cmp.Heston.Converged() {
		output.Error("  Price        : CONVERGENCE FAILURE")
		for _, p := range []models.ProbabilityResult{cmp.Heston.P1, cmp.Heston.P2} {
			if p.Err != nil {
				output.Dim("  %s: %v", p.Measure, p.Err)
			}
		}
	} else {
		output.Printf("  Price        : %s\n", report.Price(cmp.Heston.Price))
		output.Printf("  Error        : %s\n", output.Signed(cmp.HestonError, report.Price(cmp.HestonError)))
		output.Printf("  P1 / P2      : %s / %s\n", report.Fixed(cmp.Heston.P1.Value, 6), report.Fixed(cmp.Heston.P2.Value, 6))
		output.Printf("  Implied vol  : %s\n", report.Percent(cmp.HestonImplied))
		for _, p := range []models.ProbabilityResult{cmp.Heston.P1, cmp.Heston.P2} {
			if p.Err != nil {
				output.Dim("  %s: %v", p.Measure, p.Err)
			}
		}
		if cmp.Heston.Unstable {
			output.Warning("  Warning: negative Heston price (numerical instability)")
		}
	}
	if !cmp.Feller {
		output.Dim("  Feller condition 2*kappa*theta >= sigma^2 not satisfied")
	}
	output.Println()
	output.Dim("Computed in %s", cmp.Elapsed.Round(time.Microsecond))
}
