package heston

import (
	"context"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"heston-pricer/internal/models"
)

// fellerParams draws parameter sets with 2*kappa*theta >= sigma^2 by scaling
// sigma to a fraction of its Feller bound.
func fellerParams(kappa, theta, sigmaFrac, v0, rho float64) models.HestonParams {
	return models.HestonParams{
		V0:    v0,
		Kappa: kappa,
		Theta: theta,
		Sigma: sigmaFrac * math.Sqrt(2*kappa*theta),
		Rho:   rho,
	}
}

// Property: for Feller-satisfying parameters the valuation converges to a
// non-negative price.
func TestProperty_NonNegativePriceUnderFeller(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Heston property sweep in short mode")
	}
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	pricer := NewPricer(zerolog.Nop())

	properties.Property("Feller parameters price to a non-negative value", prop.ForAll(
		func(kappa, theta, sigmaFrac, v0, rho, strike, maturity, rate float64) bool {
			p := fellerParams(kappa, theta, sigmaFrac, v0, rho)
			mkt := models.MarketState{Spot: 100, Strike: strike, Maturity: maturity, Rate: rate}
			res := pricer.PriceCall(context.Background(), mkt, p)
			return res.Converged() && !res.Unstable && res.Price >= 0
		},
		gen.Float64Range(0.5, 5),
		gen.Float64Range(0.01, 0.1),
		gen.Float64Range(0.05, 1),
		gen.Float64Range(0.01, 0.1),
		gen.Float64Range(-0.9, 0.9),
		gen.Float64Range(80, 120),
		gen.Float64Range(0.25, 2),
		gen.Float64Range(0, 0.06),
	))

	properties.TestingRun(t)
}

// Property: near the money with non-positive correlation, both recovered
// probabilities stay inside [0, 1] up to quadrature noise.
func TestProperty_ProbabilitiesInUnitInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Heston property sweep in short mode")
	}
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	integrator := NewIntegrator(DefaultIntegratorConfig(), zerolog.Nop())
	const slack = 1e-2

	properties.Property("P1 and P2 lie in [0, 1]", prop.ForAll(
		func(kappa, theta, sigmaFrac, v0, rho, strike, maturity float64) bool {
			p := fellerParams(kappa, theta, sigmaFrac, v0, rho)
			mkt := models.MarketState{Spot: 100, Strike: strike, Maturity: maturity, Rate: 0.02}
			for _, m := range []models.Measure{models.MeasureP1, models.MeasureP2} {
				r := integrator.Probability(context.Background(), m, mkt, p)
				if !r.Converged || r.Value < -slack || r.Value > 1+slack {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.5, 5),
		gen.Float64Range(0.01, 0.1),
		gen.Float64Range(0.05, 1),
		gen.Float64Range(0.01, 0.1),
		gen.Float64Range(-0.9, 0),
		gen.Float64Range(85, 115),
		gen.Float64Range(0.25, 2),
	))

	properties.TestingRun(t)
}

// Property: the call price is non-increasing in strike.
func TestProperty_PriceDecreasesWithStrike(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Heston property sweep in short mode")
	}
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	pricer := NewPricer(zerolog.Nop())
	params := models.HestonParams{V0: 0.04, Kappa: 2, Theta: 0.04, Sigma: 0.3, Rho: -0.5}

	properties.Property("C(K) >= C(K + dK)", prop.ForAll(
		func(strike, dk float64) bool {
			lo := pricer.PriceCall(context.Background(), models.MarketState{Spot: 100, Strike: strike, Maturity: 1, Rate: 0.03}, params)
			hi := pricer.PriceCall(context.Background(), models.MarketState{Spot: 100, Strike: strike + dk, Maturity: 1, Rate: 0.03}, params)
			return lo.Converged() && hi.Converged() && lo.Price >= hi.Price-1e-6
		},
		gen.Float64Range(80, 115),
		gen.Float64Range(1, 5),
	))

	properties.TestingRun(t)
}
