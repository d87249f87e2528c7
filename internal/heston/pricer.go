package heston

import (
	"context"
	"math"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/models"
)

// Pricer values European calls under the Heston model.
type Pricer struct {
	integrator *Integrator
	logger     zerolog.Logger
	concurrent bool
}

// Option configures a Pricer.
type Option func(*Pricer)

// WithIntegratorConfig overrides the quadrature settings.
func WithIntegratorConfig(cfg IntegratorConfig) Option {
	return func(p *Pricer) {
		p.integrator = NewIntegrator(cfg, p.logger)
	}
}

// WithConcurrentProbabilities integrates P1 and P2 on separate goroutines.
func WithConcurrentProbabilities(enabled bool) Option {
	return func(p *Pricer) {
		p.concurrent = enabled
	}
}

// NewPricer creates a Pricer with the reference integration settings.
func NewPricer(logger zerolog.Logger, opts ...Option) *Pricer {
	p := &Pricer{logger: logging.WithOperation(logger, "heston")}
	p.integrator = NewIntegrator(DefaultIntegratorConfig(), p.logger)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PriceCall computes P1 and P2 and combines them into
// S0*P1 - K*exp(-rT)*P2.
//
// If either probability fails to converge the result has
// StatusConvergenceFailure and a NaN price. A negative price is returned as
// computed with Unstable set.
func (p *Pricer) PriceCall(ctx context.Context, mkt models.MarketState, params models.HestonParams) models.PricingResult {
	var p1, p2 models.ProbabilityResult
	if p.concurrent {
		var wg conc.WaitGroup
		wg.Go(func() { p1 = p.integrator.Probability(ctx, models.MeasureP1, mkt, params) })
		wg.Go(func() { p2 = p.integrator.Probability(ctx, models.MeasureP2, mkt, params) })
		wg.Wait()
	} else {
		p1 = p.integrator.Probability(ctx, models.MeasureP1, mkt, params)
		p2 = p.integrator.Probability(ctx, models.MeasureP2, mkt, params)
	}

	result := models.PricingResult{P1: p1, P2: p2}
	if !p1.Converged || !p2.Converged {
		result.Price = math.NaN()
		result.Status = models.StatusConvergenceFailure
		p.logger.Warn().
			Bool("p1_converged", p1.Converged).
			Bool("p2_converged", p2.Converged).
			Msg("Heston valuation aborted: convergence failure")
		return result
	}

	result.Price = mkt.Spot*p1.Value - mkt.Strike*mkt.DiscountFactor()*p2.Value
	result.Status = models.StatusSuccess
	if result.Price < 0 {
		result.Unstable = true
		p.logger.Warn().
			Err(apperrors.ErrNegativePrice).
			Float64("price", result.Price).
			Msg("Negative Heston price (numerical instability)")
	}

	logging.LogValuation(p.logger, result.Price, p1.Value, p2.Value, string(result.Status))
	return result
}
