package heston

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	apperrors "heston-pricer/internal/errors"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/models"
	"heston-pricer/internal/numeric"
)

// Integration defaults. [DefaultLowerBound, DefaultUpperBound] truncates the
// semi-infinite Gil-Pelaez integral. The upper bound is not adapted to the
// parameter regime, so very high vol-of-vol or long maturities can
// under-integrate.
const (
	DefaultLowerBound       = 1e-8
	DefaultUpperBound       = 100.0
	DefaultSubdivisionLimit = 100
	DefaultAbsTolerance     = 1.49e-8
	DefaultRelTolerance     = 1.49e-8
)

// IntegratorConfig holds the quadrature settings for one probability.
type IntegratorConfig struct {
	LowerBound float64
	UpperBound float64
	Limit      int
	AbsTol     float64
	RelTol     float64
}

// DefaultIntegratorConfig returns the reference integration settings.
func DefaultIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		LowerBound: DefaultLowerBound,
		UpperBound: DefaultUpperBound,
		Limit:      DefaultSubdivisionLimit,
		AbsTol:     DefaultAbsTolerance,
		RelTol:     DefaultRelTolerance,
	}
}

// Integrator recovers the risk-neutral probabilities P1 and P2.
type Integrator struct {
	cfg    IntegratorConfig
	logger zerolog.Logger
}

// NewIntegrator creates an Integrator. Zero-valued fields of cfg fall back to the defaults.
func NewIntegrator(cfg IntegratorConfig, logger zerolog.Logger) *Integrator {
	def := DefaultIntegratorConfig()
	if cfg.LowerBound == 0 {
		cfg.LowerBound = def.LowerBound
	}
	if cfg.UpperBound == 0 {
		cfg.UpperBound = def.UpperBound
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.AbsTol <= 0 {
		cfg.AbsTol = def.AbsTol
	}
	if cfg.RelTol <= 0 {
		cfg.RelTol = def.RelTol
	}
	return &Integrator{cfg: cfg, logger: logger}
}

// Config returns the effective integration settings.
func (in *Integrator) Config() IntegratorConfig {
	return in.cfg
}

// Probability integrates the Gil-Pelaez integrand for measure m and returns
// 0.5 + result/pi. Quadrature failures never escape as errors: the result has
// Converged=false, Value=NaN, Err set, and a warning naming the measure is logged.
//
// Roundoff and bad-integrand terminations keep the estimate reached. The
// result is converged, Err records the condition, and a warning is logged.
func (in *Integrator) Probability(ctx context.Context, m models.Measure, mkt models.MarketState, p models.HestonParams) models.ProbabilityResult {
	log := logging.WithMeasure(in.logger, m.String())
	logStrike := math.Log(mkt.Strike)

	f := func(phi float64) float64 {
		return integrand(phi, m, mkt, p, logStrike)
	}

	res, err := numeric.Integrate(ctx, f, in.cfg.LowerBound, in.cfg.UpperBound, numeric.QuadOptions{
		AbsTol: in.cfg.AbsTol,
		RelTol: in.cfg.RelTol,
		Limit:  in.cfg.Limit,
	})

	out := models.ProbabilityResult{
		Measure:      m,
		AbsError:     res.AbsError,
		Subintervals: res.Subintervals,
	}

	if err == nil && math.IsNaN(res.Value) {
		err = numeric.ErrNonFinite
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Join(apperrors.ErrTimeout, err)
	}

	if err != nil && !softFailure(err, res.Value) {
		out.Value = math.NaN()
		out.Err = apperrors.NewIntegrationError(m.String(), res.Subintervals, err)
		log.Warn().
			Err(err).
			Int("subintervals", res.Subintervals).
			Float64("abs_error", res.AbsError).
			Msgf("Heston %s integration failed to converge", m)
		return out
	}

	out.Value = 0.5 + res.Value/math.Pi
	out.Converged = true
	if err != nil {
		out.Err = apperrors.Wrapf(err, "%s tolerance not reached", m)
		log.Warn().
			Err(err).
			Int("subintervals", res.Subintervals).
			Float64("abs_error", res.AbsError).
			Float64("value", out.Value).
			Msgf("Heston %s integration did not reach tolerance, keeping estimate", m)
		return out
	}
	logging.LogProbability(log, m.String(), out.Value, res.AbsError, res.Subintervals)
	return out
}

// softFailure reports whether err only means the requested tolerance was not
// reached while value is still a usable finite estimate.
func softFailure(err error, value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return errors.Is(err, numeric.ErrRoundoff) || errors.Is(err, numeric.ErrBadIntegrand)
}
