package models

import (
	"math"

	apperrors "heston-pricer/internal/errors"
)

// Validate checks that the market inputs describe a priceable call.
func (m MarketState) Validate() error {
	switch {
	case !isFinite(m.Spot) || m.Spot <= 0:
		return apperrors.NewValidationError("spot", m.Spot, "must be positive")
	case !isFinite(m.Strike) || m.Strike <= 0:
		return apperrors.NewValidationError("strike", m.Strike, "must be positive")
	case !isFinite(m.Maturity) || m.Maturity <= 0:
		return apperrors.NewValidationError("maturity", m.Maturity, "must be positive (years)")
	case !isFinite(m.Rate):
		return apperrors.NewValidationError("rate", m.Rate, "must be finite")
	}
	return nil
}

// Validate checks the parameter ranges documented on HestonParams.
// Sigma must be strictly positive because the characteristic function divides by sigma^2.
func (p HestonParams) Validate() error {
	switch {
	case !isFinite(p.V0) || p.V0 < 0:
		return apperrors.NewValidationError("v0", p.V0, "must be non-negative")
	case !isFinite(p.Kappa) || p.Kappa <= 0:
		return apperrors.NewValidationError("kappa", p.Kappa, "must be positive")
	case !isFinite(p.Theta) || p.Theta < 0:
		return apperrors.NewValidationError("theta", p.Theta, "must be non-negative")
	case !isFinite(p.Sigma) || p.Sigma <= 0:
		return apperrors.NewValidationError("sigma", p.Sigma, "must be positive")
	case !isFinite(p.Rho) || p.Rho < -1 || p.Rho > 1:
		return apperrors.NewValidationError("rho", p.Rho, "must be in [-1, 1]")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
