package heston

import (
	"math"

	"heston-pricer/internal/models"
	"heston-pricer/internal/numeric"
)

// Integrand is the real Gil-Pelaez integrand Re(e^(-i*phi*ln K) * f(phi) / (i*phi)).
// phi must be non-zero; the integration path starts at DefaultLowerBound.
func Integrand(phi float64, m models.Measure, mkt models.MarketState, p models.HestonParams) float64 {
	return integrand(phi, m, mkt, p, math.Log(mkt.Strike))
}

func integrand(phi float64, m models.Measure, mkt models.MarketState, p models.HestonParams, logStrike float64) float64 {
	numerator := numeric.Exp(complex(0, -phi*logStrike)) * CharacteristicFunction(phi, m, mkt, p)
	return real(numerator / complex(0, phi))
}
