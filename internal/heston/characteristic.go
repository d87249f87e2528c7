// Package heston prices European calls under the Heston (1993) stochastic
// volatility model by Gil-Pelaez inversion of the characteristic function.
package heston

import (
	"math"

	"heston-pricer/internal/models"
	"heston-pricer/internal/numeric"
)

// branch returns the (u, b) coefficients for the selected measure.
func branch(m models.Measure, p models.HestonParams) (u, b float64) {
	if m == models.MeasureP1 {
		return 0.5, p.Kappa - p.Rho*p.Sigma
	}
	return -0.5, p.Kappa
}

// CharacteristicFunction evaluates the Heston characteristic function of ln(S_T)
// at frequency phi under measure m, in the original Heston (1993) form:
//
//	d = sqrt((rho*sigma*phi*i - b)^2 - sigma^2*(2*u*phi*i - phi^2))
//	g = (b - rho*sigma*phi*i + d) / (b - rho*sigma*phi*i - d)
//	D = r*phi*i*T + (a/sigma^2)*[(b - rho*sigma*phi*i + d)*T - 2*ln((1 - g*e^(dT)) / (1 - g))]
//	E = ((b - rho*sigma*phi*i + d) / sigma^2) * (1 - e^(dT)) / (1 - g*e^(dT))
//	f = exp(D + E*v0 + i*phi*ln(S0))
//
// Square root and logarithm take the principal branch. Nothing is special-cased
// near g*e^(dT) = 1; NaN and Inf propagate to the caller.
func CharacteristicFunction(phi float64, m models.Measure, mkt models.MarketState, p models.HestonParams) complex128 {
	u, b := branch(m, p)
	a := p.Kappa * p.Theta
	x := math.Log(mkt.Spot)
	T := complex(mkt.Maturity, 0)
	sigma2 := complex(p.Sigma*p.Sigma, 0)

	iphi := complex(0, phi)
	rsi := complex(0, p.Rho*p.Sigma*phi) // rho*sigma*phi*i
	bc := complex(b, 0)

	d := numeric.Sqrt((rsi-bc)*(rsi-bc) - sigma2*(complex(2*u, 0)*iphi-complex(phi*phi, 0)))
	plus := bc - rsi + d
	g := plus / (bc - rsi - d)
	edT := numeric.Exp(d * T)

	D := complex(mkt.Rate, 0)*iphi*T +
		complex(a, 0)/sigma2*(plus*T-2*numeric.Log((1-g*edT)/(1-g)))
	E := plus / sigma2 * (1 - edT) / (1 - g*edT)

	return numeric.Exp(D + E*complex(p.V0, 0) + iphi*complex(x, 0))
}
