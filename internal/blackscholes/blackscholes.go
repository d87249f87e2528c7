// Package blackscholes implements the closed-form Black-Scholes call price used
// as the reference for Heston valuations.
package blackscholes

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"heston-pricer/internal/models"
)

// ErrNoConvergence is returned when ImpliedVol cannot bracket or reach the target price.
var ErrNoConvergence = errors.New("implied volatility did not converge")

// D1D2 returns the d1 and d2 terms of the Black-Scholes formula.
func D1D2(mkt models.MarketState, vol float64) (d1, d2 float64) {
	sqrtT := math.Sqrt(mkt.Maturity)
	d1 = (math.Log(mkt.Spot/mkt.Strike) + (mkt.Rate+0.5*vol*vol)*mkt.Maturity) / (vol * sqrtT)
	d2 = d1 - vol*sqrtT
	return d1, d2
}

// CallPrice returns the Black-Scholes price of a European call:
// S*N(d1) - K*exp(-rT)*N(d2).
// Inputs are not validated; T <= 0 or vol <= 0 yield NaN or Inf like the formula does.
func CallPrice(mkt models.MarketState, vol float64) float64 {
	d1, d2 := D1D2(mkt, vol)
	return mkt.Spot*distuv.UnitNormal.CDF(d1) - mkt.Strike*mkt.DiscountFactor()*distuv.UnitNormal.CDF(d2)
}

// Vega returns dC/dvol.
func Vega(mkt models.MarketState, vol float64) float64 {
	d1, _ := D1D2(mkt, vol)
	return mkt.Spot * distuv.UnitNormal.Prob(d1) * math.Sqrt(mkt.Maturity)
}

// ImpliedVol solves CallPrice(mkt, vol) = price with Newton-Raphson, falling
// back to bisection on [1e-6, 5] when a Newton step leaves the bracket.
func ImpliedVol(mkt models.MarketState, price float64) (float64, error) {
	const (
		maxIter = 100
		tol     = 1e-10
	)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return math.NaN(), ErrNoConvergence
	}

	lo, hi := 1e-6, 5.0
	intrinsic := math.Max(0, mkt.Spot-mkt.Strike*mkt.DiscountFactor())
	if price <= intrinsic || price >= mkt.Spot {
		return math.NaN(), ErrNoConvergence
	}

	vol := 0.2
	for i := 0; i < maxIter; i++ {
		diff := CallPrice(mkt, vol) - price
		if math.Abs(diff) < tol {
			return vol, nil
		}
		if diff > 0 {
			hi = vol
		} else {
			lo = vol
		}

		next := vol
		if vega := Vega(mkt, vol); vega > 1e-12 {
			next = vol - diff/vega
		}
		if next <= lo || next >= hi || next == vol {
			next = 0.5 * (lo + hi)
		}
		vol = next
		if hi-lo < 1e-14 {
			return vol, nil
		}
	}

	return math.NaN(), ErrNoConvergence
}
