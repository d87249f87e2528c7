// Package report compares Black-Scholes and Heston valuations against an observed price.
package report

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"heston-pricer/internal/blackscholes"
	"heston-pricer/internal/heston"
	"heston-pricer/internal/logging"
	"heston-pricer/internal/models"
)

// Inputs describes one comparison run.
type Inputs struct {
	Market        models.MarketState
	Params        models.HestonParams
	ImpliedVol    float64
	ObservedPrice float64
}

// Comparison holds both model prices and their errors against the observed price.
type Comparison struct {
	Inputs        Inputs
	BSPrice       float64
	BSError       float64
	Heston        models.PricingResult
	HestonError   float64
	HestonImplied float64 // Black-Scholes vol implied by the Heston price, NaN if unavailable
	Feller        bool
	Elapsed       time.Duration
}

// Compare prices the call under both models. It never fails: a Heston
// convergence failure leaves HestonError and HestonImplied NaN.
func Compare(ctx context.Context, pricer *heston.Pricer, in Inputs) Comparison {
	start := time.Now()

	c := Comparison{
		Inputs: in,
		Feller: in.Params.SatisfiesFeller(),
	}
	c.BSPrice = blackscholes.CallPrice(in.Market, in.ImpliedVol)
	c.BSError = c.BSPrice - in.ObservedPrice

	c.Heston = pricer.PriceCall(ctx, in.Market, in.Params)
	c.HestonError = math.NaN()
	c.HestonImplied = math.NaN()
	if c.Heston.Converged() {
		c.HestonError = c.Heston.Price - in.ObservedPrice
		if iv, err := blackscholes.ImpliedVol(in.Market, c.Heston.Price); err == nil {
			c.HestonImplied = iv
		}
	}

	c.Elapsed = time.Since(start)
	log := logging.FromContext(ctx)
	log.Debug().
		Float64("bs_price", c.BSPrice).
		Float64("heston_price", c.Heston.Price).
		Bool("feller", c.Feller).
		Dur("elapsed", c.Elapsed).
		Msg("Comparison completed")
	return c
}

// Valuation converts the comparison into a history record.
func (c Comparison) Valuation() *models.Valuation {
	return &models.Valuation{
		Timestamp:     time.Now(),
		Market:        c.Inputs.Market,
		Params:        c.Inputs.Params,
		ImpliedVol:    c.Inputs.ImpliedVol,
		ObservedPrice: c.Inputs.ObservedPrice,
		BSPrice:       c.BSPrice,
		HestonPrice:   c.Heston.Price,
		P1:            c.Heston.P1.Value,
		P2:            c.Heston.P2.Value,
		Status:        c.Heston.Status,
		Unstable:      c.Heston.Unstable,
	}
}

// Fixed formats v with the given number of decimals, or "n/a" for NaN and Inf.
func Fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Price formats a price at report precision (3 decimals).
func Price(v float64) string {
	return Fixed(v, 3)
}

// Percent formats a fraction as a percentage with 2 decimals.
func Percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(2) + "%"
}
