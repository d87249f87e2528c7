package models

import (
	"fmt"
	"math"
	"time"
)

// MarketState holds the market inputs for one valuation.
type MarketState struct {
	Spot     float64 `json:"spot"`
	Strike   float64 `json:"strike"`
	Maturity float64 `json:"maturity"` // years
	Rate     float64 `json:"rate"`
}

// DiscountFactor returns exp(-r*T).
func (m MarketState) DiscountFactor() float64 {
	return math.Exp(-m.Rate * m.Maturity)
}

// HestonParams holds the Heston model parameters.
//
// The core never enforces these ranges. Parameter sets that make the integrand
// ill-defined propagate NaN through the valuation instead of failing early.
type HestonParams struct {
	V0    float64 `json:"v0"`    // initial variance
	Kappa float64 `json:"kappa"` // mean-reversion speed
	Theta float64 `json:"theta"` // long-run variance
	Sigma float64 `json:"sigma"` // vol-of-vol
	Rho   float64 `json:"rho"`   // spot/variance correlation
}

// HestonParamsFromSlice builds parameters from the ordered tuple
// [v0, kappa, theta, sigma, rho].
func HestonParamsFromSlice(values []float64) (HestonParams, error) {
	if len(values) != 5 {
		return HestonParams{}, fmt.Errorf("expected 5 heston parameters [v0 kappa theta sigma rho], got %d", len(values))
	}
	return HestonParams{
		V0:    values[0],
		Kappa: values[1],
		Theta: values[2],
		Sigma: values[3],
		Rho:   values[4],
	}, nil
}

// Slice returns the parameters as [v0, kappa, theta, sigma, rho].
func (p HestonParams) Slice() []float64 {
	return []float64{p.V0, p.Kappa, p.Theta, p.Sigma, p.Rho}
}

// SatisfiesFeller reports whether 2*kappa*theta >= sigma^2.
func (p HestonParams) SatisfiesFeller() bool {
	return 2*p.Kappa*p.Theta >= p.Sigma*p.Sigma
}

// Measure selects one of the two characteristic-function branches.
type Measure int

const (
	MeasureP1 Measure = 1
	MeasureP2 Measure = 2
)

func (m Measure) String() string {
	switch m {
	case MeasureP1:
		return "P1"
	case MeasureP2:
		return "P2"
	default:
		return fmt.Sprintf("Measure(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Measure) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ProbabilityResult is the outcome of integrating one risk-neutral probability.
type ProbabilityResult struct {
	Measure      Measure `json:"measure"`
	Value        float64 `json:"value"`
	Converged    bool    `json:"converged"`
	AbsError     float64 `json:"abs_error"`
	Subintervals int     `json:"subintervals"`
	Err          error   `json:"-"`
}

// PricingStatus is the terminal state of a Heston valuation.
type PricingStatus string

const (
	StatusSuccess            PricingStatus = "SUCCESS"
	StatusConvergenceFailure PricingStatus = "CONVERGENCE_FAILURE"
)

// PricingResult is the outcome of one Heston call valuation.
// Price is NaN when Status is StatusConvergenceFailure.
type PricingResult struct {
	P1       ProbabilityResult `json:"p1"`
	P2       ProbabilityResult `json:"p2"`
	Price    float64           `json:"price"`
	Status   PricingStatus     `json:"status"`
	Unstable bool              `json:"unstable"`
}

// Converged reports whether both probabilities converged.
func (r PricingResult) Converged() bool {
	return r.Status == StatusSuccess
}

// Valuation is a persisted record of one priced scenario.
type Valuation struct {
	ID            int64         `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Market        MarketState   `json:"market"`
	Params        HestonParams  `json:"params"`
	ImpliedVol    float64       `json:"implied_vol"`
	ObservedPrice float64       `json:"observed_price"`
	BSPrice       float64       `json:"bs_price"`
	HestonPrice   float64       `json:"heston_price"`
	P1            float64       `json:"p1"`
	P2            float64       `json:"p2"`
	Status        PricingStatus `json:"status"`
	Unstable      bool          `json:"unstable"`
}
