package report

import (
	"math"
	"time"

	"heston-pricer/internal/models"
)

// Document is the machine-readable form of a Comparison. Numbers that are
// NaN or Inf are emitted as null.
type Document struct {
	Market        models.MarketState  `json:"market"`
	Params        models.HestonParams `json:"params"`
	Feller        bool                `json:"feller"`
	ObservedPrice *float64            `json:"observed_price"`
	BlackScholes  ModelDocument       `json:"black_scholes"`
	Heston        HestonDocument      `json:"heston"`
	ElapsedMillis float64             `json:"elapsed_ms"`
}

// ModelDocument holds a model price and its error against the observed price.
type ModelDocument struct {
	Volatility *float64 `json:"volatility"`
	Price      *float64 `json:"price"`
	Error      *float64 `json:"error"`
}

// HestonDocument extends ModelDocument with the integration diagnostics.
type HestonDocument struct {
	ModelDocument
	Status   models.PricingStatus `json:"status"`
	Unstable bool                 `json:"unstable"`
	P1       ProbabilityDocument  `json:"p1"`
	P2       ProbabilityDocument  `json:"p2"`
}

// ProbabilityDocument reports one Gil-Pelaez probability.
type ProbabilityDocument struct {
	Value        *float64 `json:"value"`
	Converged    bool     `json:"converged"`
	AbsError     *float64 `json:"abs_error"`
	Subintervals int      `json:"subintervals"`
	Error        string   `json:"error,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func probabilityDocument(p models.ProbabilityResult) ProbabilityDocument {
	doc := ProbabilityDocument{
		Value:        finite(p.Value),
		Converged:    p.Converged,
		AbsError:     finite(p.AbsError),
		Subintervals: p.Subintervals,
	}
	if p.Err != nil {
		doc.Error = p.Err.Error()
	}
	return doc
}

// Document builds the JSON document for c.
func (c Comparison) Document() Document {
	return Document{
		Market:        c.Inputs.Market,
		Params:        c.Inputs.Params,
		Feller:        c.Feller,
		ObservedPrice: finite(c.Inputs.ObservedPrice),
		BlackScholes: ModelDocument{
			Volatility: finite(c.Inputs.ImpliedVol),
			Price:      finite(c.BSPrice),
			Error:      finite(c.BSError),
		},
		Heston: HestonDocument{
			ModelDocument: ModelDocument{
				Volatility: finite(c.HestonImplied),
				Price:      finite(c.Heston.Price),
				Error:      finite(c.HestonError),
			},
			Status:   c.Heston.Status,
			Unstable: c.Heston.Unstable,
			P1:       probabilityDocument(c.Heston.P1),
			P2:       probabilityDocument(c.Heston.P2),
		},
		ElapsedMillis: float64(c.Elapsed.Microseconds()) / 1000,
	}
}

// ValuationDocument is the machine-readable form of a recorded valuation.
type ValuationDocument struct {
	ID            int64                `json:"id"`
	Timestamp     string               `json:"timestamp"`
	Market        models.MarketState   `json:"market"`
	Params        models.HestonParams  `json:"params"`
	ImpliedVol    *float64             `json:"implied_vol"`
	ObservedPrice *float64             `json:"observed_price"`
	BSPrice       *float64             `json:"bs_price"`
	HestonPrice   *float64             `json:"heston_price"`
	P1            *float64             `json:"p1"`
	P2            *float64             `json:"p2"`
	Status        models.PricingStatus `json:"status"`
	Unstable      bool                 `json:"unstable"`
}

// NewValuationDocument builds the JSON document for a stored valuation.
func NewValuationDocument(v models.Valuation) ValuationDocument {
	return ValuationDocument{
		ID:            v.ID,
		Timestamp:     v.Timestamp.UTC().Format(time.RFC3339),
		Market:        v.Market,
		Params:        v.Params,
		ImpliedVol:    finite(v.ImpliedVol),
		ObservedPrice: finite(v.ObservedPrice),
		BSPrice:       finite(v.BSPrice),
		HestonPrice:   finite(v.HestonPrice),
		P1:            finite(v.P1),
		P2:            finite(v.P2),
		Status:        v.Status,
		Unstable:      v.Unstable,
	}
}
