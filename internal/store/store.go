// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"heston-pricer/internal/models"
)

// ValuationStore defines the interface for valuation history persistence.
type ValuationStore interface {
	SaveValuation(ctx context.Context, v *models.Valuation) (int64, error)
	GetValuation(ctx context.Context, id int64) (*models.Valuation, error)
	ListValuations(ctx context.Context, filter ValuationFilter) ([]models.Valuation, error)

	// Lifecycle
	Close() error
}

// ValuationFilter represents filters for querying valuations.
type ValuationFilter struct {
	Status    models.PricingStatus
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
