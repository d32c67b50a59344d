package catalog

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"pcbazaar/models"
)

// ComputeAggregate folds price points into per-product statistics. Points
// without a positive price are ignored; if none remain the view carries the
// no-pricing sentinel (HasPricing false, numeric fields zero).
func ComputeAggregate(productID uuid.UUID, points []models.PricePoint) models.AggregateView {
	view := models.AggregateView{ProductID: productID}

	var sum float64
	vendors := make(map[string]struct{})
	for _, p := range points {
		if p.Price <= 0 {
			continue
		}
		if !view.HasPricing || p.Price < view.MinPrice {
			view.MinPrice = p.Price
		}
		if p.Price > view.MaxPrice {
			view.MaxPrice = p.Price
		}
		sum += p.Price
		vendors[p.VendorName] = struct{}{}
		view.ListingCount++
		view.HasPricing = true
	}

	if !view.HasPricing {
		return view
	}

	view.AvgPrice = math.Round(sum/float64(view.ListingCount)*100) / 100
	view.VendorCount = len(vendors)
	return view
}

// PriceSource supplies the latest observation per vendor offer.
type PriceSource interface {
	CurrentPricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error)
}

// Aggregator computes aggregate views on read and memoizes them until the
// product's listings change.
type Aggregator struct {
	source PriceSource

	mu    sync.RWMutex
	cache map[uuid.UUID]models.AggregateView
}

func NewAggregator(source PriceSource) *Aggregator {
	return &Aggregator{
		source: source,
		cache:  make(map[uuid.UUID]models.AggregateView),
	}
}

func (a *Aggregator) Aggregate(ctx context.Context, productID uuid.UUID) (models.AggregateView, error) {
	a.mu.RLock()
	view, ok := a.cache[productID]
	a.mu.RUnlock()
	if ok {
		return view, nil
	}

	points, err := a.source.CurrentPricePoints(ctx, productID)
	if err != nil {
		return models.AggregateView{}, fmt.Errorf("load price points: %w", err)
	}
	view = ComputeAggregate(productID, points)

	a.mu.Lock()
	a.cache[productID] = view
	a.mu.Unlock()
	return view, nil
}

// Invalidate drops the cached view after a listing maps onto the product.
func (a *Aggregator) Invalidate(productID uuid.UUID) {
	a.mu.Lock()
	delete(a.cache, productID)
	a.mu.Unlock()
}

// Reset clears the whole cache, used after bulk ingests.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.cache = make(map[uuid.UUID]models.AggregateView)
	a.mu.Unlock()
}
