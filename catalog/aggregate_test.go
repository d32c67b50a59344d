package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"pcbazaar/models"
)

func TestComputeAggregate(t *testing.T) {
	id := uuid.New()
	points := []models.PricePoint{
		{VendorName: "Vendor A", Price: 18500},
		{VendorName: "Vendor B", Price: 19200},
		{VendorName: "Vendor A", Price: 0}, // call-for-price, excluded
		{VendorName: "Vendor C", Price: 19500},
	}

	view := ComputeAggregate(id, points)

	if !view.HasPricing {
		t.Fatal("expected pricing data")
	}
	if view.MinPrice != 18500 {
		t.Errorf("min = %.2f, want 18500", view.MinPrice)
	}
	if view.MaxPrice != 19500 {
		t.Errorf("max = %.2f, want 19500", view.MaxPrice)
	}
	if view.AvgPrice != 19066.67 {
		t.Errorf("avg = %.2f, want 19066.67", view.AvgPrice)
	}
	if view.VendorCount != 3 {
		t.Errorf("vendors = %d, want 3", view.VendorCount)
	}
	if view.ListingCount != 3 {
		t.Errorf("listings = %d, want 3", view.ListingCount)
	}
}

func TestComputeAggregateNoPricing(t *testing.T) {
	id := uuid.New()
	view := ComputeAggregate(id, []models.PricePoint{
		{VendorName: "Vendor A", Price: 0},
		{VendorName: "Vendor B", Price: -1},
	})
	if view.HasPricing {
		t.Fatal("expected no-pricing sentinel")
	}
	if view.MinPrice != 0 || view.MaxPrice != 0 || view.AvgPrice != 0 ||
		view.VendorCount != 0 || view.ListingCount != 0 {
		t.Fatalf("sentinel view carries data: %+v", view)
	}
}

func TestComputeAggregateEmpty(t *testing.T) {
	view := ComputeAggregate(uuid.New(), nil)
	if view.HasPricing {
		t.Fatal("empty set must report no pricing")
	}
}

type fakeSource struct {
	points map[uuid.UUID][]models.PricePoint
	calls  int
}

func (f *fakeSource) CurrentPricePoints(_ context.Context, id uuid.UUID) ([]models.PricePoint, error) {
	f.calls++
	return f.points[id], nil
}

func TestAggregatorCachesUntilInvalidated(t *testing.T) {
	id := uuid.New()
	src := &fakeSource{points: map[uuid.UUID][]models.PricePoint{
		id: {{VendorName: "Vendor A", Price: 1000}},
	}}
	agg := NewAggregator(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := agg.Aggregate(ctx, id); err != nil {
			t.Fatalf("aggregate: %v", err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("source hit %d times, want 1", src.calls)
	}

	src.points[id] = append(src.points[id], models.PricePoint{VendorName: "Vendor B", Price: 900})
	agg.Invalidate(id)

	view, err := agg.Aggregate(ctx, id)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("source hit %d times after invalidation, want 2", src.calls)
	}
	if view.MinPrice != 900 || view.VendorCount != 2 {
		t.Fatalf("stale view after invalidation: %+v", view)
	}
}
