package workers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pcbazaar/models"
)

// AvailabilityStore is the surface for re-checking vendor product pages.
type AvailabilityStore interface {
	StaleListings(ctx context.Context, cutoff time.Time, limit int) ([]models.RawListing, error)
	UpdateAvailability(ctx context.Context, listingID uuid.UUID, a models.Availability) error
}

// AvailabilityWorker HEADs listing source URLs that have not been checked
// recently. A 404 or a redirect off the product page marks the offer out
// of stock; vendors redirect dead SKUs to category pages.
type AvailabilityWorker struct {
	store  AvailabilityStore
	client *http.Client
	maxAge time.Duration
}

func NewAvailabilityWorker(store AvailabilityStore, client *http.Client, maxAge time.Duration) *AvailabilityWorker {
	if client == nil {
		client = http.DefaultClient
	}
	return &AvailabilityWorker{store: store, client: client, maxAge: maxAge}
}

func (w *AvailabilityWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-w.maxAge)
		batch, err := w.store.StaleListings(ctx, cutoff, batchSize)
		if err != nil {
			log.Printf("Availability worker: load stale listings: %v", err)
			continue
		}
		checked, marked := 0, 0
		for _, l := range batch {
			if ctx.Err() != nil {
				return
			}
			avail, ok := w.probe(ctx, l.SourceURL)
			if !ok {
				continue
			}
			checked++
			if avail != l.Availability {
				marked++
			}
			if err := w.store.UpdateAvailability(ctx, l.ID, avail); err != nil {
				log.Printf("Availability worker: update %s: %v", l.ID, err)
			}
		}
		if checked > 0 {
			log.Printf("Availability worker: checked %d listings, %d changed", checked, marked)
		}
	}
}

// probe returns the availability implied by the page status. Transport
// errors return ok=false: an unreachable vendor says nothing about stock.
func (w *AvailabilityWorker) probe(ctx context.Context, url string) (models.Availability, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", false
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusGone,
		resp.StatusCode >= 300 && resp.StatusCode < 400:
		return models.AvailabilityOutOfStock, true
	case resp.StatusCode == http.StatusOK:
		return models.AvailabilityInStock, true
	}
	return "", false
}
