package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"

	"pcbazaar/config"
	"pcbazaar/models"
)

// Store is the persistence surface ingestion needs.
type Store interface {
	InsertListing(ctx context.Context, l *models.RawListing) error
	EnqueueMedia(ctx context.Context, listingID uuid.UUID, originalURL string) error
}

// Service pulls vendor feeds and appends their records as raw listings.
// Every observation is a new row; nothing is updated in place.
type Service struct {
	store   Store
	client  *http.Client
	vendors map[string]*config.VendorConfig
}

func NewService(store Store, client *http.Client, vendors map[string]*config.VendorConfig) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{store: store, client: client, vendors: vendors}
}

// Stats summarizes one ingest pass.
type Stats struct {
	Vendors  int
	Inserted int
	Skipped  int
	Failed   int
}

// RunAll ingests every configured vendor feed. A vendor failure is logged
// and counted; the pass continues.
func (s *Service) RunAll(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	for id, vendor := range s.vendors {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		inserted, skipped, err := s.runVendor(ctx, vendor)
		stats.Inserted += inserted
		stats.Skipped += skipped
		if err != nil {
			stats.Failed++
			log.Printf("Warning: ingest %s: %v", id, err)
			continue
		}
		stats.Vendors++
		log.Printf("Ingested %s: %d listings, %d skipped", id, inserted, skipped)
	}
	return stats, nil
}

func (s *Service) runVendor(ctx context.Context, vendor *config.VendorConfig) (int, int, error) {
	listings, bad, err := s.fetch(ctx, vendor)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range bad {
		log.Printf("Warning: %s: %v", vendor.ID, e)
	}

	inserted := 0
	for i := range listings {
		l := &listings[i]
		if err := s.store.InsertListing(ctx, l); err != nil {
			return inserted, len(bad), fmt.Errorf("insert %q: %w", l.RawName, err)
		}
		inserted++
		if l.ImageURL != "" {
			if err := s.store.EnqueueMedia(ctx, l.ID, l.ImageURL); err != nil {
				log.Printf("Warning: enqueue media for %q: %v", l.RawName, err)
			}
		}
	}
	return inserted, len(bad), nil
}

func (s *Service) fetch(ctx context.Context, vendor *config.VendorConfig) ([]models.RawListing, []error, error) {
	switch {
	case vendor.FeedPath != "":
		f, err := os.Open(vendor.FeedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		return s.parse(f, vendor)

	case vendor.FeedURL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, vendor.FeedURL, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch feed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
		}
		return s.parse(resp.Body, vendor)
	}
	return nil, nil, fmt.Errorf("vendor %s has neither feed_url nor feed_path", vendor.ID)
}

func (s *Service) parse(r io.Reader, vendor *config.VendorConfig) ([]models.RawListing, []error, error) {
	switch vendor.Format {
	case "html":
		return ParseHTML(r, vendor)
	case "json", "":
		return ParseJSON(r, vendor)
	}
	return nil, nil, fmt.Errorf("vendor %s: unknown feed format %q", vendor.ID, vendor.Format)
}
