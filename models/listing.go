package models

import (
	"time"

	"github.com/google/uuid"
)

// Availability mirrors the vendor stock status at scrape time.
type Availability string

const (
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
	AvailabilityLimited    Availability = "limited"
	AvailabilityPreOrder   Availability = "pre_order"
)

// ValidAvailability reports whether s is a known availability value.
func ValidAvailability(s string) bool {
	switch Availability(s) {
	case AvailabilityInStock, AvailabilityOutOfStock, AvailabilityLimited, AvailabilityPreOrder:
		return true
	}
	return false
}

// Match methods recorded on resolved listings.
const (
	MatchMethodAuto       = "auto"
	MatchMethodClassifier = "classifier"
	MatchMethodFallback   = "fallback"
	MatchMethodNew        = "new"
)

// RawListing is one scraped observation from a vendor feed. Rows are
// append-only: a re-scrape of the same vendor URL inserts a new row, which
// is what makes price-history queries possible.
type RawListing struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	VendorName   string       `json:"vendor_name" db:"vendor_name"`
	RawName      string       `json:"raw_name" db:"raw_name"`
	Category     Category     `json:"category" db:"category"` // scraper hint, may be empty
	Price        float64      `json:"price" db:"price"`       // BDT
	Availability Availability `json:"availability" db:"availability"`
	SourceURL    string       `json:"source_url" db:"source_url"`
	ImageURL     string       `json:"image_url" db:"image_url"`
	ObservedAt   time.Time    `json:"observed_at" db:"observed_at"`

	// Reconciliation outcome; ProductID is nil until resolved.
	ProductID   *uuid.UUID `json:"product_id" db:"product_id"`
	MatchMethod string     `json:"match_method" db:"match_method"`
	MatchScore  float64    `json:"match_score" db:"match_score"`
	ResolvedAt  *time.Time `json:"resolved_at" db:"resolved_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PricePoint is one historical price observation for a canonical product.
type PricePoint struct {
	ListingID    uuid.UUID    `json:"listing_id"`
	VendorName   string       `json:"vendor_name"`
	Price        float64      `json:"price"`
	Availability Availability `json:"availability"`
	ObservedAt   time.Time    `json:"observed_at"`
}

// AggregateView holds per-product price statistics computed on read from
// all mapped listings with price > 0. HasPricing is false when no listing
// carries a usable price; the numeric fields are zero in that case.
type AggregateView struct {
	ProductID    uuid.UUID `json:"product_id"`
	HasPricing   bool      `json:"has_pricing"`
	MinPrice     float64   `json:"min_price"`
	MaxPrice     float64   `json:"max_price"`
	AvgPrice     float64   `json:"avg_price"`
	VendorCount  int       `json:"vendor_count"`
	ListingCount int       `json:"listing_count"`
}

// Media is a listing image queued for mirroring to object storage.
type Media struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ListingID   uuid.UUID `json:"listing_id" db:"listing_id"`
	OriginalURL string    `json:"original_url" db:"original_url"`
	S3Key       *string   `json:"s3_key" db:"s3_key"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Status      string    `json:"status" db:"status"`
	Attempts    int       `json:"attempts" db:"attempts"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	MediaStatusPending  = "pending"
	MediaStatusUploaded = "uploaded"
	MediaStatusFailed   = "failed"
)
