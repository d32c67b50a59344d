package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pcbazaar/config"
	"pcbazaar/models"
)

// ErrInvalidListing marks a feed record that cannot become a raw listing.
// Invalid records are skipped and counted, never aborting the feed.
var ErrInvalidListing = errors.New("invalid listing")

// feedRecord is one entry in a JSON vendor feed.
type feedRecord struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Availability string  `json:"availability"`
	URL          string  `json:"url"`
	ImageURL     string  `json:"image_url"`
}

// ParseJSON decodes a JSON vendor feed (an array of records) into raw
// listings. Invalid records come back separately as errors.
func ParseJSON(r io.Reader, vendor *config.VendorConfig) ([]models.RawListing, []error, error) {
	var records []feedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, nil, fmt.Errorf("decode feed: %w", err)
	}

	now := time.Now()
	var listings []models.RawListing
	var bad []error
	for i, rec := range records {
		l := models.RawListing{
			VendorName:   vendor.Name,
			RawName:      strings.TrimSpace(rec.Name),
			Category:     models.NormalizeCategory(rec.Category),
			Price:        rec.Price,
			Availability: models.Availability(rec.Availability),
			SourceURL:    rec.URL,
			ImageURL:     rec.ImageURL,
			ObservedAt:   now,
		}
		if l.Category == models.CategoryUnknown && vendor.Category != "" {
			l.Category = models.NormalizeCategory(vendor.Category)
		}
		if l.Availability == "" {
			l.Availability = models.AvailabilityInStock
		}
		if err := Validate(&l); err != nil {
			bad = append(bad, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		listings = append(listings, l)
	}
	return listings, bad, nil
}

// ParseHTML extracts listings from a saved vendor product grid using the
// vendor's CSS selectors. Defaults fit the common Bangladeshi storefront
// layout (item cards in div.p-item).
func ParseHTML(r io.Reader, vendor *config.VendorConfig) ([]models.RawListing, []error, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w", err)
	}

	itemSel := defaultStr(vendor.ItemSelector, "div.p-item")
	nameSel := defaultStr(vendor.NameSelector, "h4.p-item-name")
	priceSel := defaultStr(vendor.PriceSelector, "div.p-item-price span")
	linkSel := defaultStr(vendor.LinkSelector, "h4.p-item-name a")
	imageSel := defaultStr(vendor.ImageSelector, "div.p-item-img img")

	now := time.Now()
	var listings []models.RawListing
	var bad []error
	doc.Find(itemSel).Each(func(i int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(nameSel).First().Text())
		priceText := strings.TrimSpace(sel.Find(priceSel).First().Text())
		link, _ := sel.Find(linkSel).First().Attr("href")
		img, _ := sel.Find(imageSel).First().Attr("src")

		price, err := ParsePrice(priceText)
		if err != nil {
			// "Out of Stock" or "Call for Price" in the price cell.
			price = 0
		}

		l := models.RawListing{
			VendorName:   vendor.Name,
			RawName:      name,
			Category:     models.NormalizeCategory(vendor.Category),
			Price:        price,
			Availability: availabilityFromText(priceText),
			SourceURL:    link,
			ImageURL:     img,
			ObservedAt:   now,
		}
		if err := Validate(&l); err != nil {
			bad = append(bad, fmt.Errorf("item %d: %w", i, err))
			return
		}
		listings = append(listings, l)
	})
	return listings, bad, nil
}

// ParsePrice reads a vendor price cell like "19,500৳" or "BDT 18,500".
func ParsePrice(text string) (float64, error) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("no digits in price %q", text)
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return v, nil
}

func availabilityFromText(priceText string) models.Availability {
	lower := strings.ToLower(priceText)
	switch {
	case strings.Contains(lower, "out of stock"):
		return models.AvailabilityOutOfStock
	case strings.Contains(lower, "pre order") || strings.Contains(lower, "pre-order"):
		return models.AvailabilityPreOrder
	case strings.Contains(lower, "up coming") || strings.Contains(lower, "upcoming"):
		return models.AvailabilityLimited
	}
	return models.AvailabilityInStock
}

// Validate rejects records that cannot be reconciled or priced.
func Validate(l *models.RawListing) error {
	if l.RawName == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidListing)
	}
	if l.VendorName == "" {
		return fmt.Errorf("%w: empty vendor", ErrInvalidListing)
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: negative price %.2f", ErrInvalidListing, l.Price)
	}
	if !models.ValidAvailability(string(l.Availability)) {
		return fmt.Errorf("%w: unknown availability %q", ErrInvalidListing, l.Availability)
	}
	return nil
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
