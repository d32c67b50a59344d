package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pcbazaar/config"
	"pcbazaar/models"
)

func loadFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture %s: %v", name, err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func startech() *config.VendorConfig {
	return &config.VendorConfig{
		ID:       "startech",
		Name:     "StarTech",
		Format:   "html",
		Category: "Processor",
	}
}

func TestParseHTMLGrid(t *testing.T) {
	f := loadFixture(t, "startech_grid.html")
	listings, bad, err := ParseHTML(f, startech())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3", len(listings))
	}
	if len(bad) != 1 {
		t.Fatalf("got %d invalid records, want 1 (nameless card)", len(bad))
	}

	first := listings[0]
	if first.RawName != "AMD Ryzen 5 5600 Processor" {
		t.Errorf("name = %q", first.RawName)
	}
	if first.Price != 18500 {
		t.Errorf("price = %.2f, want 18500", first.Price)
	}
	if first.Category != models.CategoryCPU {
		t.Errorf("category = %q, want CPU", first.Category)
	}
	if first.VendorName != "StarTech" {
		t.Errorf("vendor = %q", first.VendorName)
	}
	if !strings.HasSuffix(first.SourceURL, "amd-ryzen-5-5600") {
		t.Errorf("source url = %q", first.SourceURL)
	}
	if first.ImageURL == "" {
		t.Error("image url missing")
	}

	oos := listings[2]
	if oos.Availability != models.AvailabilityOutOfStock {
		t.Errorf("availability = %q, want out_of_stock", oos.Availability)
	}
	if oos.Price != 0 {
		t.Errorf("out-of-stock price = %.2f, want 0", oos.Price)
	}
}

func TestParseJSONFeed(t *testing.T) {
	body := `[
		{"name": "Corsair Vengeance 16GB DDR5", "category": "RAM", "price": 7200, "url": "https://example.com/1", "image_url": "https://example.com/1.jpg"},
		{"name": "", "category": "RAM", "price": 100},
		{"name": "Crucial P3 1TB", "category": "SSD", "price": -5},
		{"name": "Samsung 980 Pro 1TB", "category": "SSD", "price": 11500, "availability": "limited"}
	]`
	listings, bad, err := ParseJSON(strings.NewReader(body), &config.VendorConfig{ID: "techland", Name: "Techland"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if len(bad) != 2 {
		t.Fatalf("got %d invalid records, want 2", len(bad))
	}
	for _, e := range bad {
		if !errors.Is(e, ErrInvalidListing) {
			t.Errorf("error %v should wrap ErrInvalidListing", e)
		}
	}
	if listings[0].Category != models.CategoryRAM {
		t.Errorf("category = %q, want RAM", listings[0].Category)
	}
	if listings[1].Availability != models.AvailabilityLimited {
		t.Errorf("availability = %q, want limited", listings[1].Availability)
	}
	if listings[0].Availability != models.AvailabilityInStock {
		t.Errorf("default availability = %q, want in_stock", listings[0].Availability)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"18,500৳", 18500, true},
		{"BDT 42,000", 42000, true},
		{"Tk 7,200.50", 7200.50, true},
		{"Out of Stock", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParsePrice(%q) err: %v", tt.in, err)
			continue
		}
		if !tt.ok && err == nil {
			t.Errorf("ParsePrice(%q) expected error", tt.in)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParsePrice(%q) = %.2f, want %.2f", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	good := models.RawListing{
		VendorName: "StarTech", RawName: "AMD Ryzen 5 5600",
		Price: 18500, Availability: models.AvailabilityInStock,
	}
	if err := Validate(&good); err != nil {
		t.Fatalf("valid listing rejected: %v", err)
	}

	bad := good
	bad.Availability = "maybe"
	if err := Validate(&bad); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("err = %v, want ErrInvalidListing", err)
	}
}

type memIngestStore struct {
	listings []models.RawListing
	media    []string
}

func (m *memIngestStore) InsertListing(_ context.Context, l *models.RawListing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.listings = append(m.listings, *l)
	return nil
}

func (m *memIngestStore) EnqueueMedia(_ context.Context, _ uuid.UUID, url string) error {
	m.media = append(m.media, url)
	return nil
}

func TestServiceIngestsLocalFeed(t *testing.T) {
	store := &memIngestStore{}
	vendor := startech()
	vendor.FeedPath = filepath.Join("testdata", "startech_grid.html")

	svc := NewService(store, nil, map[string]*config.VendorConfig{"startech": vendor})
	stats, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Inserted != 3 {
		t.Fatalf("inserted = %d, want 3", stats.Inserted)
	}
	if stats.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", stats.Skipped)
	}
	if len(store.media) != 3 {
		t.Fatalf("media enqueued = %d, want 3", len(store.media))
	}
	// Append-only: a second pass inserts fresh rows.
	if _, err := svc.RunAll(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(store.listings) != 6 {
		t.Fatalf("listings after re-ingest = %d, want 6", len(store.listings))
	}
}
