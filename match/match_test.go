package match

import (
	"testing"

	"github.com/google/uuid"

	"pcbazaar/models"
	"pcbazaar/normalize"
)

func TestScoreIdentical(t *testing.T) {
	a := []string{"amd", "ryzen", "5", "5600"}
	if s := Score(a, a); s != 1.0 {
		t.Fatalf("identical sets scored %.3f, want 1.0", s)
	}
}

func TestScoreOrderInsensitive(t *testing.T) {
	a := []string{"ryzen", "5", "5600", "amd"}
	b := []string{"amd", "ryzen", "5", "5600"}
	if s := Score(a, b); s != 1.0 {
		t.Fatalf("reordered sets scored %.3f, want 1.0", s)
	}
}

func TestScoreSuffixVariantsStayApart(t *testing.T) {
	base := []string{"ryzen", "7", "7700"}
	x := []string{"ryzen", "7", "7700x"}
	xt := []string{"ryzen", "7", "7700xt"}

	if s := Score(base, x); s >= 0.95 {
		t.Errorf("7700 vs 7700X scored %.3f, must stay below auto threshold", s)
	}
	if s := Score(x, xt); s >= 0.95 {
		t.Errorf("7700X vs 7700XT scored %.3f, must stay below auto threshold", s)
	}
	// Digit-bearing codes earn no fuzzy credit at all.
	want := 2.0 * 2 / 6
	if s := Score(base, x); s != want {
		t.Errorf("7700 vs 7700X scored %.3f, want %.3f", s, want)
	}
}

func TestScoreFuzzyLetterCredit(t *testing.T) {
	a := []string{"corsair", "vengeance", "16gb"}
	b := []string{"corsair", "vengance", "16gb"} // vendor typo
	s := Score(a, b)
	if s <= 0.9 {
		t.Fatalf("typo pair scored %.3f, want above 0.9", s)
	}
	if s >= 1.0 {
		t.Fatalf("typo pair scored %.3f, want below 1.0", s)
	}
}

func TestScoreEmpty(t *testing.T) {
	if s := Score(nil, []string{"a"}); s != 0 {
		t.Fatalf("empty set scored %.3f, want 0", s)
	}
}

func TestGuardCategory(t *testing.T) {
	n := normalize.Normalize("AMD Ryzen 5 5600 Processor", models.CategoryUnknown)
	gpu := models.CanonicalProduct{
		CanonicalName: "amd ryzen 5 5600",
		Brand:         models.BrandAMD,
		Category:      models.CategoryGPU,
	}
	if Guard(n, gpu) {
		t.Fatal("category mismatch passed the guard")
	}
	cpu := gpu
	cpu.Category = models.CategoryCPU
	if !Guard(n, cpu) {
		t.Fatal("matching category failed the guard")
	}
}

func TestGuardBrand(t *testing.T) {
	n := normalize.Normalize("Intel Core i5-12400F Processor", models.CategoryUnknown)
	amd := models.CanonicalProduct{
		CanonicalName: "amd ryzen 5 5600",
		Brand:         models.BrandAMD,
		Category:      models.CategoryCPU,
	}
	if Guard(n, amd) {
		t.Fatal("brand mismatch passed the guard")
	}
	unknown := amd
	unknown.Brand = models.BrandUnknown
	if !Guard(n, unknown) {
		t.Fatal("unknown brand should never disqualify")
	}
}

func TestGuardBrandCategoryConflict(t *testing.T) {
	// No category can be inferred from the name, so only the brand rule
	// stands between the listing and a perfect token score.
	n := normalize.Normalize("NVIDIA Shield Portable", models.CategoryUnknown)
	cpu := models.CanonicalProduct{
		ID:            uuid.New(),
		CanonicalName: "nvidia shield portable",
		Brand:         models.BrandNvidia,
		Category:      models.CategoryCPU,
	}
	if Guard(n, cpu) {
		t.Fatal("NVIDIA-branded listing passed the guard for a CPU candidate")
	}
	m := New(0.60)
	if _, ok := m.Best(n, []models.CanonicalProduct{cpu}); ok {
		t.Fatal("NVIDIA-branded listing matched a CPU-category product")
	}

	gpu := cpu
	gpu.Category = models.CategoryGPU
	if !Guard(n, gpu) {
		t.Fatal("GPU candidate should pass the guard")
	}

	// The rule cuts both ways: a disk vendor's product never matches a
	// listing the normalizer placed in a silicon category.
	cpuListing := normalize.Normalize("Barracuda 7200 Processor", models.CategoryUnknown)
	seagate := models.CanonicalProduct{
		CanonicalName: "seagate barracuda 7200",
		Brand:         models.BrandSeagate,
		Category:      models.CategoryUnknown,
	}
	if Guard(cpuListing, seagate) {
		t.Fatal("Seagate-branded candidate passed the guard for a CPU listing")
	}
}

func TestRankGuardsBeforeScoring(t *testing.T) {
	m := New(0.60)
	n := normalize.Normalize("AMD Ryzen 5 5600 Processor", models.CategoryUnknown)
	products := []models.CanonicalProduct{
		{ID: uuid.New(), CanonicalName: "amd ryzen 5 5600", Brand: models.BrandAMD, Category: models.CategoryGPU},
		{ID: uuid.New(), CanonicalName: "intel core i5 12400f", Brand: models.BrandIntel, Category: models.CategoryCPU},
	}
	ranked := m.Rank(n, products)
	if len(ranked) != 0 {
		t.Fatalf("expected all candidates excluded, got %d", len(ranked))
	}
}

func TestBestTieBreaksOnListingCount(t *testing.T) {
	m := New(0.60)
	n := normalize.Normalize("Ryzen 5 5600", models.CategoryCPU)
	a := models.CanonicalProduct{
		ID: uuid.New(), CanonicalName: "ryzen 5 5600",
		Brand: models.BrandAMD, Category: models.CategoryCPU, ListingCount: 1,
	}
	b := a
	b.ID = uuid.New()
	b.ListingCount = 7

	best, ok := m.Best(n, []models.CanonicalProduct{a, b})
	if !ok {
		t.Fatal("expected a match")
	}
	if best.Product.ID != b.ID {
		t.Fatalf("tie should break toward the busier product")
	}
}

func TestBestBelowFloor(t *testing.T) {
	m := New(0.60)
	n := normalize.Normalize("Samsung 980 Pro 1TB", models.CategoryStorage)
	far := models.CanonicalProduct{
		ID: uuid.New(), CanonicalName: "barracuda compute 2tb",
		Brand: models.BrandUnknown, Category: models.CategoryStorage,
	}
	if _, ok := m.Best(n, []models.CanonicalProduct{far}); ok {
		t.Fatal("match below floor should not be returned")
	}
}

func TestShortlistCapsAndFilters(t *testing.T) {
	m := New(0.60)
	ranked := []Candidate{
		{Score: 0.9}, {Score: 0.8}, {Score: 0.7}, {Score: 0.5},
	}
	got := m.Shortlist(ranked, 2)
	if len(got) != 2 || got[0].Score != 0.9 || got[1].Score != 0.8 {
		t.Fatalf("shortlist wrong: %+v", got)
	}
	got = m.Shortlist(ranked, 10)
	if len(got) != 3 {
		t.Fatalf("shortlist should stop below the floor, got %d", len(got))
	}
}

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"vengeance", "vengeance", 1.0},
		{"abc", "xyz", 0.0},
	}
	for _, tt := range tests {
		if got := levenshteinRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinRatio(%q, %q) = %.3f, want %.3f", tt.a, tt.b, got, tt.want)
		}
	}
	if r := levenshteinRatio("vengeance", "vengance"); r < 0.85 {
		t.Errorf("one-char deletion ratio %.3f too low", r)
	}
}
