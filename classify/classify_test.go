package classify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"pcbazaar/match"
	"pcbazaar/models"
	"pcbazaar/normalize"
)

func candidate(name string, brand models.Brand, score float64) match.Candidate {
	n := normalize.Normalize(name, models.CategoryCPU)
	return match.Candidate{
		Product: models.CanonicalProduct{
			ID:            uuid.New(),
			CanonicalName: n.Key,
			Brand:         brand,
			Category:      models.CategoryCPU,
		},
		Tokens: n.Tokens,
		Score:  score,
	}
}

func TestHeuristicMatchesOnAgreedModelCodes(t *testing.T) {
	h := NewHeuristic()
	req := Request{
		RawName:    "Ryzen 5 5600 6-Core Desktop Processor",
		Normalized: normalize.Normalize("Ryzen 5 5600 6-Core Desktop Processor", models.CategoryCPU),
		Candidates: []match.Candidate{
			candidate("amd ryzen 5 5600", models.BrandAMD, 0.86),
		},
	}
	d, err := h.Classify(context.Background(), req)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !d.Matched {
		t.Fatalf("expected a match, got %+v", d)
	}
	if d.ProductID != req.Candidates[0].Product.ID {
		t.Fatal("matched the wrong candidate")
	}
}

func TestHeuristicRejectsModelCodeDrift(t *testing.T) {
	h := NewHeuristic()
	req := Request{
		RawName:    "AMD Ryzen 7 7700 Processor",
		Normalized: normalize.Normalize("AMD Ryzen 7 7700 Processor", models.CategoryCPU),
		Candidates: []match.Candidate{
			candidate("amd ryzen 7 7700x", models.BrandAMD, 0.67),
		},
	}
	d, err := h.Classify(context.Background(), req)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if d.Matched {
		t.Fatal("7700 must not classify onto 7700X")
	}
}

func TestHeuristicRejectsIncompatibleBrand(t *testing.T) {
	h := NewHeuristic()
	n := normalize.Normalize("Intel Core i5 12400", models.CategoryCPU)
	c := candidate("ryzen 5 12400", models.BrandAMD, 0.7)
	d, err := h.Classify(context.Background(), Request{Normalized: n, Candidates: []match.Candidate{c}})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if d.Matched {
		t.Fatal("brand conflict must not match")
	}
}

func TestHeuristicEmptyShortlist(t *testing.T) {
	h := NewHeuristic()
	d, err := h.Classify(context.Background(), Request{
		Normalized: normalize.Normalize("Ryzen 5 5600", models.CategoryCPU),
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if d.Matched {
		t.Fatal("empty shortlist cannot match")
	}
}

func TestRemoteMatch(t *testing.T) {
	c := candidate("amd ryzen 5 5600", models.BrandAMD, 0.86)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"matched":true,"product_id":"` + c.Product.ID.String() + `","confidence":0.91,"reason":"same sku"}`))
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, srv.Client(), 5*time.Second)
	d, err := rc.Classify(context.Background(), Request{
		RawName:    "Ryzen 5 5600",
		Normalized: normalize.Normalize("Ryzen 5 5600", models.CategoryCPU),
		Candidates: []match.Candidate{c},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !d.Matched || d.ProductID != c.Product.ID {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.Confidence != 0.91 {
		t.Fatalf("confidence = %.2f, want 0.91", d.Confidence)
	}
}

func TestRemoteServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, srv.Client(), 5*time.Second)
	_, err := rc.Classify(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, srv.Client(), 20*time.Millisecond)
	_, err := rc.Classify(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteRejectsVerdictOutsideShortlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matched":true,"product_id":"` + uuid.NewString() + `","confidence":0.99}`))
	}))
	defer srv.Close()

	rc := NewRemote(srv.URL, srv.Client(), 5*time.Second)
	_, err := rc.Classify(context.Background(), Request{
		Candidates: []match.Candidate{candidate("amd ryzen 5 5600", models.BrandAMD, 0.8)},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
