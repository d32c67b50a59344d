package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pcbazaar/models"
)

func TestAvailabilityProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alive":
			w.WriteHeader(http.StatusOK)
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/moved":
			w.Header().Set("Location", "/category")
			w.WriteHeader(http.StatusFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	w := NewAvailabilityWorker(nil, client, time.Hour)

	tests := []struct {
		path string
		want models.Availability
		ok   bool
	}{
		{"/alive", models.AvailabilityInStock, true},
		{"/gone", models.AvailabilityOutOfStock, true},
		{"/moved", models.AvailabilityOutOfStock, true},
		{"/error", "", false},
	}
	for _, tt := range tests {
		got, ok := w.probe(context.Background(), srv.URL+tt.path)
		if ok != tt.ok {
			t.Errorf("probe(%s) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("probe(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMediaKeyExtension(t *testing.T) {
	tests := []struct {
		url, contentType, want string
	}{
		{"https://cdn.example.com/ryzen.jpg", "", ".jpg"},
		{"https://cdn.example.com/ryzen", "image/png", ".png"},
		{"https://cdn.example.com/ryzen", "image/webp", ".webp"},
		{"https://cdn.example.com/ryzen", "text/html", ""},
	}
	for _, tt := range tests {
		if got := ext(tt.url, tt.contentType); got != tt.want {
			t.Errorf("ext(%q, %q) = %q, want %q", tt.url, tt.contentType, got, tt.want)
		}
	}
}

func TestReconcileTriggerCoalesces(t *testing.T) {
	w := NewReconcileWorker(nil)
	w.Trigger()
	w.Trigger()
	w.Trigger()

	select {
	case <-w.trigger:
	default:
		t.Fatal("expected one pending trigger")
	}
	select {
	case <-w.trigger:
		t.Fatal("triggers should coalesce into one")
	default:
	}
}
