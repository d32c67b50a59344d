package httputil

import (
	"net/http"
	"time"
)

// Clients holds the shared HTTP clients, each scoped with the timeout
// appropriate to its job.
type Clients struct {
	// Feed fetches vendor feed documents.
	Feed *http.Client
	// Classifier calls the remote match classifier.
	Classifier *http.Client
	// Media downloads listing images.
	Media *http.Client
	// Probe issues availability HEAD checks.
	Probe *http.Client
}

func NewClients(classifierTimeout time.Duration) *Clients {
	if classifierTimeout <= 0 {
		classifierTimeout = 10 * time.Second
	}
	return &Clients{
		Feed: &http.Client{
			Timeout: 60 * time.Second,
		},
		Classifier: &http.Client{
			Timeout: classifierTimeout,
		},
		Media: &http.Client{
			Timeout: 30 * time.Second,
		},
		Probe: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Vendors redirect dead product pages to category listings;
				// surface the redirect instead of following it.
				return http.ErrUseLastResponse
			},
		},
	}
}
