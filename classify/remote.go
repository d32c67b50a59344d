package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pcbazaar/match"
)

// Remote calls an external classifier service over JSON HTTP. Any failure
// to get a well-formed verdict maps to ErrUnavailable so the engine can
// apply its fallback.
type Remote struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewRemote(url string, client *http.Client, timeout time.Duration) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{url: url, client: client, timeout: timeout}
}

type remoteCandidate struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Brand         string   `json:"brand"`
	Tokens        []string `json:"tokens"`
	Score         float64  `json:"score"`
}

type remoteRequest struct {
	RawName    string            `json:"raw_name"`
	Tokens     []string          `json:"tokens"`
	Brand      string            `json:"brand"`
	Category   string            `json:"category"`
	Candidates []remoteCandidate `json:"candidates"`
}

type remoteResponse struct {
	Matched    bool    `json:"matched"`
	ProductID  string  `json:"product_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (r *Remote) Classify(ctx context.Context, req Request) (*Decision, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body := remoteRequest{
		RawName:  req.RawName,
		Tokens:   req.Normalized.Tokens,
		Brand:    string(req.Normalized.Brand),
		Category: string(req.Normalized.Category),
	}
	for _, c := range req.Candidates {
		body.Candidates = append(body.Candidates, remoteCandidate{
			ID:            c.Product.ID.String(),
			CanonicalName: c.Product.CanonicalName,
			Brand:         string(c.Product.Brand),
			Tokens:        c.Tokens,
			Score:         c.Score,
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var verdict remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	decision := &Decision{
		Matched:    verdict.Matched,
		Confidence: verdict.Confidence,
		Reason:     verdict.Reason,
	}
	if verdict.Matched {
		id, err := uuid.Parse(verdict.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad product id %q", ErrUnavailable, verdict.ProductID)
		}
		// A verdict pointing outside the shortlist is not trusted.
		if !inShortlist(req.Candidates, id) {
			return nil, fmt.Errorf("%w: product %s not in candidate set", ErrUnavailable, id)
		}
		decision.ProductID = id
	}
	return decision, nil
}

func inShortlist(candidates []match.Candidate, id uuid.UUID) bool {
	for _, c := range candidates {
		if c.Product.ID == id {
			return true
		}
	}
	return false
}
