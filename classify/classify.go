package classify

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pcbazaar/match"
	"pcbazaar/normalize"
)

// ErrUnavailable signals that the classifier could not produce a verdict
// (timeout, transport failure, bad response). The caller falls back to
// creating a new product; a listing is never dropped.
var ErrUnavailable = errors.New("classifier unavailable")

// Request carries one escalated listing plus its candidate shortlist.
type Request struct {
	RawName    string
	Normalized normalize.Normalized
	Candidates []match.Candidate
}

// Decision is the classifier verdict for an escalated listing.
type Decision struct {
	Matched    bool
	ProductID  uuid.UUID
	Confidence float64
	Reason     string
}

// Classifier resolves listings the similarity score alone cannot decide.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Decision, error)
}
