package classify

import (
	"context"
	"fmt"

	"pcbazaar/match"
	"pcbazaar/normalize"
)

// minLetterOverlap is the letter-token agreement required once the model
// codes already line up.
const minLetterOverlap = 0.5

// Heuristic is the in-process classifier tier. It accepts a candidate only
// when every digit-bearing model code agrees exactly and the brands are
// compatible, then scores the remaining letter tokens for overlap.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Classify(_ context.Context, req Request) (*Decision, error) {
	var best *match.Candidate
	bestOverlap := 0.0

	for i := range req.Candidates {
		c := &req.Candidates[i]
		if !match.Compatible(req.Normalized.Brand, c.Product.Brand) {
			continue
		}
		if !digitTokensEqual(req.Normalized.Tokens, c.Tokens) {
			continue
		}
		overlap := letterOverlap(req.Normalized.Tokens, c.Tokens)
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = c
		}
	}

	if best == nil || bestOverlap < minLetterOverlap {
		return &Decision{Matched: false, Reason: "no candidate with matching model codes"}, nil
	}
	return &Decision{
		Matched:    true,
		ProductID:  best.Product.ID,
		Confidence: bestOverlap,
		Reason:     fmt.Sprintf("model codes agree, letter overlap %.2f", bestOverlap),
	}, nil
}

// digitTokensEqual reports whether both token lists carry exactly the same
// set of digit-bearing model codes. 7700 and 7700X are different sets.
func digitTokensEqual(a, b []string) bool {
	da := digitSet(a)
	db := digitSet(b)
	if len(da) != len(db) {
		return false
	}
	for t := range da {
		if _, ok := db[t]; !ok {
			return false
		}
	}
	return true
}

func digitSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokens {
		if normalize.HasDigit(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// letterOverlap is the Jaccard index over letter-only tokens. Two empty
// letter sets count as full agreement.
func letterOverlap(a, b []string) float64 {
	la := letterSet(a)
	lb := letterSet(b)
	if len(la) == 0 && len(lb) == 0 {
		return 1
	}

	inter := 0
	union := len(lb)
	for t := range la {
		if _, ok := lb[t]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func letterSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokens {
		if !normalize.HasDigit(t) {
			out[t] = struct{}{}
		}
	}
	return out
}
