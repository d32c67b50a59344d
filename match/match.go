package match

import (
	"sort"

	"pcbazaar/models"
	"pcbazaar/normalize"
)

// fuzzyMin is the Levenshtein ratio below which two letter tokens get no
// partial credit.
const fuzzyMin = 0.75

// Candidate is a canonical product scored against one normalized listing.
type Candidate struct {
	Product models.CanonicalProduct
	Tokens  []string
	Score   float64
}

type Matcher struct {
	floor float64
}

func New(floor float64) *Matcher {
	return &Matcher{floor: floor}
}

func (m *Matcher) Floor() float64 { return m.floor }

// Compatible reports whether two brands can belong to the same product.
// An unknown brand never disqualifies.
func Compatible(a, b models.Brand) bool {
	return a == b || a == models.BrandUnknown || b == models.BrandUnknown
}

// brandCategoryConflicts lists categories a brand's catalog never occupies.
// NVIDIA sells no CPUs or memory; memory and disk vendors sell no silicon.
var brandCategoryConflicts = map[models.Brand][]models.Category{
	models.BrandNvidia:   {models.CategoryCPU, models.CategoryRAM, models.CategoryMotherboard, models.CategoryPSU, models.CategoryStorage},
	models.BrandGSkill:   {models.CategoryCPU, models.CategoryGPU, models.CategoryMotherboard},
	models.BrandKingston: {models.CategoryCPU, models.CategoryGPU, models.CategoryMotherboard},
	models.BrandCrucial:  {models.CategoryCPU, models.CategoryGPU, models.CategoryMotherboard},
	models.BrandTeam:     {models.CategoryCPU, models.CategoryGPU, models.CategoryMotherboard},
	models.BrandWD:       {models.CategoryCPU, models.CategoryGPU, models.CategoryRAM, models.CategoryMotherboard},
	models.BrandSeagate:  {models.CategoryCPU, models.CategoryGPU, models.CategoryRAM, models.CategoryMotherboard},
}

func conflicts(b models.Brand, c models.Category) bool {
	for _, forbidden := range brandCategoryConflicts[b] {
		if c == forbidden {
			return true
		}
	}
	return false
}

// Guard reports whether a canonical product is structurally able to match
// the listing at all. Incompatible candidates are excluded before scoring.
// The brand rule applies even when one side's category is unknown, so an
// NVIDIA-branded listing never lands on a CPU- or RAM-category product.
func Guard(n normalize.Normalized, p models.CanonicalProduct) bool {
	if n.Category != models.CategoryUnknown && p.Category != models.CategoryUnknown &&
		n.Category != p.Category {
		return false
	}
	if conflicts(n.Brand, p.Category) || conflicts(p.Brand, n.Category) {
		return false
	}
	return Compatible(n.Brand, p.Brand)
}

// Score computes order-insensitive token-set similarity in [0,1].
// Exact overlaps count in full; letter-only tokens may earn partial credit
// by edit-distance ratio; digit-bearing tokens only ever match exactly,
// which keeps 7700, 7700X and 7700XT apart.
func Score(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	_, keysA := dedupe(a)
	setB, keysB := dedupe(b)

	var credit float64
	restA := make([]string, 0, len(keysA))
	matchedB := make(map[string]bool, len(keysB))

	for _, t := range keysA {
		if _, ok := setB[t]; ok {
			credit++
			matchedB[t] = true
			continue
		}
		if !normalize.HasDigit(t) {
			restA = append(restA, t)
		}
	}

	// Partial credit for near-identical letter tokens (typos, pluralization).
	// Sorted order keeps the greedy pairing deterministic.
	for _, ta := range restA {
		best := 0.0
		bestTok := ""
		for _, tb := range keysB {
			if matchedB[tb] || normalize.HasDigit(tb) {
				continue
			}
			if r := levenshteinRatio(ta, tb); r > best {
				best = r
				bestTok = tb
			}
		}
		if best >= fuzzyMin {
			credit += best
			matchedB[bestTok] = true
		}
	}

	return 2 * credit / float64(len(keysA)+len(keysB))
}

// Rank scores the guarded candidates against the listing and sorts them
// best-first. Ties break on listing count, then name for determinism.
func (m *Matcher) Rank(n normalize.Normalized, products []models.CanonicalProduct) []Candidate {
	out := make([]Candidate, 0, len(products))
	for _, p := range products {
		if !Guard(n, p) {
			continue
		}
		tokens := normalize.Normalize(p.CanonicalName, p.Category).Tokens
		out = append(out, Candidate{
			Product: p,
			Tokens:  tokens,
			Score:   Score(n.Tokens, tokens),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Product.ListingCount != out[j].Product.ListingCount {
			return out[i].Product.ListingCount > out[j].Product.ListingCount
		}
		return out[i].Product.CanonicalName < out[j].Product.CanonicalName
	})
	return out
}

// Best returns the top candidate at or above the floor threshold.
func (m *Matcher) Best(n normalize.Normalized, products []models.CanonicalProduct) (Candidate, bool) {
	ranked := m.Rank(n, products)
	if len(ranked) == 0 || ranked[0].Score < m.floor {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Shortlist returns the top n ranked candidates at or above the floor,
// the set handed to the secondary classifier.
func (m *Matcher) Shortlist(ranked []Candidate, n int) []Candidate {
	out := make([]Candidate, 0, n)
	for _, c := range ranked {
		if c.Score < m.floor {
			break
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

func dedupe(tokens []string) (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(tokens))
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			continue
		}
		set[t] = struct{}{}
		keys = append(keys, t)
	}
	sort.Strings(keys)
	return set, keys
}

// levenshteinRatio is 1 - editDistance/maxLen, in [0,1].
func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
