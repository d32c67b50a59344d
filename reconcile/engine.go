package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"pcbazaar/classify"
	"pcbazaar/match"
	"pcbazaar/models"
	"pcbazaar/normalize"
)

// shortlistSize caps the candidate set handed to the classifier.
const shortlistSize = 10

// Store is the persistence surface the engine needs.
type Store interface {
	PendingListings(ctx context.Context, limit int) ([]models.RawListing, error)
	ProductsByCategory(ctx context.Context, cat models.Category) ([]models.CanonicalProduct, error)
	AllProducts(ctx context.Context) ([]models.CanonicalProduct, error)
	CreateOrFetchProduct(ctx context.Context, p *models.CanonicalProduct) (*models.CanonicalProduct, error)
	ResolveListing(ctx context.Context, listingID, productID uuid.UUID, method string, score float64) error
	PruneOrphanProducts(ctx context.Context) (int, error)
	StartRun(ctx context.Context) (*models.ReconcileRun, error)
	FinishRun(ctx context.Context, run *models.ReconcileRun) error
	AppendRunLog(ctx context.Context, l *models.ReconcileLog) error
}

// Engine maps pending raw listings onto canonical products: high-confidence
// similarity auto-matches, the ambiguous band escalates to the classifier,
// and everything else becomes a new product. A listing is never dropped.
type Engine struct {
	store      Store
	matcher    *match.Matcher
	classifier classify.Classifier
	auto       float64

	// OnResolve is called after a listing maps onto a product, so read
	// caches can drop the stale aggregate.
	OnResolve func(productID uuid.UUID)
}

func NewEngine(store Store, matcher *match.Matcher, classifier classify.Classifier, autoThreshold float64) *Engine {
	return &Engine{
		store:      store,
		matcher:    matcher,
		classifier: classifier,
		auto:       autoThreshold,
	}
}

// ProcessBatch resolves up to batchSize pending listings, sharded by
// category so product creations within one category are serialized. Each
// listing commits independently; a persistence failure requeues only that
// listing. The run record carries the batch counters.
func (e *Engine) ProcessBatch(ctx context.Context, batchSize int) (*models.ReconcileRun, error) {
	pending, err := e.store.PendingListings(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("load pending listings: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	run, err := e.store.StartRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	buckets := shardByCategory(pending)
	for _, bucket := range buckets {
		// Candidates are fetched fresh per listing so products created
		// earlier in the batch are visible to later listings.
		for _, listing := range bucket {
			if err := ctx.Err(); err != nil {
				run.Status = models.RunStatusFailed
				e.finishRun(ctx, run)
				return run, err
			}

			run.Processed++
			if err := e.resolveListing(ctx, run, listing); err != nil {
				run.Errors++
				run.Requeued++
				e.logRun(ctx, run, models.LogLevelError, listing.VendorName,
					fmt.Sprintf("listing %s left pending: %v", listing.ID, err))
			}
		}
	}

	run.Status = models.RunStatusComplete
	e.finishRun(ctx, run)

	if pruned, err := e.store.PruneOrphanProducts(ctx); err != nil {
		log.Printf("Warning: prune orphan products: %v", err)
	} else if pruned > 0 {
		log.Printf("Pruned %d orphan products", pruned)
	}

	return run, nil
}

// resolveListing runs the full match for one listing. Re-running it for an
// already-detached listing repeats every step; nothing is memoized.
func (e *Engine) resolveListing(ctx context.Context, run *models.ReconcileRun, listing models.RawListing) error {
	n := normalize.Normalize(listing.RawName, models.NormalizeCategory(string(listing.Category)))

	candidates, err := e.candidates(ctx, n.Category)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}

	ranked := e.matcher.Rank(n, candidates)

	if len(ranked) > 0 && ranked[0].Score >= e.auto {
		if err := e.attach(ctx, listing, ranked[0].Product.ID, models.MatchMethodAuto, ranked[0].Score); err != nil {
			return err
		}
		run.AutoMatched++
		return nil
	}

	if len(ranked) > 0 && ranked[0].Score >= e.matcher.Floor() {
		run.Escalated++
		decision, err := e.classifier.Classify(ctx, classify.Request{
			RawName:    listing.RawName,
			Normalized: n,
			Candidates: e.matcher.Shortlist(ranked, shortlistSize),
		})
		if err != nil {
			// Classifier down or timed out: the listing still lands
			// somewhere deterministic.
			e.logRun(ctx, run, models.LogLevelWarn, listing.VendorName,
				fmt.Sprintf("classifier unavailable for %q: %v", listing.RawName, err))
			return e.createAndAttach(ctx, run, listing, n, models.MatchMethodFallback, ranked[0].Score)
		}
		if decision.Matched {
			return e.attach(ctx, listing, decision.ProductID, models.MatchMethodClassifier, decision.Confidence)
		}
		return e.createAndAttach(ctx, run, listing, n, models.MatchMethodNew, ranked[0].Score)
	}

	return e.createAndAttach(ctx, run, listing, n, models.MatchMethodNew, 0)
}

func (e *Engine) candidates(ctx context.Context, cat models.Category) ([]models.CanonicalProduct, error) {
	if cat == models.CategoryUnknown {
		return e.store.AllProducts(ctx)
	}
	return e.store.ProductsByCategory(ctx, cat)
}

func (e *Engine) attach(ctx context.Context, listing models.RawListing, productID uuid.UUID, method string, score float64) error {
	if err := e.store.ResolveListing(ctx, listing.ID, productID, method, score); err != nil {
		return fmt.Errorf("resolve listing: %w", err)
	}
	if e.OnResolve != nil {
		e.OnResolve(productID)
	}
	return nil
}

func (e *Engine) createAndAttach(ctx context.Context, run *models.ReconcileRun, listing models.RawListing, n normalize.Normalized, method string, score float64) error {
	product, err := e.store.CreateOrFetchProduct(ctx, &models.CanonicalProduct{
		CanonicalName: n.Key,
		Brand:         n.Brand,
		Category:      n.Category,
	})
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	run.Created++
	return e.attach(ctx, listing, product.ID, method, score)
}

// shardByCategory groups listings into per-category buckets with a stable
// bucket order.
func shardByCategory(listings []models.RawListing) [][]models.RawListing {
	byCat := make(map[models.Category][]models.RawListing)
	for _, l := range listings {
		cat := models.NormalizeCategory(string(l.Category))
		byCat[cat] = append(byCat[cat], l)
	}

	order := append([]models.Category{}, models.Categories...)
	order = append(order, models.CategoryUnknown)

	out := make([][]models.RawListing, 0, len(byCat))
	for _, cat := range order {
		if bucket, ok := byCat[cat]; ok {
			out = append(out, bucket)
		}
	}
	return out
}

func (e *Engine) finishRun(ctx context.Context, run *models.ReconcileRun) {
	if err := e.store.FinishRun(ctx, run); err != nil {
		log.Printf("Warning: finish run %d: %v", run.ID, err)
	}
}

func (e *Engine) logRun(ctx context.Context, run *models.ReconcileRun, level, vendor, msg string) {
	log.Printf("[run %d] %s", run.ID, msg)
	entry := &models.ReconcileLog{RunID: &run.ID, Level: level, Message: msg, Vendor: vendor}
	if err := e.store.AppendRunLog(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Warning: append run log: %v", err)
	}
}
