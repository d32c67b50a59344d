package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"pcbazaar/models"
	"pcbazaar/search"
)

// IndexStore supplies the catalog rows the search index mirrors.
type IndexStore interface {
	AllProducts(ctx context.Context) ([]models.CanonicalProduct, error)
	RawNamesForProduct(ctx context.Context, productID uuid.UUID) ([]string, error)
}

// IndexSyncWorker pushes the catalog into Meilisearch on an interval. The
// index is a mirror, never the source of truth, so a full re-upsert is
// cheap and self-healing.
type IndexSyncWorker struct {
	store IndexStore
	index *search.Index
}

func NewIndexSyncWorker(store IndexStore, index *search.Index) *IndexSyncWorker {
	return &IndexSyncWorker{store: store, index: index}
}

func (w *IndexSyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := w.sync(ctx); err != nil {
			log.Printf("Index sync: %v", err)
		}
	}
}

func (w *IndexSyncWorker) sync(ctx context.Context) error {
	products, err := w.store.AllProducts(ctx)
	if err != nil {
		return err
	}
	rawNames := make(map[uuid.UUID][]string, len(products))
	for _, p := range products {
		names, err := w.store.RawNamesForProduct(ctx, p.ID)
		if err != nil {
			return err
		}
		rawNames[p.ID] = names
	}
	if err := w.index.Upsert(products, rawNames); err != nil {
		return err
	}
	log.Printf("Index sync: upserted %d products", len(products))
	return nil
}
