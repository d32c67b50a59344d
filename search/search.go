package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	meilisearch "github.com/meilisearch/meilisearch-go"

	"pcbazaar/models"
)

// Index maintains the full-text product index. It is optional: when no
// search host is configured the daemon falls back to SQL LIKE matching.
type Index struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
	name   string
}

func NewIndex(url, apiKey, name string) (*Index, error) {
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))

	// Index may already exist; a real connectivity problem surfaces on the
	// settings call below.
	_, _ = client.CreateIndex(&meilisearch.IndexConfig{Uid: name, PrimaryKey: "id"})

	idx := client.Index(name)
	settings := meilisearch.Settings{
		SearchableAttributes: []string{"canonical_name", "raw_names", "brand"},
		FilterableAttributes: []string{"brand", "category"},
		SortableAttributes:   []string{"canonical_name"},
	}
	if _, err := idx.UpdateSettings(&settings); err != nil {
		return nil, fmt.Errorf("update index settings: %w", err)
	}

	return &Index{client: client, index: idx, name: name}, nil
}

// document is the indexed shape of a canonical product.
type document struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Brand         string   `json:"brand"`
	Category      string   `json:"category"`
	RawNames      []string `json:"raw_names"`
	ListingCount  int      `json:"listing_count"`
}

// Upsert indexes products with the raw vendor names mapped onto each, so a
// search for a vendor's phrasing still finds the canonical product.
func (i *Index) Upsert(products []models.CanonicalProduct, rawNames map[uuid.UUID][]string) error {
	if len(products) == 0 {
		return nil
	}
	docs := make([]document, 0, len(products))
	for _, p := range products {
		docs = append(docs, document{
			ID:            p.ID.String(),
			CanonicalName: p.CanonicalName,
			Brand:         string(p.Brand),
			Category:      string(p.Category),
			RawNames:      rawNames[p.ID],
			ListingCount:  p.ListingCount,
		})
	}
	if _, err := i.index.AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Delete removes pruned products from the index.
func (i *Index) Delete(ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}
	if _, err := i.index.DeleteDocuments(strIDs, nil); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Search returns product ids ranked by relevance.
func (i *Index) Search(query, brand, category string, limit, offset int) ([]uuid.UUID, int, error) {
	req := &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Offset: int64(offset),
	}
	var filters []string
	if brand != "" {
		filters = append(filters, fmt.Sprintf("brand = %q", brand))
	}
	if category != "" {
		filters = append(filters, fmt.Sprintf("category = %q", category))
	}
	if len(filters) > 0 {
		req.Filter = strings.Join(filters, " AND ")
	}

	res, err := i.index.Search(query, req)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}

	var hits []map[string]interface{}
	b, _ := json.Marshal(res.Hits)
	_ = json.Unmarshal(b, &hits)

	ids := make([]uuid.UUID, 0, len(hits))
	for _, doc := range hits {
		raw, _ := doc["id"].(string)
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	total := int(res.EstimatedTotalHits)
	if total == 0 {
		total = len(ids)
	}
	return ids, total, nil
}
