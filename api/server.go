package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"pcbazaar/catalog"
	"pcbazaar/models"
	"pcbazaar/search"
	"pcbazaar/storage"
)

// Store is the read surface for the storefront API.
type Store interface {
	ListProducts(ctx context.Context, f storage.ProductFilter) ([]models.CanonicalProduct, int, error)
	ProductByID(ctx context.Context, id uuid.UUID) (*models.CanonicalProduct, error)
	PricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error)
}

// Server exposes the catalog as plain JSON over HTTP.
type Server struct {
	store      Store
	aggregator *catalog.Aggregator
	index      *search.Index // nil when full-text search is not configured

	defaultPageSize int
	maxPageSize     int

	httpServer *http.Server
}

func NewServer(addr string, store Store, aggregator *catalog.Aggregator, index *search.Index, defaultPageSize, maxPageSize int) *Server {
	s := &Server{
		store:           store,
		aggregator:      aggregator,
		index:           index,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("GET /api/products/{id}/aggregate", s.handleGetAggregate)
	mux.HandleFunc("GET /api/products/{id}/prices", s.handleGetPrices)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(mux)
}

func (s *Server) Start() error {
	log.Printf("API listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// productView is a catalog row joined with its price aggregate.
type productView struct {
	models.CanonicalProduct
	Aggregate models.AggregateView `json:"aggregate"`
}

type productListResponse struct {
	Products []productView `json:"products"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize := intParam(q.Get("page_size"), s.defaultPageSize)
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	brand := q.Get("brand")
	category := q.Get("category")
	query := q.Get("q")
	offset := (page - 1) * pageSize

	var (
		products []models.CanonicalProduct
		total    int
		err      error
	)
	if query != "" && s.index != nil {
		products, total, err = s.searchProducts(r.Context(), query, brand, category, pageSize, offset)
	} else {
		products, total, err = s.store.ListProducts(r.Context(), storage.ProductFilter{
			Brand:    brand,
			Category: category,
			Query:    query,
			Offset:   offset,
			Limit:    pageSize,
		})
	}
	if err != nil {
		log.Printf("API: list products: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	resp := productListResponse{
		Products: make([]productView, 0, len(products)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, p := range products {
		view, err := s.aggregator.Aggregate(r.Context(), p.ID)
		if err != nil {
			log.Printf("API: aggregate %s: %v", p.ID, err)
			view = models.AggregateView{ProductID: p.ID}
		}
		resp.Products = append(resp.Products, productView{CanonicalProduct: p, Aggregate: view})
	}
	writeJSON(w, http.StatusOK, resp)
}

// searchProducts resolves a full-text query through the index, then loads
// the catalog rows in relevance order.
func (s *Server) searchProducts(ctx context.Context, query, brand, category string, limit, offset int) ([]models.CanonicalProduct, int, error) {
	ids, total, err := s.index.Search(query, brand, category, limit, offset)
	if err != nil {
		// Index down: degrade to SQL matching rather than failing reads.
		log.Printf("API: search index unavailable, falling back: %v", err)
		return s.store.ListProducts(ctx, storage.ProductFilter{
			Brand: brand, Category: category, Query: query,
			Offset: offset, Limit: limit,
		})
	}

	products := make([]models.CanonicalProduct, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.ProductByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		if p == nil {
			continue // pruned since the last index sync
		}
		products = append(products, *p)
	}
	return products, total, nil
}

func (s *Server) productFromPath(w http.ResponseWriter, r *http.Request) (*models.CanonicalProduct, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return nil, false
	}
	p, err := s.store.ProductByID(r.Context(), id)
	if err != nil {
		log.Printf("API: product %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	view, err := s.aggregator.Aggregate(r.Context(), p.ID)
	if err != nil {
		log.Printf("API: aggregate %s: %v", p.ID, err)
		view = models.AggregateView{ProductID: p.ID}
	}
	writeJSON(w, http.StatusOK, productView{CanonicalProduct: *p, Aggregate: view})
}

func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	view, err := s.aggregator.Aggregate(r.Context(), p.ID)
	if err != nil {
		log.Printf("API: aggregate %s: %v", p.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to compute aggregate")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	p, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	points, err := s.store.PricePoints(r.Context(), p.ID)
	if err != nil {
		log.Printf("API: prices %s: %v", p.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	if points == nil {
		points = []models.PricePoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": p.ID,
		"prices":     points,
	})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("API: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
