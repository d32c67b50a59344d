package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pcbazaar/models"
)

// PostgresStore is the production backend, backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS canonical_products (
			id UUID PRIMARY KEY,
			canonical_name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			listing_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (category, canonical_name)
		)`,
		`CREATE TABLE IF NOT EXISTS raw_listings (
			id UUID PRIMARY KEY,
			vendor_name TEXT NOT NULL,
			raw_name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			availability TEXT NOT NULL DEFAULT 'in_stock',
			source_url TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			observed_at TIMESTAMPTZ NOT NULL,
			product_id UUID REFERENCES canonical_products(id) ON DELETE SET NULL,
			match_method TEXT NOT NULL DEFAULT '',
			match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			resolved_at TIMESTAMPTZ,
			checked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_listings_pending ON raw_listings (created_at) WHERE product_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_raw_listings_product ON raw_listings (product_id)`,
		`CREATE TABLE IF NOT EXISTS media (
			id UUID PRIMARY KEY,
			listing_id UUID NOT NULL,
			original_url TEXT NOT NULL UNIQUE,
			s3_key TEXT,
			content_hash TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS reconcile_runs (
			id BIGSERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT 'running',
			processed INTEGER NOT NULL DEFAULT 0,
			auto_matched INTEGER NOT NULL DEFAULT 0,
			escalated INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			requeued INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS reconcile_logs (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT REFERENCES reconcile_runs(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			level TEXT NOT NULL DEFAULT 'info',
			message TEXT NOT NULL,
			vendor TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- listings ---

func (s *PostgresStore) InsertListing(ctx context.Context, l *models.RawListing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.ObservedAt.IsZero() {
		l.ObservedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO raw_listings
			(id, vendor_name, raw_name, category, price, availability, source_url, image_url, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.VendorName, l.RawName, string(l.Category), l.Price,
		string(l.Availability), l.SourceURL, l.ImageURL, l.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

const listingCols = `id, vendor_name, raw_name, category, price, availability,
	source_url, image_url, observed_at, product_id, match_method, match_score,
	resolved_at, created_at`

func scanListing(row pgx.Row) (*models.RawListing, error) {
	var l models.RawListing
	var cat, avail string
	err := row.Scan(&l.ID, &l.VendorName, &l.RawName, &cat, &l.Price, &avail,
		&l.SourceURL, &l.ImageURL, &l.ObservedAt, &l.ProductID, &l.MatchMethod,
		&l.MatchScore, &l.ResolvedAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Category = models.Category(cat)
	l.Availability = models.Availability(avail)
	return &l, nil
}

func (s *PostgresStore) collectListings(ctx context.Context, query string, args ...any) ([]models.RawListing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RawListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// PendingListings returns unresolved listings, oldest first.
func (s *PostgresStore) PendingListings(ctx context.Context, limit int) ([]models.RawListing, error) {
	return s.collectListings(ctx, `
		SELECT `+listingCols+` FROM raw_listings
		WHERE product_id IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
}

// ResolveListing attaches a listing to a canonical product and bumps the
// product's listing count in the same transaction.
func (s *PostgresStore) ResolveListing(ctx context.Context, listingID, productID uuid.UUID, method string, score float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE raw_listings
		SET product_id = $2, match_method = $3, match_score = $4, resolved_at = now()
		WHERE id = $1 AND product_id IS NULL`,
		listingID, productID, method, score)
	if err != nil {
		return fmt.Errorf("resolve listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE canonical_products
		SET listing_count = listing_count + 1, updated_at = now()
		WHERE id = $1`, productID); err != nil {
		return fmt.Errorf("bump listing count: %w", err)
	}

	return tx.Commit(ctx)
}

// RequeueListing detaches a listing so the next batch re-runs the full match.
func (s *PostgresStore) RequeueListing(ctx context.Context, listingID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT product_id FROM raw_listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&productID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("requeue listing: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE raw_listings
		SET product_id = NULL, match_method = '', match_score = 0, resolved_at = NULL
		WHERE id = $1`, listingID); err != nil {
		return fmt.Errorf("requeue listing: %w", err)
	}

	if productID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE canonical_products
			SET listing_count = GREATEST(listing_count - 1, 0), updated_at = now()
			WHERE id = $1`, *productID); err != nil {
			return fmt.Errorf("drop listing count: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// PricePoints returns the full price history for a product, newest first.
func (s *PostgresStore) PricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error) {
	return s.collectPoints(ctx, `
		SELECT id, vendor_name, price, availability, observed_at
		FROM raw_listings
		WHERE product_id = $1
		ORDER BY observed_at DESC`, productID)
}

// CurrentPricePoints returns the latest observation per vendor offer.
func (s *PostgresStore) CurrentPricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error) {
	return s.collectPoints(ctx, `
		SELECT DISTINCT ON (vendor_name, source_url)
			id, vendor_name, price, availability, observed_at
		FROM raw_listings
		WHERE product_id = $1
		ORDER BY vendor_name, source_url, observed_at DESC`, productID)
}

func (s *PostgresStore) collectPoints(ctx context.Context, query string, args ...any) ([]models.PricePoint, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var avail string
		if err := rows.Scan(&p.ListingID, &p.VendorName, &p.Price, &avail, &p.ObservedAt); err != nil {
			return nil, err
		}
		p.Availability = models.Availability(avail)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RawNamesForProduct returns the distinct vendor names mapped onto a
// product, fed to the search index.
func (s *PostgresStore) RawNamesForProduct(ctx context.Context, productID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT raw_name FROM raw_listings WHERE product_id = $1`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// StaleListings returns the newest observation per source URL that has not
// been availability-checked since the cutoff.
func (s *PostgresStore) StaleListings(ctx context.Context, cutoff time.Time, limit int) ([]models.RawListing, error) {
	return s.collectListings(ctx, `
		SELECT `+listingCols+` FROM (
			SELECT DISTINCT ON (source_url) `+listingCols+`, checked_at
			FROM raw_listings
			WHERE source_url <> ''
			ORDER BY source_url, observed_at DESC
		) latest
		WHERE COALESCE(checked_at, observed_at) < $1
		LIMIT $2`, cutoff, limit)
}

func (s *PostgresStore) UpdateAvailability(ctx context.Context, listingID uuid.UUID, a models.Availability) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE raw_listings SET availability = $2, checked_at = now() WHERE id = $1`,
		listingID, string(a))
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// --- products ---

const productCols = `id, canonical_name, brand, category, listing_count, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.CanonicalProduct, error) {
	var p models.CanonicalProduct
	var brand, cat string
	err := row.Scan(&p.ID, &p.CanonicalName, &brand, &cat, &p.ListingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Brand = models.Brand(brand)
	p.Category = models.Category(cat)
	return &p, nil
}

// CreateOrFetchProduct inserts a canonical product, or returns the existing
// row when another writer already created the same (category, name). The
// unique constraint makes the race harmless; the loser gets the winner's id.
func (s *PostgresStore) CreateOrFetchProduct(ctx context.Context, p *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO canonical_products (id, canonical_name, brand, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, canonical_name) DO UPDATE SET updated_at = now()
		RETURNING `+productCols,
		p.ID, p.CanonicalName, string(p.Brand), string(p.Category))
	got, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("create or fetch product: %w", err)
	}
	return got, nil
}

func (s *PostgresStore) ProductByID(ctx context.Context, id uuid.UUID) (*models.CanonicalProduct, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+productCols+` FROM canonical_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product by id: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) collectProducts(ctx context.Context, query string, args ...any) ([]models.CanonicalProduct, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CanonicalProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ProductsByCategory(ctx context.Context, cat models.Category) ([]models.CanonicalProduct, error) {
	return s.collectProducts(ctx, `
		SELECT `+productCols+` FROM canonical_products WHERE category = $1`, string(cat))
}

func (s *PostgresStore) AllProducts(ctx context.Context) ([]models.CanonicalProduct, error) {
	return s.collectProducts(ctx, `
		SELECT `+productCols+` FROM canonical_products ORDER BY canonical_name`)
}

// ListProducts applies catalog filters and returns one page plus the
// unpaged total.
func (s *PostgresStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.CanonicalProduct, int, error) {
	where := []string{"1=1"}
	args := []any{}

	add := func(clause string, val any) {
		args = append(args, val)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.Brand != "" {
		add("brand = ?", f.Brand)
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Query != "" {
		// Both placeholders share the same argument.
		add(`(canonical_name ILIKE ? OR EXISTS (
			SELECT 1 FROM raw_listings rl
			WHERE rl.product_id = canonical_products.id AND rl.raw_name ILIKE ?))`,
			"%"+f.Query+"%")
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM canonical_products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	query := `SELECT ` + productCols + ` FROM canonical_products WHERE ` + cond +
		` ORDER BY canonical_name LIMIT $` + strconv.Itoa(limitArg) + ` OFFSET $` + strconv.Itoa(offsetArg)
	out, err := s.collectProducts(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return out, total, nil
}

// PruneOrphanProducts deletes canonical products with no mapped listings.
func (s *PostgresStore) PruneOrphanProducts(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM canonical_products p
		WHERE NOT EXISTS (SELECT 1 FROM raw_listings l WHERE l.product_id = p.id)`)
	if err != nil {
		return 0, fmt.Errorf("prune products: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- media ---

func (s *PostgresStore) EnqueueMedia(ctx context.Context, listingID uuid.UUID, originalURL string) error {
	if originalURL == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO media (id, listing_id, original_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (original_url) DO NOTHING`,
		uuid.New(), listingID, originalURL)
	if err != nil {
		return fmt.Errorf("enqueue media: %w", err)
	}
	return nil
}

func (s *PostgresStore) PendingMedia(ctx context.Context, limit int) ([]models.Media, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, original_url, s3_key, content_hash, status, attempts, created_at
		FROM media
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.ListingID, &m.OriginalURL, &m.S3Key,
			&m.ContentHash, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkMediaUploaded(ctx context.Context, id uuid.UUID, s3Key, contentHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE media SET status = 'uploaded', s3_key = $2, content_hash = $3 WHERE id = $1`,
		id, s3Key, contentHash)
	if err != nil {
		return fmt.Errorf("mark media uploaded: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkMediaFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE media
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
		WHERE id = $1`, id, maxAttempts)
	if err != nil {
		return fmt.Errorf("mark media failed: %w", err)
	}
	return nil
}

// --- runs ---

func (s *PostgresStore) StartRun(ctx context.Context) (*models.ReconcileRun, error) {
	run := &models.ReconcileRun{Status: models.RunStatusRunning}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO reconcile_runs (status) VALUES ('running')
		RETURNING id, started_at`).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *models.ReconcileRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE reconcile_runs
		SET finished_at = now(), status = $2, processed = $3, auto_matched = $4,
		    escalated = $5, created = $6, requeued = $7, errors = $8
		WHERE id = $1`,
		run.ID, string(run.Status), run.Processed, run.AutoMatched,
		run.Escalated, run.Created, run.Requeued, run.Errors)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendRunLog(ctx context.Context, l *models.ReconcileLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconcile_logs (run_id, level, message, vendor)
		VALUES ($1, $2, $3, $4)`,
		l.RunID, l.Level, l.Message, l.Vendor)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}
