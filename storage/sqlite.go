package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"pcbazaar/models"
)

// SQLiteStore is the zero-setup backend for local runs and development.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS canonical_products (
		id TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		listing_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (category, canonical_name)
	);

	CREATE TABLE IF NOT EXISTS raw_listings (
		id TEXT PRIMARY KEY,
		vendor_name TEXT NOT NULL,
		raw_name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		availability TEXT NOT NULL DEFAULT 'in_stock',
		source_url TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		observed_at DATETIME NOT NULL,
		product_id TEXT REFERENCES canonical_products(id) ON DELETE SET NULL,
		match_method TEXT NOT NULL DEFAULT '',
		match_score REAL NOT NULL DEFAULT 0,
		resolved_at DATETIME,
		checked_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_raw_listings_pending ON raw_listings (created_at) WHERE product_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_raw_listings_product ON raw_listings (product_id);

	CREATE TABLE IF NOT EXISTS media (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL,
		original_url TEXT NOT NULL UNIQUE,
		s3_key TEXT,
		content_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS reconcile_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		status TEXT NOT NULL DEFAULT 'running',
		processed INTEGER NOT NULL DEFAULT 0,
		auto_matched INTEGER NOT NULL DEFAULT 0,
		escalated INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		requeued INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS reconcile_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER REFERENCES reconcile_runs(id) ON DELETE CASCADE,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		level TEXT NOT NULL DEFAULT 'info',
		message TEXT NOT NULL,
		vendor TEXT NOT NULL DEFAULT ''
	);`

	_, err := s.db.Exec(schema)
	return err
}

// --- listings ---

func (s *SQLiteStore) InsertListing(ctx context.Context, l *models.RawListing) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.ObservedAt.IsZero() {
		l.ObservedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_listings
			(id, vendor_name, raw_name, category, price, availability, source_url, image_url, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.VendorName, l.RawName, string(l.Category), l.Price,
		string(l.Availability), l.SourceURL, l.ImageURL, l.ObservedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

const sqliteListingCols = `id, vendor_name, raw_name, category, price, availability,
	source_url, image_url, observed_at, product_id, match_method, match_score,
	resolved_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row rowScanner) (*models.RawListing, error) {
	var l models.RawListing
	var id, cat, avail string
	var productID sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&id, &l.VendorName, &l.RawName, &cat, &l.Price, &avail,
		&l.SourceURL, &l.ImageURL, &l.ObservedAt, &productID, &l.MatchMethod,
		&l.MatchScore, &resolvedAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad listing id %q: %w", id, err)
	}
	if productID.Valid {
		pid, err := uuid.Parse(productID.String)
		if err != nil {
			return nil, fmt.Errorf("bad product id %q: %w", productID.String, err)
		}
		l.ProductID = &pid
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		l.ResolvedAt = &t
	}
	l.Category = models.Category(cat)
	l.Availability = models.Availability(avail)
	return &l, nil
}

func (s *SQLiteStore) collectListings(ctx context.Context, query string, args ...any) ([]models.RawListing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RawListing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PendingListings(ctx context.Context, limit int) ([]models.RawListing, error) {
	return s.collectListings(ctx, `
		SELECT `+sqliteListingCols+` FROM raw_listings
		WHERE product_id IS NULL
		ORDER BY created_at
		LIMIT ?`, limit)
}

func (s *SQLiteStore) ResolveListing(ctx context.Context, listingID, productID uuid.UUID, method string, score float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE raw_listings
		SET product_id = ?, match_method = ?, match_score = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND product_id IS NULL`,
		productID.String(), method, score, listingID.String())
	if err != nil {
		return fmt.Errorf("resolve listing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE canonical_products
		SET listing_count = listing_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, productID.String()); err != nil {
		return fmt.Errorf("bump listing count: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) RequeueListing(ctx context.Context, listingID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var productID sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT product_id FROM raw_listings WHERE id = ?`, listingID.String()).Scan(&productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("requeue listing: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE raw_listings
		SET product_id = NULL, match_method = '', match_score = 0, resolved_at = NULL
		WHERE id = ?`, listingID.String()); err != nil {
		return fmt.Errorf("requeue listing: %w", err)
	}

	if productID.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE canonical_products
			SET listing_count = MAX(listing_count - 1, 0), updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, productID.String); err != nil {
			return fmt.Errorf("drop listing count: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) collectPoints(ctx context.Context, query string, args ...any) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		var id, avail string
		if err := rows.Scan(&id, &p.VendorName, &p.Price, &avail, &p.ObservedAt); err != nil {
			return nil, err
		}
		p.ListingID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("bad listing id %q: %w", id, err)
		}
		p.Availability = models.Availability(avail)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error) {
	return s.collectPoints(ctx, `
		SELECT id, vendor_name, price, availability, observed_at
		FROM raw_listings
		WHERE product_id = ?
		ORDER BY observed_at DESC`, productID.String())
}

func (s *SQLiteStore) CurrentPricePoints(ctx context.Context, productID uuid.UUID) ([]models.PricePoint, error) {
	return s.collectPoints(ctx, `
		SELECT l.id, l.vendor_name, l.price, l.availability, l.observed_at
		FROM raw_listings l
		JOIN (
			SELECT vendor_name, source_url, MAX(observed_at) AS latest
			FROM raw_listings
			WHERE product_id = ?
			GROUP BY vendor_name, source_url
		) m ON l.vendor_name = m.vendor_name
		   AND l.source_url = m.source_url
		   AND l.observed_at = m.latest
		WHERE l.product_id = ?`, productID.String(), productID.String())
}

func (s *SQLiteStore) RawNamesForProduct(ctx context.Context, productID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT raw_name FROM raw_listings WHERE product_id = ?`, productID.String())
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

func (s *SQLiteStore) StaleListings(ctx context.Context, cutoff time.Time, limit int) ([]models.RawListing, error) {
	return s.collectListings(ctx, `
		SELECT `+sqliteListingCols+` FROM raw_listings
		WHERE source_url <> ''
		  AND id IN (
			SELECT id FROM raw_listings l2
			WHERE l2.observed_at = (
				SELECT MAX(l3.observed_at) FROM raw_listings l3 WHERE l3.source_url = l2.source_url
			)
		  )
		  AND COALESCE(checked_at, observed_at) < ?
		LIMIT ?`, cutoff, limit)
}

func (s *SQLiteStore) UpdateAvailability(ctx context.Context, listingID uuid.UUID, a models.Availability) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE raw_listings SET availability = ?, checked_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(a), listingID.String())
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// --- products ---

const sqliteProductCols = `id, canonical_name, brand, category, listing_count, created_at, updated_at`

func scanSQLiteProduct(row rowScanner) (*models.CanonicalProduct, error) {
	var p models.CanonicalProduct
	var id, brand, cat string
	err := row.Scan(&id, &p.CanonicalName, &brand, &cat, &p.ListingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad product id %q: %w", id, err)
	}
	p.Brand = models.Brand(brand)
	p.Category = models.Category(cat)
	return &p, nil
}

func (s *SQLiteStore) CreateOrFetchProduct(ctx context.Context, p *models.CanonicalProduct) (*models.CanonicalProduct, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	// INSERT OR IGNORE plus re-select; the unique constraint decides the winner.
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO canonical_products (id, canonical_name, brand, category)
		VALUES (?, ?, ?, ?)`,
		p.ID.String(), p.CanonicalName, string(p.Brand), string(p.Category))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteProductCols+` FROM canonical_products
		WHERE category = ? AND canonical_name = ?`,
		string(p.Category), p.CanonicalName)
	got, err := scanSQLiteProduct(row)
	if err != nil {
		return nil, fmt.Errorf("fetch product: %w", err)
	}
	return got, nil
}

func (s *SQLiteStore) ProductByID(ctx context.Context, id uuid.UUID) (*models.CanonicalProduct, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteProductCols+` FROM canonical_products WHERE id = ?`, id.String())
	p, err := scanSQLiteProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product by id: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) collectProducts(ctx context.Context, query string, args ...any) ([]models.CanonicalProduct, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CanonicalProduct
	for rows.Next() {
		p, err := scanSQLiteProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ProductsByCategory(ctx context.Context, cat models.Category) ([]models.CanonicalProduct, error) {
	return s.collectProducts(ctx, `
		SELECT `+sqliteProductCols+` FROM canonical_products WHERE category = ?`, string(cat))
}

func (s *SQLiteStore) AllProducts(ctx context.Context) ([]models.CanonicalProduct, error) {
	return s.collectProducts(ctx, `
		SELECT `+sqliteProductCols+` FROM canonical_products ORDER BY canonical_name`)
}

func (s *SQLiteStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.CanonicalProduct, int, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Brand != "" {
		where = append(where, "brand = ?")
		args = append(args, f.Brand)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Query != "" {
		where = append(where, `(canonical_name LIKE ? OR EXISTS (
			SELECT 1 FROM raw_listings rl
			WHERE rl.product_id = canonical_products.id AND rl.raw_name LIKE ?))`)
		pat := "%" + f.Query + "%"
		args = append(args, pat, pat)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM canonical_products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + sqliteProductCols + ` FROM canonical_products WHERE ` + cond +
		` ORDER BY canonical_name LIMIT ? OFFSET ?`
	out, err := s.collectProducts(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return out, total, nil
}

func (s *SQLiteStore) PruneOrphanProducts(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM canonical_products
		WHERE NOT EXISTS (
			SELECT 1 FROM raw_listings l WHERE l.product_id = canonical_products.id
		)`)
	if err != nil {
		return 0, fmt.Errorf("prune products: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- media ---

func (s *SQLiteStore) EnqueueMedia(ctx context.Context, listingID uuid.UUID, originalURL string) error {
	if originalURL == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO media (id, listing_id, original_url)
		VALUES (?, ?, ?)`,
		uuid.NewString(), listingID.String(), originalURL)
	if err != nil {
		return fmt.Errorf("enqueue media: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PendingMedia(ctx context.Context, limit int) ([]models.Media, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, listing_id, original_url, s3_key, content_hash, status, attempts, created_at
		FROM media
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Media
	for rows.Next() {
		var m models.Media
		var id, listingID string
		var s3Key sql.NullString
		if err := rows.Scan(&id, &listingID, &m.OriginalURL, &s3Key,
			&m.ContentHash, &m.Status, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("bad media id %q: %w", id, err)
		}
		if m.ListingID, err = uuid.Parse(listingID); err != nil {
			return nil, fmt.Errorf("bad listing id %q: %w", listingID, err)
		}
		if s3Key.Valid {
			k := s3Key.String
			m.S3Key = &k
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkMediaUploaded(ctx context.Context, id uuid.UUID, s3Key, contentHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE media SET status = 'uploaded', s3_key = ?, content_hash = ? WHERE id = ?`,
		s3Key, contentHash, id.String())
	if err != nil {
		return fmt.Errorf("mark media uploaded: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkMediaFailed(ctx context.Context, id uuid.UUID, maxAttempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE media
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END
		WHERE id = ?`, maxAttempts, id.String())
	if err != nil {
		return fmt.Errorf("mark media failed: %w", err)
	}
	return nil
}

// --- runs ---

func (s *SQLiteStore) StartRun(ctx context.Context) (*models.ReconcileRun, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs (status) VALUES ('running')`)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &models.ReconcileRun{
		ID:        id,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.ReconcileRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reconcile_runs
		SET finished_at = CURRENT_TIMESTAMP, status = ?, processed = ?, auto_matched = ?,
		    escalated = ?, created = ?, requeued = ?, errors = ?
		WHERE id = ?`,
		string(run.Status), run.Processed, run.AutoMatched,
		run.Escalated, run.Created, run.Requeued, run.Errors, run.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendRunLog(ctx context.Context, l *models.ReconcileLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_logs (run_id, level, message, vendor)
		VALUES (?, ?, ?, ?)`,
		l.RunID, l.Level, l.Message, l.Vendor)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}
