package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if dsn == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			anchor_price REAL NOT NULL,
			snapshot TEXT NOT NULL,
			snapshot_hash TEXT NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_hash ON products(snapshot_hash)`,

		`CREATE TABLE IF NOT EXISTS product_skus (
			sku TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_product_skus_product ON product_skus(product_id)`,

		`CREATE TABLE IF NOT EXISTS price_ticks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			original_price REAL NOT NULL,
			price REAL NOT NULL,
			origin TEXT NOT NULL,
			seq INTEGER NOT NULL,
			emitted_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_ticks_product ON price_ticks(product_id, emitted_at)`,

		`CREATE TABLE IF NOT EXISTS price_overrides (
			id TEXT PRIMARY KEY,
			order_form_id TEXT NOT NULL,
			product_id TEXT,
			item_index INTEGER NOT NULL,
			sku TEXT,
			from_cents INTEGER NOT NULL,
			price_cents INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			attempted_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_overrides_order_form ON price_overrides(order_form_id)`,
		`CREATE INDEX IF NOT EXISTS idx_price_overrides_status ON price_overrides(status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also reads rows written with variable-width fractions.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func pageOffset(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
