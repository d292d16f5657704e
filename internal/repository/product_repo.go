package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kitco/pricer/internal/domain"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Upsert stores the product snapshot and its SKU index, replacing any
// earlier snapshot of the same product.
func (r *ProductRepo) Upsert(ctx context.Context, p *domain.Product, snapshot []byte) error {
	anchor, _ := p.AnchorPrice()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, anchor_price, snapshot, snapshot_hash, ingested_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			anchor_price = excluded.anchor_price,
			snapshot = excluded.snapshot,
			snapshot_hash = excluded.snapshot_hash,
			ingested_at = excluded.ingested_at`,
		p.ID, p.Name, anchor, string(snapshot), p.SnapshotHash, formatTime(p.IngestedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_skus WHERE product_id = ?", p.ID); err != nil {
		return fmt.Errorf("clear skus: %w", err)
	}
	for _, sku := range p.SKUs() {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO product_skus (sku, product_id) VALUES (?,?)", sku, p.ID,
		); err != nil {
			return fmt.Errorf("insert sku %s: %w", sku, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExistsByHash reports whether a snapshot with this hash is stored.
func (r *ProductRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE snapshot_hash = ?", hash,
	).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT snapshot, snapshot_hash, ingested_at FROM products WHERE id = ?", id,
	)
	return scanProduct(row)
}

func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT p.snapshot, p.snapshot_hash, p.ingested_at
		FROM products p JOIN product_skus s ON s.product_id = p.id
		WHERE s.sku = ?`, sku,
	)
	return scanProduct(row)
}

// List returns all products ordered by id.
func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT snapshot, snapshot_hash, ingested_at FROM products ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var snapshot, hash, ingestedAt string
	if err := row.Scan(&snapshot, &hash, &ingestedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(snapshot), &p); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	p.SnapshotHash = hash
	p.IngestedAt = parseTime(ingestedAt)
	return &p, nil
}
