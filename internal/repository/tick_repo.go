package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kitco/pricer/internal/domain"
)

type TickRepo struct {
	db *sql.DB
}

func NewTickRepo(db *sql.DB) *TickRepo {
	return &TickRepo{db: db}
}

const insertTick = `INSERT INTO price_ticks
	(product_id, original_price, price, origin, seq, emitted_at)
	VALUES (?,?,?,?,?,?)`

func (r *TickRepo) Insert(ctx context.Context, t *domain.PriceTick) error {
	_, err := r.db.ExecContext(ctx, insertTick,
		t.ProductID, t.OriginalPrice, t.Price, string(t.Origin), t.Seq,
		formatTime(t.EmittedAt),
	)
	return err
}

func (r *TickRepo) BulkInsert(ctx context.Context, ticks []domain.PriceTick) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTick)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range ticks {
		t := &ticks[i]
		if _, err := stmt.ExecContext(ctx,
			t.ProductID, t.OriginalPrice, t.Price, string(t.Origin), t.Seq,
			formatTime(t.EmittedAt),
		); err != nil {
			return 0, fmt.Errorf("insert %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ticks), nil
}

type TickFilter struct {
	ProductID string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// List returns ticks newest first, with the total matching count.
func (r *TickRepo) List(ctx context.Context, f TickFilter) ([]domain.PriceTick, int, error) {
	where, args := buildTickWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_ticks"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageOffset(f.Page, f.Limit)
	q := `SELECT product_id, original_price, price, origin, seq, emitted_at
		FROM price_ticks` + where + " ORDER BY emitted_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ticks []domain.PriceTick
	for rows.Next() {
		var t domain.PriceTick
		var origin, emittedAt string
		if err := rows.Scan(&t.ProductID, &t.OriginalPrice, &t.Price, &origin, &t.Seq, &emittedAt); err != nil {
			return nil, 0, err
		}
		t.Origin = domain.PriceOrigin(origin)
		t.EmittedAt = parseTime(emittedAt)
		ticks = append(ticks, t)
	}
	return ticks, total, rows.Err()
}

type TickStats struct {
	Count    int     `json:"count"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
	AvgPrice float64 `json:"avg_price"`
}

func (r *TickRepo) Stats(ctx context.Context, productID string) (*TickStats, error) {
	s := &TickStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MIN(price),0), COALESCE(MAX(price),0), COALESCE(AVG(price),0)
		FROM price_ticks WHERE product_id = ?`, productID,
	).Scan(&s.Count, &s.MinPrice, &s.MaxPrice, &s.AvgPrice)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func buildTickWhere(f TickFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.ProductID != "" {
		clauses = append(clauses, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.From != nil {
		clauses = append(clauses, "emitted_at >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		clauses = append(clauses, "emitted_at <= ?")
		args = append(args, formatTime(*f.To))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
