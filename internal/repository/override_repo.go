package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/kitco/pricer/internal/domain"
)

type OverrideRepo struct {
	db *sql.DB
}

func NewOverrideRepo(db *sql.DB) *OverrideRepo {
	return &OverrideRepo{db: db}
}

func (r *OverrideRepo) Insert(ctx context.Context, o *domain.PriceOverride) error {
	var productID, sku, errMsg any
	if o.ProductID != "" {
		productID = o.ProductID
	}
	if o.SKU != "" {
		sku = o.SKU
	}
	if o.Error != "" {
		errMsg = o.Error
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO price_overrides
		(id, order_form_id, product_id, item_index, sku, from_cents,
		 price_cents, status, error, attempted_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.OrderFormID, productID, o.ItemIndex, sku, o.FromCents,
		o.PriceCents, string(o.Status), errMsg, formatTime(o.AttemptedAt),
	)
	return err
}

type OverrideFilter struct {
	OrderFormID string
	Status      string
	Page        int
	Limit       int
}

func (r *OverrideRepo) List(ctx context.Context, f OverrideFilter) ([]domain.PriceOverride, int, error) {
	var clauses []string
	var args []any
	if f.OrderFormID != "" {
		clauses = append(clauses, "order_form_id = ?")
		args = append(args, f.OrderFormID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_overrides"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageOffset(f.Page, f.Limit)
	q := `SELECT id, order_form_id, product_id, item_index, sku, from_cents,
		price_cents, status, error, attempted_at
		FROM price_overrides` + where + " ORDER BY attempted_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.PriceOverride
	for rows.Next() {
		var o domain.PriceOverride
		var status, attemptedAt string
		var productID, sku, errMsg sql.NullString
		if err := rows.Scan(
			&o.ID, &o.OrderFormID, &productID, &o.ItemIndex, &sku, &o.FromCents,
			&o.PriceCents, &status, &errMsg, &attemptedAt,
		); err != nil {
			return nil, 0, err
		}
		o.ProductID = productID.String
		o.SKU = sku.String
		o.Error = errMsg.String
		o.Status = domain.OverrideStatus(status)
		o.AttemptedAt = parseTime(attemptedAt)
		out = append(out, o)
	}
	return out, total, rows.Err()
}

type OverrideSummary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func (r *OverrideRepo) Summary(ctx context.Context, orderFormID string) (*OverrideSummary, error) {
	s := &OverrideSummary{ByStatus: make(map[string]int)}

	q := "SELECT status, COUNT(*) FROM price_overrides"
	var args []any
	if orderFormID != "" {
		q += " WHERE order_form_id = ?"
		args = append(args, orderFormID)
	}
	rows, err := r.db.QueryContext(ctx, q+" GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		s.ByStatus[status] = n
		s.Total += n
	}
	return s, rows.Err()
}
